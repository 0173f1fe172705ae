// Package eventloop implements the readiness-driven dispatcher of
// spec.md §4.7: it interleaves accepting new connections, pumping
// descriptor I/O through the NVT parser and output chain, pumping the
// slave helpers, and running the deferred-task/cron schedulers,
// preserving the externally observable properties of §4.7 steps 4-10
// even though it is expressed as goroutines-per-descriptor over Go's
// netpoller rather than a hand-rolled select(2) loop (see spec §9,
// "Coroutine-shaped overlapped I/O").
package eventloop

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/stlalpha/muxcore/internal/descriptor"
	"github.com/stlalpha/muxcore/internal/listener"
	"github.com/stlalpha/muxcore/internal/nvt"
	"github.com/stlalpha/muxcore/internal/schedule"
	"github.com/stlalpha/muxcore/internal/scheduler"
	"github.com/stlalpha/muxcore/internal/slave"
)

// CommandSink is the external command-queue collaborator: every
// complete input line parsed off a descriptor is handed here, in
// receipt order, before the next line on that same descriptor is fed
// to the parser again. The command interpreter itself is out of
// scope per spec §1.
type CommandSink interface {
	Submit(d *descriptor.Descriptor, line []byte)
}

// LoggingSink is a CommandSink that only logs; it is the default used
// when no real command interpreter is wired, so the core remains
// exercisable standalone.
type LoggingSink struct{}

func (LoggingSink) Submit(d *descriptor.Descriptor, line []byte) {
	log.Printf("DEBUG: descriptor %s: %q", d.ID, line)
}

// Config wires the event loop to its collaborators. Only Server and
// List are required; everything else has a usable zero-value default.
type Config struct {
	Server *listener.Server
	List   *descriptor.List

	TLSEnabled bool
	StartTLS   func(d *descriptor.Descriptor) error

	Resolver *slave.Helper
	Stub     *slave.Stub
	Sink     CommandSink

	// IdleTimeout disconnects a descriptor after this long without
	// input, subject to IdleEligible.
	IdleTimeout time.Duration
	// IdleEligible decides whether a descriptor may be idle-timed-out
	// at all (the legacy design exempts K-alive and staff sessions;
	// that policy lives with the external object subsystem, so the
	// default here admits every descriptor).
	IdleEligible func(d *descriptor.Descriptor) bool

	// QuotaPerTick/QuotaMax implement §4.7 step 1's per-player
	// command-quota refill.
	QuotaPerTick int
	QuotaMax     int

	ReadBufferSize    int
	RefillInterval    time.Duration
	IdleSweepInterval time.Duration

	// DumpPath, if set, enables the periodic accounting flatfile dump
	// on DumpInterval (spec §6, the HUP/USR2 dump timer) and makes
	// TriggerDump available for a signal handler to force one out of
	// band.
	DumpPath     string
	DumpInterval time.Duration

	// MaxConcurrentJobs and JobHistoryPath configure the cron-driven
	// maintenance scheduler that runs quota refill, idle sweep and the
	// flatfile dump (internal/scheduler, on top of robfig/cron/v3).
	MaxConcurrentJobs int
	JobHistoryPath    string
}

func (c *Config) setDefaults() {
	if c.Sink == nil {
		c.Sink = LoggingSink{}
	}
	if c.IdleEligible == nil {
		c.IdleEligible = func(*descriptor.Descriptor) bool { return true }
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 2048
	}
	if c.QuotaPerTick <= 0 {
		c.QuotaPerTick = 1
	}
	if c.QuotaMax <= 0 {
		c.QuotaMax = 20
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if c.IdleSweepInterval <= 0 {
		c.IdleSweepInterval = 30 * time.Second
	}
	if c.DumpPath != "" && c.DumpInterval <= 0 {
		c.DumpInterval = 5 * time.Minute
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 3
	}
}

// Loop is the running dispatcher. Construct with New and start with
// Run; Run blocks until ctx is cancelled, then drains every live
// descriptor via a GOING_DOWN shutdown before returning.
type Loop struct {
	cfg      Config
	deferred *schedule.Heap
	sched    *scheduler.Scheduler

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New constructs a Loop. cfg.Server and cfg.List must be non-nil.
func New(cfg Config) *Loop {
	cfg.setDefaults()
	return &Loop{
		cfg:      cfg,
		deferred: schedule.New(),
		stopCh:   make(chan struct{}),
	}
}

// Deferred exposes the one-shot deadline heap so collaborators (e.g. a
// staged overlapped-write close, spec §5 "deferred free scheduled 5s
// later") can schedule their own follow-up tasks.
func (l *Loop) Deferred() *schedule.Heap { return l.deferred }

// Run starts the accept loop on every currently bound listener plus
// the helper pumps and maintenance tickers, and blocks until ctx is
// done.
func (l *Loop) Run(ctx context.Context) {
	localPorts := map[net.Listener]int{}
	for _, ln := range l.cfg.Server.Listeners() {
		_, portStr, _ := net.SplitHostPort(ln.Addr().String())
		port := 0
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
		localPorts[ln] = port
	}

	for ln, port := range localPorts {
		l.wg.Add(1)
		go l.acceptLoop(ln, port)
	}

	if l.cfg.Resolver != nil {
		l.wg.Add(1)
		go l.resolverPump()
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.cfg.Resolver.WaitForExit()
		}()
	}

	if l.cfg.Stub != nil {
		l.wg.Add(1)
		go l.stubPump()
	}

	l.sched = scheduler.NewScheduler(l.maintenanceJobs(), l.cfg.MaxConcurrentJobs, l.cfg.JobHistoryPath)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.sched.Start(ctx)
	}()

	<-ctx.Done()
	l.shutdownAll()
	close(l.stopCh)
	l.wg.Wait()
}

func (l *Loop) acceptLoop(ln net.Listener, localPort int) {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		d := l.cfg.Server.NewConnection(ln, localPort)
		if d == nil {
			select {
			case <-l.stopCh:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		l.wg.Add(1)
		go l.serveDescriptor(d)
	}
}

// serveDescriptor owns one descriptor's read side for its whole
// lifetime, including across a LOGOUT reset (which retains the
// socket per spec §4.3).
func (l *Loop) serveDescriptor(d *descriptor.Descriptor) {
	defer l.wg.Done()

	parser := nvt.New(d, func(line []byte) { l.cfg.Sink.Submit(d, line) })
	parser.TLSEnabled = l.cfg.TLSEnabled
	parser.StartTLS = l.cfg.StartTLS
	parser.StartNegotiation()
	l.flush(d)

	buf := make([]byte, l.cfg.ReadBufferSize)
	for {
		if d.Conn == nil {
			return
		}
		n, err := d.Conn.Read(buf)
		if n > 0 {
			d.SetLastInputAt(time.Now().UTC())
			parser.Feed(buf[:n])
			l.flush(d)
		}

		if reason, ok := d.TakePendingClose(); ok {
			l.cfg.Server.Shutdown(d, reason)
			if !d.Connected() {
				return
			}
		}

		if err != nil {
			if isTransient(err) {
				continue
			}
			l.cfg.Server.Shutdown(d, descriptor.Sockdied)
			return
		}
	}
}

func (l *Loop) flush(d *descriptor.Descriptor) {
	if d.Conn == nil || d.Out.Empty() {
		return
	}
	if err := d.Out.Drain(d.Conn); err != nil {
		if !isTransient(err) {
			l.cfg.Server.Shutdown(d, descriptor.Sockdied)
		}
	}
}

func isTransient(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}

func (l *Loop) resolverPump() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stopCh:
			return
		default:
		}
		if !l.cfg.Resolver.Alive() {
			return
		}
		conn := l.cfg.Resolver.Conn()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		host, ident, ok1, ok2 := slave.ParseResolverReply(conn)
		if ok1 {
			slave.ApplyHostname(l.cfg.List, host)
		}
		if ok2 {
			slave.ApplyIdent(l.cfg.List, ident)
		}
	}
}

func (l *Loop) stubPump() {
	defer l.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			if !l.cfg.Stub.Alive() {
				return
			}
			if c := l.cfg.Stub.Conn(); c != nil {
				c.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
			}
			l.cfg.Stub.PumpRead()
			if l.cfg.Stub.PendingEgress() {
				l.cfg.Stub.PumpWrite()
			}
		}
	}
}

// maintenanceJobs builds the cron-scheduled maintenance jobs for §4.7
// step 1 (quota refill) and the idle-timeout sweep, plus the optional
// accounting flatfile dump (spec §6). Each job's interval
// comes from Config as a plain time.Duration and is turned into a
// robfig/cron "@every" schedule; the one-shot deferred-task heap is
// drained on the same tick as the quota refill since both are
// sub-second "run whatever is due now" housekeeping.
func (l *Loop) maintenanceJobs() []scheduler.Job {
	jobs := []scheduler.Job{
		{
			ID:       "quota-refill",
			Schedule: everySchedule(l.cfg.RefillInterval),
			Run: func(now time.Time) error {
				l.deferred.RunDue(now)
				l.RefillQuotas()
				return nil
			},
		},
		{
			ID:       "idle-sweep",
			Schedule: everySchedule(l.cfg.IdleSweepInterval),
			Run: func(now time.Time) error {
				l.SweepIdle(now)
				return nil
			},
		},
	}
	if l.cfg.DumpPath != "" {
		jobs = append(jobs, scheduler.Job{
			ID:       "flatfile-dump",
			Schedule: everySchedule(l.cfg.DumpInterval),
			Run: func(now time.Time) error {
				return l.DumpFlatfile()
			},
		})
	}
	return jobs
}

func everySchedule(d time.Duration) string { return fmt.Sprintf("@every %s", d) }

// RefillQuotas implements §4.7 step 1: every connected descriptor's
// command quota is topped up by QuotaPerTick, capped at QuotaMax.
func (l *Loop) RefillQuotas() {
	for _, d := range l.cfg.List.Snapshot() {
		if !d.Connected() {
			continue
		}
		d.RefillQuota(l.cfg.QuotaPerTick, l.cfg.QuotaMax)
	}
}

// SweepIdle force-closes every eligible descriptor that has been
// silent longer than IdleTimeout, unblocking its read so the close
// takes effect without waiting for the peer to send anything.
func (l *Loop) SweepIdle(now time.Time) {
	if l.cfg.IdleTimeout <= 0 {
		return
	}
	for _, d := range l.cfg.List.Snapshot() {
		if !d.Connected() || !l.cfg.IdleEligible(d) {
			continue
		}
		if now.Sub(d.LastInputAt()) > l.cfg.IdleTimeout {
			d.RequestClose(descriptor.IdleTimeout)
			if d.Conn != nil {
				d.Conn.SetReadDeadline(time.Now())
			}
		}
	}
}

// DumpFlatfile writes a one-line-per-descriptor accounting snapshot to
// DumpPath, matching the legacy design's HUP/USR2 flatfile dump. It is
// run on DumpInterval by the maintenance scheduler and may also be
// called directly from a signal handler for an out-of-band dump.
func (l *Loop) DumpFlatfile() error {
	if l.cfg.DumpPath == "" {
		return nil
	}
	f, err := os.Create(l.cfg.DumpPath)
	if err != nil {
		return fmt.Errorf("eventloop: dump flatfile: %w", err)
	}
	defer f.Close()

	now := time.Now().UTC()
	for _, d := range l.cfg.List.Snapshot() {
		fmt.Fprintf(f, "%s %s player=%d conn_for=%s cmds=%d\n",
			d.ID, d.Addr(), d.Player, now.Sub(d.ConnectedAt).Round(time.Second), d.CommandCount)
	}
	return nil
}

// TriggerDump forces an immediate flatfile dump outside the cron
// schedule, for a USR2/HUP signal handler (spec §6).
func (l *Loop) TriggerDump() error { return l.DumpFlatfile() }

// shutdownAll disconnects every live descriptor with GOING_DOWN,
// draining pending output non-blockingly first (spec §4.5 Shutdown).
func (l *Loop) shutdownAll() {
	for _, d := range l.cfg.List.Snapshot() {
		if d.Connected() {
			l.cfg.Server.Shutdown(d, descriptor.GoingDown)
		}
	}
	if l.cfg.Resolver != nil {
		l.cfg.Resolver.Reap()
	}
}
