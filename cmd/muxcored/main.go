// Command muxcored runs the connection-layer core standalone: it
// binds the configured plain/TLS Telnet ports, negotiates NVT options
// on every descriptor, and logs completed lines (§1 scopes the actual
// command interpreter out of this binary). It exists so the core is
// exercisable end-to-end without a command layer, and as the wiring
// point a real game server attaches its CommandSink, Accounting and
// AccessList collaborators to.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stlalpha/muxcore/internal/config"
	"github.com/stlalpha/muxcore/internal/descriptor"
	"github.com/stlalpha/muxcore/internal/eventloop"
	"github.com/stlalpha/muxcore/internal/flags"
	"github.com/stlalpha/muxcore/internal/listener"
	"github.com/stlalpha/muxcore/internal/logging"
	"github.com/stlalpha/muxcore/internal/slave"
)

func main() {
	configPath := flag.String("config", "ports.json", "path to the listen-port JSON config")
	dumpPath := flag.String("dump", "", "path for the periodic accounting flatfile dump (empty disables it)")
	debug := flag.Bool("debug", os.Getenv("DEBUG") == "1", "enable DEBUG-level logging")
	flag.Parse()
	logging.DebugEnabled = *debug

	cfg, err := config.LoadListenConfig(*configPath)
	if err != nil {
		log.Fatalf("ERROR: loading %s: %v", *configPath, err)
	}
	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		if err := cfg.Save(*configPath); err != nil {
			log.Printf("WARN: could not write default config to %s: %v", *configPath, err)
		}
	}

	// Seed the flag registry from the canonical roster (C1). Nothing in
	// this binary mutates object flags yet; that is the command layer's
	// job. Constructing it here exercises the roster at startup and is
	// where a command layer would obtain its shared *flags.Registry.
	registry := flags.NewDefaultRegistry()
	log.Printf("INFO: flag registry: %d entries", len(registry.All()))

	list := descriptor.NewList()
	srv, err := listener.NewServerFromConfig(cfg, list)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	var stub *slave.Stub
	if cfg.StubHelperPath != "" {
		h := slave.New("stub", cfg.StubHelperPath)
		if err := h.Launch(); err != nil {
			log.Printf("ERROR: launching stub helper: %v", err)
		} else {
			stub = slave.NewStub(h)
			stub.ReceiveBytes = func(chunk []byte) {
				logging.Debug("stub: %d bytes", len(chunk))
			}
		}
	}

	watcher, err := listener.NewConfigWatcher(*configPath, srv)
	if err != nil {
		log.Printf("WARN: config hot-reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	loop := eventloop.New(eventloop.Config{
		Server:      srv,
		List:        list,
		Resolver:    srv.Resolver,
		Stub:        stub,
		IdleTimeout: cfg.IdleTimeout,
		TLSEnabled:  srv.TLSConfig != nil,
		StartTLS:    startTLS(srv),
		DumpPath:    *dumpPath,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(ctx, cancel, loop)

	log.Printf("INFO: muxcored listening: plain=%v tls=%v", cfg.PlainPorts, cfg.TLSPorts)
	loop.Run(ctx)
	log.Printf("INFO: muxcored shut down")
}

// startTLS builds the NVT parser's STARTTLS upgrade callback: a
// server-side handshake in place over the descriptor's existing
// net.Conn, matching spec §4.2's STARTTLS sub-negotiation contract
// (the connection is TLS thereafter; failure forces RESTART).
func startTLS(srv *listener.Server) func(d *descriptor.Descriptor) error {
	return func(d *descriptor.Descriptor) error {
		if srv.TLSConfig == nil {
			return fmt.Errorf("eventloop: STARTTLS requested but no TLS material configured")
		}
		tconn := tls.Server(d.Conn, srv.TLSConfig)
		if err := tconn.HandshakeContext(context.Background()); err != nil {
			return fmt.Errorf("eventloop: STARTTLS handshake: %w", err)
		}
		d.Conn = tconn
		d.TLSSession = tconn
		return nil
	}
}

// handleSignals implements spec §6's signal table for the subset that
// makes sense in a Go process: USR1/HUP/USR2 trigger logging and/or an
// immediate accounting dump, INT is logged and ignored, and
// TERM/QUIT/XCPU request an orderly shutdown by cancelling ctx.
// CHLD is not handled: the event loop runs the resolver helper's
// internal/slave.Helper.WaitForExit on its own goroutine, and the stub
// helper is reaped by its pump on a zero-byte read or a fatal error; the
// panic-signal save-and-re-exec and
// PROF softcode-alarm rows have no meaning without the object
// subsystem and softcode evaluator this core does not implement, so
// they are intentionally not wired here.
func handleSignals(ctx context.Context, cancel context.CancelFunc, loop *eventloop.Loop) {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch,
		os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGXCPU,
		syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGHUP,
	)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			switch sig {
			case os.Interrupt:
				log.Printf("INFO: received %s, ignoring", sig)
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGXCPU:
				log.Printf("INFO: received %s, shutting down", sig)
				cancel()
				return
			case syscall.SIGUSR1:
				log.Printf("INFO: received SIGUSR1 (restart request); in-place restart is not implemented by this binary")
			case syscall.SIGUSR2, syscall.SIGHUP:
				if err := loop.TriggerDump(); err != nil {
					log.Printf("ERROR: flatfile dump: %v", err)
				} else {
					log.Printf("INFO: received %s, flatfile dump written", sig)
				}
			}
		}
	}
}
