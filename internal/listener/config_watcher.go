package listener

import (
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	muxconfig "github.com/stlalpha/muxcore/internal/config"
	"github.com/stlalpha/muxcore/internal/descriptor"
)

// ConfigWatcher hot-reloads a Server's listen-port set from a
// ListenConfig file, debouncing rapid successive writes the same way
// an editor's save-then-rewrite pattern would otherwise trigger a
// reload storm.
type ConfigWatcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}

	path   string
	server *Server
}

// NewConfigWatcher starts watching path (a ListenConfig JSON file) and
// converging srv's port set whenever it changes. The caller must call
// Stop to release the underlying fsnotify watcher.
func NewConfigWatcher(path string, srv *Server) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}

	cw := &ConfigWatcher{
		watcher: w,
		done:    make(chan struct{}),
		path:    path,
		server:  srv,
	}
	go cw.watchLoop(w)
	return cw, nil
}

// Stop halts the watch loop and releases the fsnotify watcher.
func (cw *ConfigWatcher) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.watcher == nil {
		return
	}
	select {
	case <-cw.done:
		// already closed
	default:
		close(cw.done)
	}
	cw.watcher.Close()
	cw.watcher = nil
}

func (cw *ConfigWatcher) watchLoop(w *fsnotify.Watcher) {
	var debounce *time.Timer
	const debounceDuration = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, cw.reload)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Printf("ERROR: listener config watcher: %v", err)

		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cfg, err := muxconfig.LoadListenConfig(cw.path)
	if err != nil {
		log.Printf("ERROR: reloading %s: %v", cw.path, err)
		return
	}

	cw.server.Limits = descriptor.Limits{LineMax: cfg.LineMax, SBufMax: cfg.SBufMax}
	cw.server.OutputCapBytes = cfg.OutputCapBytes

	if err := cw.server.SetupPorts(cfg.PlainPorts, cfg.TLSPorts); err != nil {
		log.Printf("ERROR: converging ports after %s reload: %v", cw.path, err)
		return
	}
	log.Printf("INFO: listener config reloaded from %s (%d plain, %d tls)", cw.path, len(cfg.PlainPorts), len(cfg.TLSPorts))
}
