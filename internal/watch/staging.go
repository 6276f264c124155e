package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"plotarchiver/internal/logging"
	"plotarchiver/internal/plot"
)

// Notifier is called when an event may have produced new work.
type Notifier func()

// Staging wakes workers when a finished plot lands in the staging directory
// or the destination list file changes.
type Staging struct {
	dir      string
	listPath string
	naming   plot.Naming
	notify   Notifier
	logger   *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewStaging builds a watcher for dir. listPath may be empty.
func NewStaging(dir, listPath string, naming plot.Naming, notify Notifier, logger *slog.Logger) *Staging {
	return &Staging{
		dir:      dir,
		listPath: listPath,
		naming:   naming,
		notify:   notify,
		logger:   logging.NewComponentLogger(logger, "staging-watch"),
	}
}

// Start begins watching. Failure to watch is logged and not returned.
func (s *Staging) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.warnUnavailable(err, s.dir)
		return nil
	}
	if err := watcher.Add(s.dir); err != nil {
		_ = watcher.Close()
		s.warnUnavailable(err, s.dir)
		return nil
	}
	if s.listPath != "" {
		listDir := filepath.Dir(s.listPath)
		if listDir != filepath.Clean(s.dir) {
			if err := watcher.Add(listDir); err != nil {
				s.logger.Debug("destination list directory not watched",
					logging.String("path", listDir),
					logging.Error(err),
				)
			}
		}
	}

	s.watcher = watcher
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.loop(ctx, watcher, s.quit, s.done)

	s.logger.Info("staging watcher started",
		logging.String(logging.FieldEventType, "staging_watch_started"),
		logging.String("staging_dir", s.dir),
	)
	return nil
}

// Stop shuts the watcher down and waits for its goroutine.
func (s *Staging) Stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.quit)
	done := s.done
	watcher := s.watcher
	s.watcher = nil
	s.quit = nil
	s.running = false
	s.mu.Unlock()

	<-done
	_ = watcher.Close()
}

// Running reports whether the watcher is active.
func (s *Staging) Running() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Staging) loop(ctx context.Context, watcher *fsnotify.Watcher, quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if s.relevant(event) {
				s.logger.Debug("wake on filesystem event",
					logging.String("path", event.Name),
					logging.String("op", event.Op.String()),
				)
				if s.notify != nil {
					s.notify()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(s.logger, "staging watcher error", "staging_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "new plots are picked up on the next poll"),
			)
		}
	}
}

// relevant reports whether event may make new work available.
func (s *Staging) relevant(event fsnotify.Event) bool {
	if s.listPath != "" && filepath.Clean(event.Name) == filepath.Clean(s.listPath) {
		return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
	}
	if filepath.Dir(event.Name) != filepath.Clean(s.dir) {
		return false
	}
	if !event.Has(fsnotify.Create) {
		return false
	}
	return s.naming.Classify(filepath.Base(event.Name)) == plot.ReasonEligible
}

func (s *Staging) warnUnavailable(err error, path string) {
	logging.WarnWithContext(s.logger, "staging watcher unavailable", "staging_watch_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_watches or set watch.staging = false"),
		logging.String(logging.FieldImpact, "new plots are picked up on the next poll"),
	)
}
