package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DriftWatcher watches a policy document file and reports when the
// on-disk content diverges from the document loaded at startup.
//
// Policy documents are immutable after load: the watcher never reloads.
// Its only job is observability, so an operator who edits the file learns
// that a restart is required before the change takes effect.
type DriftWatcher struct {
	path     string
	loaded   string // fingerprint of the loaded document
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	drifted bool
	timer   *time.Timer
}

// NewDriftWatcher creates a watcher for the document at path. The loaded
// document supplies the reference fingerprint.
func NewDriftWatcher(path string, doc *Document, logger *slog.Logger) *DriftWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriftWatcher{
		path:     path,
		loaded:   doc.Fingerprint(),
		debounce: 100 * time.Millisecond,
		logger:   logger.With("component", "policy.watcher"),
	}
}

// Watch blocks, processing file events until the context is cancelled.
// Editors replace files rather than writing in place, so the parent
// directory is watched and events are filtered to the document path.
func (w *DriftWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("drift watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	w.logger.Info("policy drift watcher started", "path", w.path)

	defer func() {
		w.mu.Lock()
		w.running = false
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.scheduleCheck()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("policy drift watcher error", "error", err)
		}
	}
}

// Drifted reports whether drift has been observed since startup.
func (w *DriftWatcher) Drifted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drifted
}

// scheduleCheck debounces bursty editor events into a single comparison.
func (w *DriftWatcher) scheduleCheck() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.check)
}

// check compares the on-disk document against the loaded fingerprint.
func (w *DriftWatcher) check() {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		w.logger.Warn("policy document unreadable on disk",
			"path", w.path,
			"error", err,
		)
		w.setDrifted(true)
		return
	}

	sum := sha256.Sum256(raw)
	current := hex.EncodeToString(sum[:])

	if current == w.loaded {
		w.setDrifted(false)
		return
	}

	w.setDrifted(true)
	w.logger.Warn("policy document changed on disk; loaded policy is unchanged, restart to apply",
		"path", w.path,
		"loaded_fingerprint", w.loaded,
		"disk_fingerprint", current,
	)
}

func (w *DriftWatcher) setDrifted(drifted bool) {
	w.mu.Lock()
	w.drifted = drifted
	w.mu.Unlock()
}
