// Package watch reloads a preferences file when it changes on disk.
package watch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaileenssyed/LocalFlow/config"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultDebounce is how long to wait for more writes before reloading.
	DefaultDebounce = 500 * time.Millisecond

	updateChannelBuffer = 8
)

// Update is one reload of the preferences file. Err is set when the file
// could not be read or did not validate; the previous preferences still apply.
type Update struct {
	Preferences itinerary.UserPreferences
	Err         error
}

// PreferencesWatcher watches a single preferences file. The file's
// directory is watched so editors that save by rename are picked up.
type PreferencesWatcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   bool

	lastHash string
	updates  chan Update

	droppedUpdates atomic.Int64
}

// Option configures a PreferencesWatcher.
type Option func(*PreferencesWatcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *PreferencesWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *PreferencesWatcher) {
		w.logger = logger
	}
}

// New creates a watcher for path.
func New(path string, opts ...Option) (*PreferencesWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &PreferencesWatcher{
		path:     abs,
		debounce: DefaultDebounce,
		watcher:  fsw,
		logger:   slog.Default(),
		updates:  make(chan Update, updateChannelBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Updates returns the channel of reloads. It is closed when the watcher stops.
func (w *PreferencesWatcher) Updates() <-chan Update {
	return w.updates
}

// Start begins watching. The file's current content is the baseline; only
// later changes produce updates.
func (w *PreferencesWatcher) Start(ctx context.Context) error {
	if content, err := os.ReadFile(w.path); err == nil {
		w.lastHash = contentHash(content)
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Preferences watcher started",
		"path", w.path,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
// The updates channel is closed by processEvents when it exits.
func (w *PreferencesWatcher) Stop() error {
	return w.watcher.Close()
}

// Dropped returns how many updates were discarded because nobody was reading.
func (w *PreferencesWatcher) Dropped() int64 {
	return w.droppedUpdates.Load()
}

func (w *PreferencesWatcher) processEvents(ctx context.Context) {
	defer close(w.updates)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.pendingMu.Lock()
				w.pending = true
				w.pendingMu.Unlock()
				w.logger.Debug("Preferences change detected", "op", event.Op.String())
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// flushPending reloads the file if anything changed since the last tick.
func (w *PreferencesWatcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()
	if !pending {
		return
	}

	content, err := os.ReadFile(w.path)
	if os.IsNotExist(err) {
		// Mid-rename; the Create that follows triggers another flush.
		return
	}
	if err != nil {
		w.send(Update{Err: err})
		return
	}

	if len(bytes.TrimSpace(content)) == 0 {
		// Truncated ahead of a write; the write triggers another flush.
		return
	}

	hash := contentHash(content)
	if hash == w.lastHash {
		return
	}
	w.lastHash = hash

	prefs, err := config.LoadPreferences(w.path)
	if err != nil {
		w.logger.Warn("Preferences file is invalid", "path", w.path, "error", err)
		w.send(Update{Err: err})
		return
	}
	w.send(Update{Preferences: prefs})
}

func (w *PreferencesWatcher) send(u Update) {
	select {
	case w.updates <- u:
		w.logger.Debug("Sent preferences update", "error", u.Err)
	default:
		w.droppedUpdates.Add(1)
		w.logger.Warn("Preferences update dropped, consumer not keeping up")
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
