// internal/project/holder.go
package project

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/solatis/sweetbre/internal/rules"
)

// DefaultDebounce is the quiet period Watch waits after a file event before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Holder owns the current project loaded from a file and swaps it on reload.
// A failed reload keeps the last good project.
type Holder struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration
	onReload func(*rules.Project)
	onError  func(error)

	current atomic.Pointer[rules.Project]
	reloads atomic.Int64
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithLogger sets the logger used by Watch.
func WithLogger(l *slog.Logger) HolderOption {
	return func(h *Holder) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithDebounce sets the quiet period after a file event.
func WithDebounce(d time.Duration) HolderOption {
	return func(h *Holder) {
		if d > 0 {
			h.debounce = d
		}
	}
}

// OnReload registers fn to be called with every successfully reloaded project.
func OnReload(fn func(*rules.Project)) HolderOption {
	return func(h *Holder) { h.onReload = fn }
}

// OnReloadError registers fn to be called with every failed reload.
func OnReloadError(fn func(error)) HolderOption {
	return func(h *Holder) { h.onError = fn }
}

// NewHolder loads path and returns a holder serving it.
func NewHolder(path string, opts ...HolderOption) (*Holder, error) {
	h := &Holder{path: path, logger: slog.Default(), debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(h)
	}
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	h.current.Store(p)
	return h, nil
}

// Project returns the current project.
func (h *Holder) Project() *rules.Project { return h.current.Load() }

// Path returns the watched file.
func (h *Holder) Path() string { return h.path }

// Reloads counts successful reloads since creation.
func (h *Holder) Reloads() int64 { return h.reloads.Load() }

// Reload re-reads the file. On error the current project is left in place.
func (h *Holder) Reload() error {
	p, err := Load(h.path)
	if err != nil {
		if h.onError != nil {
			h.onError(err)
		}
		return err
	}
	h.current.Store(p)
	h.reloads.Add(1)
	if h.onReload != nil {
		h.onReload(p)
	}
	return nil
}

// Watch reloads the project whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are still seen.
func (h *Holder) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(h.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	base := filepath.Base(h.path)

	h.logger.Info("Project watcher started",
		"path", h.path,
		"debounce_ms", h.debounce.Milliseconds(),
	)

	timer := time.NewTimer(h.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Project watcher stopped")
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug("Project file event", "path", event.Name, "op", event.Op.String())
			timer.Reset(h.debounce)

		case <-timer.C:
			if err := h.Reload(); err != nil {
				h.logger.Error("Project reload failed, keeping previous project",
					"path", h.path,
					"error", err,
				)
				continue
			}
			h.logger.Info("Project reloaded", "path", h.path, "name", h.Project().Name)

		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			h.logger.Error("Project watcher error", "error", err)
		}
	}
}
