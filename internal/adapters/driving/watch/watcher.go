// Package watch imports transcript files dropped into a directory.
//
// New or rewritten files with a registered normaliser become transcripts
// once their writes settle. Later writes to the same file update the same
// transcript.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// DefaultDebounce is how long a file must be quiet before it is imported.
const DefaultDebounce = 500 * time.Millisecond

// ImportFunc is called after each successful import.
type ImportFunc func(path string, t *domain.Transcript, created bool)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a file is imported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithNormalisers registers the normalisers that decide which files are
// imported and how their text is extracted. Later registrations win.
func WithNormalisers(normalisers ...driven.Normaliser) Option {
	return func(w *Watcher) {
		for _, n := range normalisers {
			for _, ext := range n.Extensions() {
				w.normalisers[strings.ToLower(ext)] = n
			}
		}
	}
}

// WithImportHook registers a callback for completed imports.
func WithImportHook(fn ImportFunc) Option {
	return func(w *Watcher) {
		w.onImport = fn
	}
}

// Watcher imports transcript files from one directory.
type Watcher struct {
	dir         string
	transcripts driving.TranscriptService
	debounce    time.Duration
	onImport    ImportFunc
	normalisers map[string]driven.Normaliser
	fs          *fsnotify.Watcher

	mu       sync.Mutex
	timers   map[string]*time.Timer
	imported map[string]string // path -> transcript ID
	closed   bool
	wg       sync.WaitGroup
}

// New creates a watcher for dir. Call Run to start importing.
// At least one normaliser is required.
func New(dir string, transcripts driving.TranscriptService, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		dir:         dir,
		transcripts: transcripts,
		debounce:    DefaultDebounce,
		normalisers: make(map[string]driven.Normaliser),
		timers:      make(map[string]*time.Timer),
		imported:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	if len(w.normalisers) == 0 {
		return nil, fmt.Errorf("%w: no normalisers registered", domain.ErrInvalidInput)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.fs = fsw
	return w, nil
}

// Run processes file events until ctx is cancelled. Pending imports are
// dropped; an import already running finishes first.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()

	logger.Info("watching %s", w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", w.dir, err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if w.normaliserFor(event.Name) == nil {
		return
	}

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		w.schedule(ctx, event.Name)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// schedule (re)starts the quiet-period timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.wg.Add(1)
		w.mu.Unlock()

		defer w.wg.Done()
		if err := w.importFile(ctx, path); err != nil {
			logger.Warn("import %s: %v", path, err)
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
}

// importFile creates or updates the transcript for path.
func (w *Watcher) importFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := w.normaliserFor(path).Normalise(ctx, path, data)
	if err != nil {
		return fmt.Errorf("normalise: %w", err)
	}
	text := res.Text
	if strings.TrimSpace(text) == "" {
		logger.Debug("skipping empty file %s", path)
		return nil
	}

	w.mu.Lock()
	id, seen := w.imported[path]
	w.mu.Unlock()

	if seen {
		t, err := w.transcripts.Update(ctx, id, domain.TranscriptPatch{RawText: &text})
		if err == nil {
			w.notify(path, t, false)
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		// Deleted since the last import; bring it back as a new transcript.
	}

	t, err := w.transcripts.Create(ctx, res.Title, text, "")
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.imported[path] = t.ID
	w.mu.Unlock()
	w.notify(path, t, true)
	return nil
}

func (w *Watcher) notify(path string, t *domain.Transcript, created bool) {
	if created {
		logger.Info("imported %s as %s", path, t.ID)
	} else {
		logger.Info("updated %s from %s", t.ID, path)
	}
	if w.onImport != nil {
		w.onImport(path, t, created)
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	if err := w.fs.Close(); err != nil {
		logger.Warn("close watcher: %v", err)
	}
}

func (w *Watcher) normaliserFor(path string) driven.Normaliser {
	return w.normalisers[strings.ToLower(filepath.Ext(path))]
}
