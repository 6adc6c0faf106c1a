// Package watcher turns directories into query inboxes: descriptor files dropped
// into a watched directory are handed to a callback once writes settle.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/mitate/internal/descriptor"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Handler receives the path of a query file that was created or rewritten.
type Handler func(path string)

// Inbox watches directories for query descriptor files.
type Inbox struct {
	dirs       []string
	extensions []string
	recursive  bool
	handle     Handler
	debounce   time.Duration
	logger     *zap.Logger // optional

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	watched  map[string][]string // inbox dir -> directories registered with fsnotify
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(in *Inbox) { in.logger = l }
}

// WithDebounce sets how long a file must stay quiet before it is handled.
func WithDebounce(d time.Duration) Option {
	return func(in *Inbox) {
		if d > 0 {
			in.debounce = d
		}
	}
}

// WithRecursive also watches subdirectories, including ones created later.
func WithRecursive(recursive bool) Option {
	return func(in *Inbox) { in.recursive = recursive }
}

// NewInbox creates an inbox over dirs. Only files whose extension is in
// extensions are handed to handle (all files when empty).
func NewInbox(dirs, extensions []string, handle Handler, opts ...Option) *Inbox {
	in := &Inbox{
		dirs:       append([]string(nil), dirs...),
		extensions: extensions,
		handle:     handle,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
		watched:    make(map[string][]string),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Start begins watching. Missing inbox directories are created. The inbox runs
// until ctx is cancelled or Stop is called.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.started {
		in.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		in.mu.Unlock()
		return err
	}
	in.fsw = fsw
	for _, dir := range in.dirs {
		if err := in.watchLocked(dir); err != nil {
			_ = fsw.Close()
			in.fsw = nil
			in.mu.Unlock()
			return err
		}
	}
	in.started = true
	if in.logger != nil {
		in.logger.Debug("inbox watching",
			zap.Strings("dirs", in.dirs),
			zap.Strings("extensions", in.extensions),
			zap.Bool("recursive", in.recursive),
		)
	}
	in.mu.Unlock()
	go in.run(ctx, fsw.Events, fsw.Errors)
	return nil
}

// Run starts the inbox and blocks until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	if err := in.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-in.done:
	}
	in.Stop()
	return nil
}

func (in *Inbox) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			in.Stop()
			return
		case <-in.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			in.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			if in.logger != nil {
				in.logger.Warn("inbox watch error", zap.Error(err))
			}
		}
	}
}

func (in *Inbox) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if !in.inInbox(path) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if in.recursive {
				in.addSubdirectory(path)
			}
			return
		}
		if descriptor.ExtensionAllowed(path, in.extensions) {
			in.schedule(path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		in.cancel(path)
	}
}

// addSubdirectory watches a directory created inside an inbox and queues the
// files already in it.
func (in *Inbox) addSubdirectory(dir string) {
	in.mu.Lock()
	fsw := in.fsw
	in.mu.Unlock()
	if fsw == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil && in.logger != nil {
				in.logger.Debug("inbox failed to watch directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if descriptor.ExtensionAllowed(path, in.extensions) {
			in.schedule(path)
		}
		return nil
	})
}

func (in *Inbox) inInbox(path string) bool {
	in.mu.Lock()
	dirs := append([]string(nil), in.dirs...)
	in.mu.Unlock()
	clean := filepath.Clean(path)
	for _, dir := range dirs {
		if inDir(filepath.Clean(dir), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// schedule (re)arms the quiet-period timer for path.
func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
	}
	in.pending[path] = time.AfterFunc(in.debounce, func() {
		in.mu.Lock()
		delete(in.pending, path)
		in.mu.Unlock()
		if in.logger != nil {
			in.logger.Debug("inbox query ready", zap.String("path", path))
		}
		if in.handle != nil {
			in.handle(path)
		}
	})
}

func (in *Inbox) cancel(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.pending[path]; ok {
		t.Stop()
		delete(in.pending, path)
	}
}

func (in *Inbox) watchLocked(dir string) error {
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var paths []string
	if in.recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if err := in.fsw.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := in.fsw.Add(dir); err != nil {
			return err
		}
		paths = append(paths, dir)
	}
	in.watched[dir] = paths
	return nil
}

// AddDirectory adds an inbox directory, creating it if needed. When handleExisting is true, files
// already present are queued as if they had just been dropped in.
func (in *Inbox) AddDirectory(dir string, handleExisting bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	for _, d := range in.dirs {
		if filepath.Clean(d) == abs {
			in.mu.Unlock()
			return nil
		}
	}
	// Before Start the directory is only recorded; Start registers it.
	if in.fsw != nil {
		if err := in.watchLocked(abs); err != nil {
			in.mu.Unlock()
			return err
		}
	}
	in.dirs = append(in.dirs, abs)
	in.mu.Unlock()
	if in.logger != nil {
		in.logger.Debug("inbox directory added", zap.String("path", abs))
	}
	if handleExisting {
		in.queueExisting(abs)
	}
	return nil
}

// RemoveDirectory stops watching dir. Pending files are still handled.
func (in *Inbox) RemoveDirectory(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	in.mu.Lock()
	defer in.mu.Unlock()
	idx := -1
	for i, d := range in.dirs {
		if filepath.Clean(d) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if in.fsw != nil {
		for _, p := range in.watched[abs] {
			_ = in.fsw.Remove(p)
		}
	}
	delete(in.watched, abs)
	in.dirs = append(in.dirs[:idx], in.dirs[idx+1:]...)
	return nil
}

// Directories returns a copy of the inbox directories.
func (in *Inbox) Directories() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.dirs...)
}

// HandleExisting queues every matching file already in the inbox directories.
func (in *Inbox) HandleExisting() {
	for _, dir := range in.Directories() {
		in.queueExisting(dir)
	}
}

func (in *Inbox) queueExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && !in.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if descriptor.ExtensionAllowed(path, in.extensions) {
			in.schedule(path)
		}
		return nil
	})
}

// Pending returns the number of files waiting out their quiet period.
func (in *Inbox) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Stop stops watching and drops pending files.
func (in *Inbox) Stop() {
	in.mu.Lock()
	if !in.started {
		in.mu.Unlock()
		return
	}
	for path, t := range in.pending {
		t.Stop()
		delete(in.pending, path)
	}
	_ = in.fsw.Close()
	in.fsw = nil
	in.started = false
	in.mu.Unlock()
	in.stopOnce.Do(func() { close(in.done) })
}
