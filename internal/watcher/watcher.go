// Package watcher implements native filesystem notification (§4.H): a
// recursive fsnotify watch over a root directory, per-path debouncing,
// and a batch-delayed reindex scheduler fed by a single bounded event
// queue.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/repoindex/internal/config"
	"github.com/standardbeagle/repoindex/internal/debug"
	repoerrors "github.com/standardbeagle/repoindex/internal/errors"
	"github.com/standardbeagle/repoindex/internal/types"
)

// Config controls watcher and scheduler behavior, per spec §4.H / §6.
type Config struct {
	DebounceMs      int      // per-path debounce window
	BatchDelayMs    int      // scheduler batch collection window
	WatchExtensions []string // e.g. ".go", ".ts"; empty means "all extensions"
	IgnorePatterns  []string // doublestar globs, in addition to .gitignore
	Recursive       bool
	QueueCapacity   int // bounded event channel capacity; 0 uses a default
}

// DefaultConfig returns the spec's default watcher settings.
func DefaultConfig() Config {
	return Config{
		DebounceMs:    types.DefaultWatchDebounceMs,
		BatchDelayMs:  types.DefaultBatchDelayMs,
		Recursive:     true,
		QueueCapacity: 1024,
	}
}

// ReindexFunc is the scheduler's reindex callback, invoked once per batch
// with the deduplicated set of events collected during that batch's
// window.
type ReindexFunc func(batch []types.FileChange)

// Watcher drives a recursive fsnotify watch, per-path debouncing, and a
// batch-delayed reindex scheduler on top of a single bounded event queue.
type Watcher struct {
	root   string
	cfg    Config
	fsw    *fsnotify.Watcher
	ignore *config.GitignoreParser

	mu            sync.Mutex
	watchedDirs   map[string]bool
	debounceTimer map[string]*time.Timer
	lastEvent     map[string]types.ChangeType

	queue chan types.FileChange

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	terminalMu sync.Mutex
	terminal   error

	onTerminalError func(error)
}

// New constructs a Watcher rooted at root. Call Start to begin watching.
func New(root string, cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if cfg.DebounceMs <= 0 {
		cfg.DebounceMs = types.DefaultWatchDebounceMs
	}
	if cfg.BatchDelayMs <= 0 {
		cfg.BatchDelayMs = types.DefaultBatchDelayMs
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 1024
	}

	ignore := config.NewGitignoreParser()
	_ = ignore.LoadGitignore(root) // absence of .gitignore is not an error

	absRoot, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	return &Watcher{
		root:          absRoot,
		cfg:           cfg,
		fsw:           fsw,
		ignore:        ignore,
		watchedDirs:   make(map[string]bool),
		debounceTimer: make(map[string]*time.Timer),
		lastEvent:     make(map[string]types.ChangeType),
		queue:         make(chan types.FileChange, cfg.QueueCapacity),
	}, nil
}

// OnTerminalError registers a callback invoked when the root becomes
// inaccessible and the watcher stops itself.
func (w *Watcher) OnTerminalError(fn func(error)) {
	w.onTerminalError = fn
}

// Events returns the bounded, drop-oldest channel of debounced,
// filtered filesystem changes. The scheduler is the intended consumer;
// tests may also drain it directly.
func (w *Watcher) Events() <-chan types.FileChange {
	return w.queue
}

// Start installs watches recursively from the root and begins emitting
// events. It returns once the initial watch tree is installed.
func (w *Watcher) Start() error {
	if _, err := os.Stat(w.root); err != nil {
		return repoerrors.NewScanError(w.root, err)
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	if err := w.addWatches(w.root, make(map[string]bool)); err != nil {
		w.cancel()
		return err
	}

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop cancels all pending debounce timers, closes the underlying
// fsnotify handle, and waits for internal goroutines to exit.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}

	w.mu.Lock()
	for path, timer := range w.debounceTimer {
		timer.Stop()
		delete(w.debounceTimer, path)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// addWatches recursively installs fsnotify watches under dir, skipping
// paths the ignore set rejects and directories already visited (guards
// against symlink cycles).
func (w *Watcher) addWatches(dir string, visited map[string]bool) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = dir
	}
	if visited[resolved] {
		return nil
	}
	visited[resolved] = true

	if w.shouldIgnoreDir(dir) {
		return nil
	}

	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.mu.Lock()
	w.watchedDirs[dir] = true
	w.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		debug.LogWatch("cannot read directory %s, unregistering: %v", dir, err)
		_ = w.fsw.Remove(dir)
		w.mu.Lock()
		delete(w.watchedDirs, dir)
		w.mu.Unlock()
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		child := filepath.Join(dir, entry.Name())
		if err := w.addWatches(child, visited); err != nil {
			debug.LogWatch("directory %s failed, continuing: %v", child, err)
		}
	}
	return nil
}

func (w *Watcher) shouldIgnoreDir(dir string) bool {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil {
		rel = dir
	}
	if rel == "." {
		return false
	}
	base := filepath.Base(dir)
	if base == ".git" || base == "node_modules" {
		return true
	}
	if w.ignore != nil && w.ignore.ShouldIgnore(rel, true) {
		return true
	}
	return matchesAny(w.cfg.IgnorePatterns, rel)
}

func matchesAny(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// processEvents is the sole fsnotify consumer: it classifies raw events,
// installs watches on newly created directories, and schedules
// per-path debounce timers. It exits when the fsnotify channels close.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	healthTicker := time.NewTicker(5 * time.Second)
	defer healthTicker.Stop()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatch("fsnotify error: %v", err)
		case <-healthTicker.C:
			if _, err := os.Stat(w.root); err != nil {
				w.reportTerminalError(repoerrors.NewScanError(w.root, err))
				return
			}
		case <-w.ctx.Done():
			return
		}
	}
}

// reportTerminalError records the terminal error, notifies the
// registered callback, and tears down the watcher asynchronously so the
// caller (running inside processEvents) does not deadlock on Stop's
// wg.Wait.
func (w *Watcher) reportTerminalError(err error) {
	w.terminalMu.Lock()
	if w.terminal != nil {
		w.terminalMu.Unlock()
		return
	}
	w.terminal = err
	w.terminalMu.Unlock()

	debug.LogWatch("root inaccessible, stopping: %v", err)
	if w.onTerminalError != nil {
		w.onTerminalError(err)
	}
	go func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.fsw.Close()
	}()
}

// TerminalError returns the error that caused the watcher to stop
// itself, if any.
func (w *Watcher) TerminalError() error {
	w.terminalMu.Lock()
	defer w.terminalMu.Unlock()
	return w.terminal
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)
	exists := statErr == nil

	if exists && info.IsDir() {
		if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
			w.mu.Lock()
			already := w.watchedDirs[event.Name]
			w.mu.Unlock()
			if !already {
				if err := w.addWatches(event.Name, make(map[string]bool)); err != nil {
					debug.LogWatch("failed to watch new directory %s: %v", event.Name, err)
				}
			}
		}
		return
	}

	if !w.shouldProcessPath(event.Name) {
		return
	}

	var changeType types.ChangeType
	switch {
	case !exists:
		changeType = types.ChangeDeleted
	case event.Op&fsnotify.Rename != 0:
		changeType = types.ChangeAdded
	default:
		changeType = types.ChangeModified
	}

	w.scheduleDebounced(event.Name, changeType)
}

func (w *Watcher) shouldProcessPath(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		rel = path
	}
	if w.ignore != nil && w.ignore.ShouldIgnore(rel, false) {
		return false
	}
	if matchesAny(w.cfg.IgnorePatterns, rel) {
		return false
	}
	if len(w.cfg.WatchExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.cfg.WatchExtensions {
		if strings.ToLower(want) == ext {
			return true
		}
	}
	return false
}

// scheduleDebounced resets path's debounce timer so that only the last
// event observed within the debounce window is ever emitted, per §4.H.
func (w *Watcher) scheduleDebounced(path string, ct types.ChangeType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastEvent[path] = ct

	if timer, exists := w.debounceTimer[path]; exists {
		timer.Stop()
	}
	w.debounceTimer[path] = time.AfterFunc(time.Duration(w.cfg.DebounceMs)*time.Millisecond, func() {
		w.emit(path)
	})
}

func (w *Watcher) emit(path string) {
	w.mu.Lock()
	ct, ok := w.lastEvent[path]
	delete(w.lastEvent, path)
	delete(w.debounceTimer, path)
	w.mu.Unlock()
	if !ok {
		return
	}

	change := types.FileChange{Type: ct, Path: path}

	select {
	case w.queue <- change:
	default:
		// Queue full: drop the oldest pending event to make room, per
		// the bounded drop-oldest overflow policy (REDESIGN FLAGS).
		select {
		case <-w.queue:
		default:
		}
		select {
		case w.queue <- change:
		default:
		}
	}
}
