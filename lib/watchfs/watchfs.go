// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package watchfs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/greenlight-ci/greenlight/lib/clock"
	"github.com/greenlight-ci/greenlight/lib/event"
)

// DefaultDebounce is the coalescing window applied when Config leaves
// Debounce zero. Long enough to absorb an editor's save dance or a
// git checkout, short enough that a rerun feels immediate.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Root is the directory tree to watch, typically the workspace.
	Root string

	// Ignore holds additional glob patterns (the workflow filter
	// dialect: *, **, ?) matched against slash-separated paths
	// relative to Root. Matching paths never appear in batches, and
	// matching directories are not descended into. Negated patterns
	// are rejected.
	Ignore []string

	// Debounce is the coalescing window. Zero means DefaultDebounce.
	Debounce time.Duration

	// Clock drives the debounce timing. Nil means the real clock.
	Clock clock.Clock

	// Logger receives watcher diagnostics. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Watcher reports filesystem change batches for a directory tree.
type Watcher struct {
	root     string
	ignore   []string
	debounce time.Duration
	clock    clock.Clock
	logger   *slog.Logger

	notify  *fsnotify.Watcher
	changes chan []string
}

// New creates a watcher rooted at cfg.Root and registers the existing
// directory tree. Call Run to start delivering batches; Run owns the
// watcher's resources and releases them when it returns.
func New(cfg Config) (*Watcher, error) {
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", cfg.Root)
	}
	for _, pattern := range cfg.Ignore {
		if _, err := event.MatchGlob(pattern, ""); err != nil {
			return nil, fmt.Errorf("ignore pattern: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tick := cfg.Clock
	if tick == nil {
		tick = clock.Real()
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	w := &Watcher{
		root:     cfg.Root,
		ignore:   cfg.Ignore,
		debounce: debounce,
		clock:    tick,
		logger:   logger,
		notify:   notify,
		changes:  make(chan []string, 1),
	}
	if err := w.addTree(cfg.Root); err != nil {
		notify.Close()
		return nil, err
	}
	return w, nil
}

// Changes returns the batch channel. Each batch holds the sorted,
// deduplicated workspace-relative paths that changed within one
// debounce window. The channel is closed when Run returns.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Run delivers change batches until the context is cancelled. It
// closes the batch channel and the underlying filesystem watcher on
// the way out, and may be called at most once.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.changes)
	defer w.notify.Close()

	pending := make(map[string]struct{})
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.notify.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev, pending)
			if len(pending) > 0 && flush == nil {
				flush = w.clock.After(w.debounce)
			}

		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", "error", err)

		case <-flush:
			flush = nil
			batch := make([]string, 0, len(pending))
			for rel := range pending {
				batch = append(batch, rel)
			}
			pending = make(map[string]struct{})
			sort.Strings(batch)
			select {
			case w.changes <- batch:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// handleEvent filters one filesystem event and records qualifying
// paths in the pending batch. Newly created directories are added to
// the watch set before anything else, so files written into them
// right after creation still produce events.
func (w *Watcher) handleEvent(ev fsnotify.Event, pending map[string]struct{}) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	rel := w.relPath(ev.Name)
	if rel == "" || w.ignored(rel) {
		return
	}
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watching new directory", "path", rel, "error", err)
			}
		}
	}
	pending[rel] = struct{}{}
}

// addTree registers path and every directory beneath it, skipping
// ignored subtrees. Walk errors on individual entries are tolerated:
// files vanish mid-walk all the time.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		rel := w.relPath(current)
		if rel != "" && rel != "." && w.ignored(rel) {
			return fs.SkipDir
		}
		if err := w.notify.Add(current); err != nil {
			return fmt.Errorf("watching %s: %w", current, err)
		}
		return nil
	})
}

// relPath converts an absolute event path to a slash-separated path
// relative to the root. Returns "" for paths outside the root.
func (w *Watcher) relPath(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}

// ignored reports whether a relative path is excluded from batches:
// the run-state and git trees, editor temp files, and configured
// ignore globs.
func (w *Watcher) ignored(rel string) bool {
	first, _, _ := strings.Cut(rel, "/")
	if first == ".git" || first == ".greenlight" {
		return true
	}
	if editorTemp(path.Base(rel)) {
		return true
	}
	for _, pattern := range w.ignore {
		if ok, err := event.MatchGlob(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// editorTemp recognizes the scratch files editors create around
// saves: backup suffixes, vim swap files, emacs autosave and lock
// names, and vim's "4913" write-permission probe.
func editorTemp(base string) bool {
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasPrefix(base, ".#"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "4913":
		return true
	}
	return false
}
