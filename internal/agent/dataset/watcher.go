package dataset

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	logx "github.com/spacecopilot/server/pkg/logger"
)

// Reloader drops cached data.
type Reloader interface {
	Reload()
}

// watchRule reloads targets for the paths it matches.
type watchRule struct {
	match   func(abs string) bool
	targets []Reloader
}

// Watcher reloads targets whenever a watched path changes. Parent
// directories are watched so files replaced by rename are seen.
type Watcher struct {
	watcher *fsnotify.Watcher
	rules   []watchRule
}

// NewWatcher creates a Watcher with nothing watched yet. Register paths
// with WatchFiles and WatchDir before calling Run.
func NewWatcher() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{watcher: w}, nil
}

// WatchFiles reloads targets when one of files changes.
func (w *Watcher) WatchFiles(files []string, targets ...Reloader) error {
	watched := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = struct{}{}
		w.add(filepath.Dir(abs))
	}
	w.rules = append(w.rules, watchRule{
		match: func(abs string) bool {
			_, ok := watched[abs]
			return ok
		},
		targets: targets,
	})
	return nil
}

// WatchDir reloads targets when a file directly inside dir with the given
// extension changes. An empty ext matches every file.
func (w *Watcher) WatchDir(dir, ext string, targets ...Reloader) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.add(abs)
	w.rules = append(w.rules, watchRule{
		match: func(path string) bool {
			return filepath.Dir(path) == abs && (ext == "" || strings.EqualFold(filepath.Ext(path), ext))
		},
		targets: targets,
	})
	return nil
}

func (w *Watcher) add(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		logx.Component("dataset_watcher").Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
	}
}

// Run blocks until ctx is done or the watcher is closed, reloading the
// targets of every rule a relevant event matches.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			targets := w.targetsFor(event)
			if len(targets) == 0 {
				continue
			}
			logx.Component("dataset_watcher").Info().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("data file changed")
			for _, t := range targets {
				t.Reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logx.Component("dataset_watcher").Warn().Err(err).Msg("watch error")
		}
	}
}

// targetsFor returns the targets of every matching rule, each target once.
func (w *Watcher) targetsFor(event fsnotify.Event) []Reloader {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return nil
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return nil
	}
	var out []Reloader
	seen := make(map[Reloader]struct{})
	for _, r := range w.rules {
		if !r.match(abs) {
			continue
		}
		for _, t := range r.targets {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
