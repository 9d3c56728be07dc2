package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/inlay-dev/inlay/pkg/utils"
)

// Change reports a companion file that was written or created on disk.
type Change struct {
	Path   string
	Target string
}

// Watcher observes a project tree and emits a Change whenever a companion
// file is saved. Rapid rewrites of the same file are debounced so an
// editor's save-then-fsync double event yields a single change.
type Watcher struct {
	fsw      *fsnotify.Watcher
	changes  chan Change
	done     chan struct{}
	logger   *utils.Logger
	debounce time.Duration
}

// NewWatcher starts watching root and all its subdirectories.
func NewWatcher(root string, logger *utils.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		changes:  make(chan Change, 16),
		done:     make(chan struct{}),
		logger:   logger,
		debounce: 100 * time.Millisecond,
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	go w.loop()
	return w, nil
}

// Changes is the stream of companion file saves.
func (w *Watcher) Changes() <-chan Change { return w.changes }

// Close stops the watcher and closes the change stream.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	defer close(w.changes)
	lastSeen := make(map[string]time.Time)

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directories need to be added so nested companions
				// are picked up.
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = w.fsw.Add(ev.Name)
				}
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 || !IsCompanion(ev.Name) {
				continue
			}
			now := time.Now()
			if prev, ok := lastSeen[ev.Name]; ok && now.Sub(prev) < w.debounce {
				continue
			}
			lastSeen[ev.Name] = now
			select {
			case w.changes <- Change{Path: ev.Name, Target: CompanionTarget(ev.Name)}:
			default:
				w.logger.Logf("dropping companion change for %s: consumer is behind", ev.Name)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err)
		}
	}
}
