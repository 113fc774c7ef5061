// # internal/watcher/watcher.go
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// relevantOps are the event kinds that can change source file content or
// presence. Chmod is deliberately ignored.
const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

// Watcher follows a workspace tree and reports changed source files in
// debounced batches. The caller decides which files matter through the track
// predicate; directories matching an exclude pattern are pruned before they
// are ever registered with the kernel.
type Watcher struct {
	notifier    *fsnotify.Watcher
	debounce    time.Duration
	excludeDirs []glob.Glob
	track       func(path string) bool
	onChange    func([]string)
	callbackMu  sync.Mutex

	mu      sync.Mutex
	pending map[string]struct{}
	flush   *time.Timer
}

func NewWatcher(debounce time.Duration, excludeDirs []string, track func(string) bool, onChange func([]string)) (*Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		notifier: notifier,
		debounce: debounce,
		track:    track,
		onChange: onChange,
		pending:  make(map[string]struct{}),
	}

	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		w.excludeDirs = append(w.excludeDirs, g)
	}

	return w, nil
}

// Watch registers every directory under the given roots and starts the event
// loop. New directories created later are picked up as they appear.
func (w *Watcher) Watch(roots []string) error {
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			return err
		}
	}

	go w.loop()
	return nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.flush != nil {
		w.flush.Stop()
	}
	w.mu.Unlock()
	return w.notifier.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if w.excludedDir(path) {
			return filepath.SkipDir
		}
		return w.notifier.Add(path)
	})
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.notifier.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.notifier.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.adoptDirectory(event.Name)
			return
		}
	}

	if event.Op&relevantOps == 0 || !w.shouldTrack(event.Name) {
		return
	}
	w.enqueue(event.Name)
}

// adoptDirectory registers a directory that appeared after Watch started and
// reports the files it already contains, since their create events predate
// the kernel watch.
func (w *Watcher) adoptDirectory(dir string) {
	if w.excludedDir(dir) {
		return
	}
	if err := w.addTree(dir); err != nil {
		slog.Warn("failed to watch new directory", "path", dir, "error", err)
		return
	}

	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		if w.shouldTrack(path) {
			w.enqueue(path)
		}
		return nil
	})
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.flush != nil {
		w.flush.Stop()
	}
	w.flush = time.AfterFunc(w.debounce, w.deliver)
}

func (w *Watcher) deliver() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) excludedDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldTrack(path string) bool {
	base := filepath.Base(path)

	// Atomic-write siblings flicker into existence during patch application.
	if strings.HasSuffix(base, ".chisel-tmp") || strings.HasSuffix(base, ".chisel-undo") {
		return false
	}

	return w.track == nil || w.track(path)
}
