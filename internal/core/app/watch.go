// # internal/core/app/watch.go
package app

import (
	"context"
	"os"
	"path/filepath"

	"chisel/internal/shared/observability"
	"chisel/internal/watcher"
)

// WatchWorkspace keeps the graph current while files change on disk. Change
// batches reindex modified files and drop deleted ones; the call blocks
// until ctx is cancelled.
func (a *App) WatchWorkspace(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.trackFile,
		a.handleChanges,
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch([]string{a.Config.Paths.WorkspaceRoot}); err != nil {
		return err
	}

	a.log.Info("watching workspace", "root", a.Config.Paths.WorkspaceRoot,
		"debounce", a.Config.Watch.Debounce)
	<-ctx.Done()
	return ctx.Err()
}

func (a *App) trackFile(path string) bool {
	if !a.Parser.IsSupportedPath(path) {
		return false
	}
	if !a.IncludeTests && a.Parser.IsTestFile(path) {
		return false
	}
	base := filepath.Base(path)
	for _, g := range a.excludeFiles {
		if g.Match(base) {
			return false
		}
	}
	return true
}

func (a *App) handleChanges(paths []string) {
	for _, path := range paths {
		// Editors that rewrite whole trees (branch switches, formatters)
		// can flood the debouncer; pace the reindex instead of dropping.
		if err := a.reindexLimiter.Wait(context.Background(), 1); err != nil {
			return
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			observability.WatcherEventsTotal.Inc()
			if err := a.RemoveFile(path); err != nil {
				a.log.Warn("remove from graph failed", "file", path, "error", err)
			} else {
				a.log.Debug("file removed from graph", "file", path)
			}
			continue
		}

		observability.WatcherEventsTotal.Inc()
		if !a.Parser.HasExtractor(path) {
			continue
		}
		if err := a.ProcessFile(path); err != nil {
			a.log.Warn("reindex failed", "file", path, "error", err)
		} else {
			a.log.Debug("file reindexed", "file", path)
		}
	}
}
