// # internal/core/app/scanner.go
package app

import (
	"io/fs"
	"path/filepath"
)

// ScanWorkspace walks the workspace root and returns every supported source
// file, honoring the configured directory and file exclusions.
func (a *App) ScanWorkspace() ([]string, error) {
	var files []string

	err := filepath.WalkDir(a.Config.Paths.WorkspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		base := filepath.Base(path)
		if d.IsDir() {
			for _, g := range a.excludeDirs {
				if g.Match(base) {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !a.Parser.IsSupportedPath(path) {
			return nil
		}
		if !a.IncludeTests && a.Parser.IsTestFile(path) {
			return nil
		}
		for _, g := range a.excludeFiles {
			if g.Match(base) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
