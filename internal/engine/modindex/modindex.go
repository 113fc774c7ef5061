// # internal/engine/modindex/modindex.go
package modindex

import (
	"strings"

	cerrors "chisel/internal/core/errors"
)

// Index is a bidirectional module-path/file-path map. Each file maps to at
// most one module path and vice versa; Insert rejects mappings that would
// break the bijection.
type Index struct {
	sep      string
	byModule map[string]string
	byFile   map[string]string
}

func New(sep string) *Index {
	if sep == "" {
		sep = "::"
	}
	return &Index{
		sep:      sep,
		byModule: make(map[string]string),
		byFile:   make(map[string]string),
	}
}

func (x *Index) Separator() string {
	return x.sep
}

func (x *Index) Insert(modulePath, filePath string) error {
	if modulePath == "" || filePath == "" {
		return cerrors.New(cerrors.CodeInternal, "module path and file path are required")
	}
	if existing, ok := x.byModule[modulePath]; ok && existing != filePath {
		return cerrors.AddContext(cerrors.New(cerrors.CodeConflict, "module path already mapped"), cerrors.CtxPath, existing)
	}
	if existing, ok := x.byFile[filePath]; ok && existing != modulePath {
		return cerrors.AddContext(cerrors.New(cerrors.CodeConflict, "file already mapped"), cerrors.CtxPath, filePath)
	}
	x.byModule[modulePath] = filePath
	x.byFile[filePath] = modulePath
	return nil
}

// Remove drops a mapping, but only if the pair still matches: a module path
// claimed by another file stays untouched.
func (x *Index) Remove(modulePath, filePath string) {
	if existing, ok := x.byModule[modulePath]; ok && existing == filePath {
		delete(x.byModule, modulePath)
	}
	if existing, ok := x.byFile[filePath]; ok && existing == modulePath {
		delete(x.byFile, filePath)
	}
}

func (x *Index) Resolve(modulePath string) (string, bool) {
	file, ok := x.byModule[modulePath]
	return file, ok
}

func (x *Index) ModulePathOf(filePath string) (string, bool) {
	module, ok := x.byFile[filePath]
	return module, ok
}

// ResolveRelative interprets raw against currentFile. Raw may be empty or
// "self" (the current file), start with "self" followed by more segments
// (still the current file; in-module symbols are not tracked separately),
// start with one or more "super" markers (walk the module path up one
// segment per marker, then resolve the rest), or be a plain module path
// (direct lookup). Walking past the module root fails.
func (x *Index) ResolveRelative(currentFile, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "self" {
		return currentFile, true
	}

	segments := strings.Split(raw, x.sep)
	if segments[0] == "self" {
		return currentFile, true
	}

	ancestors := 0
	for len(segments) > 0 && segments[0] == "super" {
		ancestors++
		segments = segments[1:]
	}
	if ancestors == 0 {
		return x.Resolve(raw)
	}

	module, ok := x.ModulePathOf(currentFile)
	if !ok {
		return "", false
	}
	for i := 0; i < ancestors; i++ {
		idx := strings.LastIndex(module, x.sep)
		if idx < 0 {
			// Ancestor count exceeds module depth; never cross the
			// package root.
			return "", false
		}
		module = module[:idx]
	}

	if len(segments) > 0 {
		module = module + x.sep + strings.Join(segments, x.sep)
	}
	return x.Resolve(module)
}
