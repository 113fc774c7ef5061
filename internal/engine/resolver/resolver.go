// # internal/engine/resolver/resolver.go
package resolver

import (
	"sort"
	"strings"

	"chisel/internal/engine/modindex"
	"chisel/internal/engine/parser"
)

type localKey struct {
	file string
	name string
}

type localSymbol struct {
	originalName string
	kind         parser.SymbolKind
}

// Resolution names the defining file and original symbol name for an
// identifier. LowConfidence marks results produced by the renamed-re-export
// fallback, which picks the first symbol of the target file.
type Resolution struct {
	FilePath      string
	OriginalName  string
	Kind          parser.SymbolKind
	LowConfidence bool
}

// Resolver answers "which file defines this identifier" for a set of
// registered files. It is rebuilt from fresh facts on every operation and
// holds no state beyond them.
type Resolver struct {
	locals  map[localKey]localSymbol
	imports map[string][]parser.Import
	facts   map[string]*parser.FileFacts
	indexes map[string]*modindex.Index // per language
	seps    map[string]string
}

func New(registry map[string]parser.LanguageSpec) *Resolver {
	r := &Resolver{
		locals:  make(map[localKey]localSymbol),
		imports: make(map[string][]parser.Import),
		facts:   make(map[string]*parser.FileFacts),
		indexes: make(map[string]*modindex.Index),
		seps:    make(map[string]string),
	}
	for _, spec := range registry {
		r.seps[spec.Name] = spec.PathSeparator
	}
	return r
}

// AddFile registers one file's facts: its locals, its imports, and its
// module path mapping. Module path collisions (several files in one Go
// package) keep the first mapping.
func (r *Resolver) AddFile(facts *parser.FileFacts) {
	r.facts[facts.Path] = facts
	r.imports[facts.Path] = facts.Imports

	for i := range facts.Symbols {
		sym := &facts.Symbols[i]
		key := localKey{file: facts.Path, name: sym.Name}
		if _, exists := r.locals[key]; !exists {
			r.locals[key] = localSymbol{originalName: sym.Name, kind: sym.Kind}
		}
	}

	if facts.ModulePath != "" {
		_ = r.indexFor(facts.Language).Insert(facts.ModulePath, facts.Path)
	}
}

// RemoveFile drops a file's locals, imports, and facts so it can be
// re-registered from fresh content or forgotten after deletion.
func (r *Resolver) RemoveFile(path string) {
	facts, ok := r.facts[path]
	if !ok {
		return
	}
	for i := range facts.Symbols {
		delete(r.locals, localKey{file: path, name: facts.Symbols[i].Name})
	}
	if facts.ModulePath != "" {
		r.indexFor(facts.Language).Remove(facts.ModulePath, path)
	}
	delete(r.imports, path)
	delete(r.facts, path)
}

func (r *Resolver) indexFor(language string) *modindex.Index {
	idx, ok := r.indexes[language]
	if !ok {
		idx = modindex.New(r.seps[language])
		r.indexes[language] = idx
	}
	return idx
}

// Index exposes the module path index for one language.
func (r *Resolver) Index(language string) *modindex.Index {
	return r.indexFor(language)
}

func (r *Resolver) Facts(file string) (*parser.FileFacts, bool) {
	facts, ok := r.facts[file]
	return facts, ok
}

// Files returns every registered file path in sorted order.
func (r *Resolver) Files() []string {
	files := make([]string, 0, len(r.facts))
	for path := range r.facts {
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

// Separator returns the module path separator for a language.
func (r *Resolver) Separator(language string) string {
	return r.seps[language]
}

// ResolveSymbol finds the definition of identifier as seen from currentFile.
// Precedence is fixed: local declarations win over explicit imports, which
// win over glob imports; this mirrors shadowing order in every supported
// language. A nil result means the identifier is unknown here.
func (r *Resolver) ResolveSymbol(currentFile, identifier string) *Resolution {
	if local, ok := r.locals[localKey{file: currentFile, name: identifier}]; ok {
		return &Resolution{
			FilePath:     currentFile,
			OriginalName: local.originalName,
			Kind:         local.kind,
		}
	}

	imports := r.imports[currentFile]

	for i := range imports {
		imp := &imports[i]
		if imp.IsGlob || !imp.Binds(identifier) {
			continue
		}
		target, ok := r.resolveImportTarget(currentFile, imp)
		if !ok {
			continue
		}
		if res := r.lookupInTarget(target, identifier, imp); res != nil {
			return res
		}
	}

	for i := range imports {
		imp := &imports[i]
		if !imp.IsGlob {
			continue
		}
		target, ok := r.resolveImportTarget(currentFile, imp)
		if !ok {
			continue
		}
		if local, ok := r.locals[localKey{file: target, name: identifier}]; ok {
			return &Resolution{
				FilePath:     target,
				OriginalName: local.originalName,
				Kind:         local.kind,
			}
		}
	}

	return nil
}

// ResolveImport maps an import statement to the file it targets, when that
// file is registered.
func (r *Resolver) ResolveImport(currentFile string, imp *parser.Import) (string, bool) {
	return r.resolveImportTarget(currentFile, imp)
}

// resolveImportTarget maps an import statement to its defining file.
// Languages without extraction support never register imports, so anything
// present here is resolvable in principle; a false return means the target
// file is outside the workspace (stdlib, third-party).
func (r *Resolver) resolveImportTarget(currentFile string, imp *parser.Import) (string, bool) {
	sep := r.seps[imp.Language]
	idx := r.indexFor(imp.Language)

	switch imp.Kind {
	case parser.ImportSideEffect, parser.ImportTypeOnly:
		return "", false
	case parser.ImportRelative:
		return idx.ResolveRelative(currentFile, imp.RawPath(sep))
	default:
		if imp.SelfRef {
			return currentFile, true
		}
		if file, ok := idx.Resolve(imp.Module(sep)); ok {
			return file, true
		}
		// Go import paths carry the module prefix from go.mod while the
		// index is keyed by workspace-relative paths; retry with leading
		// segments stripped.
		if imp.Language == "go" {
			for i := 1; i < len(imp.Segments); i++ {
				if file, ok := idx.Resolve(strings.Join(imp.Segments[i:], sep)); ok {
					return file, true
				}
			}
		}
		return "", false
	}
}

// lookupInTarget finds identifier's original declaration in the target file.
// The import may bind it under an alias; when the aliased name is absent we
// fall back to the target's first declared symbol, which covers renamed
// re-exports at the cost of confidence.
func (r *Resolver) lookupInTarget(target, identifier string, imp *parser.Import) *Resolution {
	var originalName string
	for _, n := range imp.Names {
		if n.Local() == identifier {
			originalName = n.Name
			break
		}
	}
	if originalName == "" {
		originalName = identifier
	}

	if local, ok := r.locals[localKey{file: target, name: originalName}]; ok {
		return &Resolution{
			FilePath:     target,
			OriginalName: local.originalName,
			Kind:         local.kind,
		}
	}

	facts, ok := r.facts[target]
	if !ok {
		return nil
	}
	first, ok := facts.FirstSymbol()
	if !ok {
		return nil
	}
	return &Resolution{
		FilePath:      target,
		OriginalName:  first.Name,
		Kind:          first.Kind,
		LowConfidence: true,
	}
}
