// # internal/engine/parser/types.go
package parser

import (
	"strings"
	"time"
)

type SymbolKind string

const (
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindInterface   SymbolKind = "interface"
	KindEnum        SymbolKind = "enum"
	KindTrait       SymbolKind = "trait"
	KindImpl        SymbolKind = "impl"
	KindModule      SymbolKind = "module"
	KindVariable    SymbolKind = "variable"
	KindConstructor SymbolKind = "constructor"
	KindTypeAlias   SymbolKind = "type_alias"
)

type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityRestricted Visibility = "restricted"
	VisibilityPrivate    Visibility = "private"
)

// Symbol is one physical declaration. Nested declarations appear as separate
// symbols whose ModulePath carries the container chain.
type Symbol struct {
	Name            string
	Kind            SymbolKind
	Language        string
	FilePath        string
	StartByte       uint
	EndByte         uint
	StartLine       int
	EndLine         int
	StartCol        int
	EndCol          int
	Visibility      Visibility
	VisibilityScope string // only set for VisibilityRestricted, e.g. "crate"
	ModulePath      string
	FullName        string
}

type ImportKind string

const (
	ImportQualified  ImportKind = "qualified"
	ImportRelative   ImportKind = "relative"
	ImportWildcard   ImportKind = "wildcard"
	ImportSideEffect ImportKind = "side_effect"
	ImportTypeOnly   ImportKind = "type_only"
)

// ImportedName is one binding brought in by an import statement.
type ImportedName struct {
	Name  string // name in the source module
	Alias string // local binding when renamed; empty otherwise
}

// Local returns the name the import binds in the importing file.
func (n ImportedName) Local() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Name
}

// Import is one import statement. Statements that bind several names expand
// to one Import carrying all names; they share the statement's byte span.
type Import struct {
	FilePath   string
	Language   string
	Kind       ImportKind
	Segments   []string // target path segments with relative markers stripped
	Ancestors  int      // leading super-style markers for relative imports
	SelfRef    bool     // self-import (self::x, from . import x)
	Names      []ImportedName
	IsGlob     bool
	IsReexport bool
	StartByte  uint
	EndByte    uint
	Line       int
}

// Module joins the target segments with the language's path separator.
func (im *Import) Module(sep string) string {
	return strings.Join(im.Segments, sep)
}

// RawPath renders the import target in marker form ("super<sep>...<sep>rest")
// as consumed by modindex.ResolveRelative.
func (im *Import) RawPath(sep string) string {
	parts := make([]string, 0, im.Ancestors+len(im.Segments)+1)
	if im.SelfRef {
		parts = append(parts, "self")
	}
	for i := 0; i < im.Ancestors; i++ {
		parts = append(parts, "super")
	}
	parts = append(parts, im.Segments...)
	return strings.Join(parts, sep)
}

// Binds reports whether the import makes ident visible under that exact name.
func (im *Import) Binds(ident string) bool {
	for _, n := range im.Names {
		if n.Local() == ident {
			return true
		}
	}
	return false
}

// FileFacts is the language-agnostic extraction result for one source file.
type FileFacts struct {
	Path       string
	Language   string
	ModulePath string
	Symbols    []Symbol
	Imports    []Import
	ParsedAt   time.Time
}

// SymbolNamed returns the first symbol declared under name, top-level first.
func (f *FileFacts) SymbolNamed(name string) (*Symbol, bool) {
	for i := range f.Symbols {
		if f.Symbols[i].Name == name {
			return &f.Symbols[i], true
		}
	}
	return nil, false
}

// FirstSymbol returns the first symbol declared in the file.
func (f *FileFacts) FirstSymbol() (*Symbol, bool) {
	if len(f.Symbols) == 0 {
		return nil, false
	}
	first := 0
	for i := range f.Symbols {
		if f.Symbols[i].StartByte < f.Symbols[first].StartByte {
			first = i
		}
	}
	return &f.Symbols[first], true
}
