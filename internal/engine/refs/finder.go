// # internal/engine/refs/finder.go
package refs

import (
	"os"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/engine/parser"
	"chisel/internal/engine/resolver"
	"chisel/internal/engine/scope"
)

type Context string

const (
	ContextFunctionCall     Context = "function_call"
	ContextTypeReference    Context = "type_reference"
	ContextIdentifier       Context = "identifier"
	ContextImportStatement  Context = "import_statement"
	ContextFieldAccess      Context = "field_access"
	ContextGenericParameter Context = "generic_parameter"
)

// Reference is one syntactic occurrence of a symbol name. IsQualified is
// only meaningful for ContextFunctionCall and distinguishes "pkg.F()" style
// call targets from bare "F()".
type Reference struct {
	FilePath    string
	StartByte   uint
	EndByte     uint
	Line        int
	Column      int
	Context     Context
	IsQualified bool
}

// ReferenceSet carries all found references for one definition. When
// HasGlobAmbiguity is set, a wildcard import somewhere in the search space
// means the set is a lower-confidence estimate: globs cannot be enumerated
// without full semantic analysis.
type ReferenceSet struct {
	Definition       parser.Symbol
	References       []Reference
	HasGlobAmbiguity bool
}

// Finder locates references to a resolved symbol definition, first in the
// defining file, then across every registered file whose imports plausibly
// reach the definition.
type Finder struct {
	parser   *parser.Parser
	resolver *resolver.Resolver
	readFile func(string) ([]byte, error)
}

func NewFinder(p *parser.Parser, r *resolver.Resolver) *Finder {
	return &Finder{
		parser:   p,
		resolver: r,
		readFile: os.ReadFile,
	}
}

// FindReferences runs the same-file pass over the definition's file and, for
// non-private symbols, the cross-file pass over all registered files.
// References are returned sorted by descending byte offset within each file
// so deletions can be applied without offset drift.
func (f *Finder) FindReferences(def *parser.Symbol) (*ReferenceSet, error) {
	set := &ReferenceSet{Definition: *def}

	if err := f.scanFile(def.FilePath, def.Language, def.Name, def, set); err != nil {
		return nil, err
	}

	if def.Visibility != parser.VisibilityPrivate {
		if err := f.crossFilePass(def, set); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(set.References, func(i, j int) bool {
		a, b := set.References[i], set.References[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.StartByte > b.StartByte
	})
	return set, nil
}

// crossFilePass scans every registered file whose imports plausibly bind the
// definition, including files that reach it through a re-exporting module.
// Each candidate is scanned under the local name its import binds.
func (f *Finder) crossFilePass(def *parser.Symbol, set *ReferenceSet) error {
	defFacts, ok := f.resolver.Facts(def.FilePath)
	if !ok {
		return nil
	}

	// Files that re-publish the symbol, mapped to the name they publish
	// it under.
	reexports := map[string]string{}
	for _, path := range f.resolver.Files() {
		facts, _ := f.resolver.Facts(path)
		if facts == nil || path == def.FilePath {
			continue
		}
		for i := range facts.Imports {
			imp := &facts.Imports[i]
			if !imp.IsReexport {
				continue
			}
			target, ok := f.resolver.ResolveImport(path, imp)
			if !ok || target != def.FilePath {
				continue
			}
			for _, n := range imp.Names {
				if n.Name == def.Name {
					reexports[path] = n.Local()
				}
			}
		}
	}

	for _, path := range f.resolver.Files() {
		if path == def.FilePath {
			continue
		}
		facts, _ := f.resolver.Facts(path)
		if facts == nil || facts.Language != def.Language {
			continue
		}

		localName, matched := f.bindingName(path, facts, def, defFacts, reexports, set)
		if !matched {
			continue
		}
		if err := f.scanFile(path, facts.Language, localName, def, set); err != nil {
			return err
		}
	}
	return nil
}

// bindingName decides whether a file's imports plausibly reference the
// definition, and under which local identifier. Wildcard imports anywhere in
// the candidate set mark the whole result as glob-ambiguous.
func (f *Finder) bindingName(path string, facts *parser.FileFacts, def *parser.Symbol, defFacts *parser.FileFacts, reexports map[string]string, set *ReferenceSet) (string, bool) {
	sep := f.resolver.Separator(def.Language)

	localName := ""
	matched := false
	for i := range facts.Imports {
		imp := &facts.Imports[i]
		if imp.IsGlob {
			set.HasGlobAmbiguity = true
		}

		target, resolved := f.resolver.ResolveImport(path, imp)
		if resolved {
			if target == def.FilePath {
				if imp.IsGlob {
					matched = true
					if localName == "" {
						localName = def.Name
					}
					continue
				}
				for _, n := range imp.Names {
					if n.Name == def.Name {
						matched = true
						localName = n.Local()
					} else if bindsModuleNamespace(imp, n.Name) {
						// Namespace imports (Go packages, "import a.b")
						// expose every public symbol under the raw name.
						matched = true
						if localName == "" {
							localName = def.Name
						}
					}
				}
				continue
			}
			if published, ok := reexports[target]; ok {
				if imp.IsGlob || imp.Binds(published) {
					matched = true
					localName = published
				}
				continue
			}
		}

		// Unresolved imports still count when their module path is an
		// ancestor or descendant of the definition's module.
		if defFacts.ModulePath != "" && moduleRelated(imp.Module(sep), defFacts.ModulePath, sep) {
			matched = true
			if localName == "" {
				localName = def.Name
			}
		}
	}
	return localName, matched
}

// bindsModuleNamespace reports whether an imported name is the module
// itself rather than one of its symbols.
func bindsModuleNamespace(imp *parser.Import, name string) bool {
	if len(imp.Segments) == 0 {
		return false
	}
	return name == imp.Segments[0] || name == imp.Segments[len(imp.Segments)-1]
}

func moduleRelated(a, b, sep string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}

// scanFile parses one file and collects references to name in it.
func (f *Finder) scanFile(path, language, name string, def *parser.Symbol, set *ReferenceSet) error {
	content, err := f.readFile(path)
	if err != nil {
		return cerrors.AddContext(
			cerrors.Wrap(err, cerrors.CodeInternal, "reading file for reference scan"),
			cerrors.CtxPath, path)
	}

	tree, err := f.parser.ParseTree(language, content)
	if err != nil {
		return cerrors.AddContext(err, cerrors.CtxPath, path)
	}
	defer tree.Close()

	scopes := scope.Build(tree.RootNode(), content, language)
	f.walkTree(tree.RootNode(), content, path, language, name, def, scopes, set)
	return nil
}

func (f *Finder) walkTree(node *sitter.Node, source []byte, path, language, name string, def *parser.Symbol, scopes *scope.Map, set *ReferenceSet) {
	if node.ChildCount() == 0 {
		f.tryMatch(node, source, path, language, name, def, scopes, set)
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		f.walkTree(node.Child(i), source, path, language, name, def, scopes, set)
	}
}

func (f *Finder) tryMatch(node *sitter.Node, source []byte, path, language, name string, def *parser.Symbol, scopes *scope.Map, set *ReferenceSet) {
	if !isIdentifierKind(node.Kind()) {
		return
	}
	start := uint(node.StartByte())
	end := uint(node.EndByte())
	if string(source[start:end]) != name {
		return
	}

	// The definition's own span never counts as a reference to itself.
	if path == def.FilePath && start >= def.StartByte && start < def.EndByte {
		return
	}

	// Parameter names in a signature are declarations, not references.
	if isParamDeclaration(node) {
		return
	}

	context, qualified := classify(node, language)

	// Shadow suppression uses the raw name, never the qualified prefix.
	// Import statements and field accesses are exempt: a field name is
	// resolved against its operand's type, not the lexical scope.
	if context != ContextImportStatement && context != ContextFieldAccess {
		if scopes.IsShadowedAt(name, start) {
			return
		}
	}

	set.References = append(set.References, Reference{
		FilePath:    path,
		StartByte:   start,
		EndByte:     end,
		Line:        int(node.StartPosition().Row) + 1,
		Column:      int(node.StartPosition().Column) + 1,
		Context:     context,
		IsQualified: qualified,
	})
}

func isParamDeclaration(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "parameter":
		return isFieldNode(parent, "pattern", node)
	case "parameter_declaration", "variadic_parameter_declaration", "default_parameter", "typed_default_parameter":
		return isFieldNode(parent, "name", node)
	case "parameters", "lambda_parameters":
		return node.Kind() == "identifier"
	case "typed_parameter":
		return node.StartByte() == parent.StartByte()
	}
	return false
}

func isIdentifierKind(kind string) bool {
	switch kind {
	case "identifier", "type_identifier", "field_identifier",
		"package_identifier", "shorthand_field_identifier", "property_identifier":
		return true
	}
	return false
}

// classify tags a matched node with its syntactic role. Call targets are
// detected by comparing the node (or its qualified wrapper) against the
// enclosing call expression's function field.
func classify(node *sitter.Node, language string) (Context, bool) {
	if withinImport(node) {
		return ContextImportStatement, false
	}

	parent := node.Parent()
	if parent == nil {
		return ContextIdentifier, false
	}

	// Bare call target: F().
	if isCallNode(parent.Kind()) && isFieldNode(parent, "function", node) {
		return ContextFunctionCall, false
	}

	// Qualified wrapper: pkg.F, obj.method, path::F.
	if isQualifierNode(parent.Kind()) {
		if grand := parent.Parent(); grand != nil && isCallNode(grand.Kind()) && isFieldNode(grand, "function", parent) {
			if isFinalSegment(parent, node) {
				return ContextFunctionCall, true
			}
			return ContextIdentifier, false
		}
		if isFinalSegment(parent, node) && node.Kind() == "field_identifier" {
			return ContextFieldAccess, false
		}
		if language == "python" && isFinalSegment(parent, node) {
			return ContextFieldAccess, false
		}
	}

	if withinKind(node, "type_arguments", 3) {
		return ContextGenericParameter, false
	}
	if node.Kind() == "type_identifier" {
		return ContextTypeReference, false
	}

	return ContextIdentifier, false
}

func isCallNode(kind string) bool {
	switch kind {
	case "call_expression", "call":
		return true
	}
	return false
}

func isQualifierNode(kind string) bool {
	switch kind {
	case "selector_expression", "attribute", "scoped_identifier", "field_expression":
		return true
	}
	return false
}

// isFinalSegment reports whether node is the trailing component of a
// qualified path or access expression.
func isFinalSegment(wrapper, node *sitter.Node) bool {
	for _, field := range []string{"field", "attribute", "name"} {
		if isFieldNode(wrapper, field, node) {
			return true
		}
	}
	return false
}

func isFieldNode(parent *sitter.Node, field string, node *sitter.Node) bool {
	fieldNode := parent.ChildByFieldName(field)
	return fieldNode != nil && fieldNode.StartByte() == node.StartByte() && fieldNode.EndByte() == node.EndByte()
}

func withinImport(node *sitter.Node) bool {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.Kind() {
		case "import_declaration", "import_statement", "import_from_statement", "use_declaration":
			return true
		}
	}
	return false
}

func withinKind(node *sitter.Node, kind string, depth int) bool {
	cur := node.Parent()
	for i := 0; cur != nil && i < depth; i++ {
		if cur.Kind() == kind {
			return true
		}
		cur = cur.Parent()
	}
	return false
}
