// # internal/engine/parser/golang.go
package parser

import (
	"strings"
	"unicode"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type GoExtractor struct{}

func (e *GoExtractor) Extract(root *sitter.Node, source []byte, filePath, modulePath string) (*FileFacts, error) {
	facts := &FileFacts{
		Path:       filePath,
		Language:   "go",
		ModulePath: modulePath,
	}

	e.walk(root, source, facts)

	for i := range facts.Symbols {
		if facts.Symbols[i].Visibility == VisibilityRestricted {
			facts.Symbols[i].VisibilityScope = "package"
		}
	}

	return facts, nil
}

func (e *GoExtractor) walk(node *sitter.Node, source []byte, facts *FileFacts) {
	switch node.Kind() {
	case "import_declaration":
		e.extractImports(node, source, facts)
		return
	case "function_declaration":
		e.extractFunction(node, source, facts)
		return
	case "method_declaration":
		e.extractMethod(node, source, facts)
		return
	case "type_declaration":
		e.extractTypeDecl(node, source, facts)
		return
	case "const_declaration", "var_declaration":
		e.extractValueDecl(node, source, facts)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), source, facts)
	}
}

func (e *GoExtractor) extractImports(node *sitter.Node, source []byte, facts *FileFacts) {
	var walkSpecs func(*sitter.Node)
	walkSpecs = func(n *sitter.Node) {
		for i := uint(0); i < n.ChildCount(); i++ {
			child := n.Child(i)
			if child.Kind() != "import_spec" {
				walkSpecs(child)
				continue
			}

			imp := Import{
				FilePath:  facts.Path,
				Language:  "go",
				Kind:      ImportQualified,
				StartByte: uint(child.StartByte()),
				EndByte:   uint(child.EndByte()),
				Line:      int(child.StartPosition().Row) + 1,
			}

			var alias string
			for j := uint(0); j < child.ChildCount(); j++ {
				spec := child.Child(j)
				switch spec.Kind() {
				case "package_identifier":
					alias = nodeText(spec, source)
				case "dot":
					imp.Kind = ImportWildcard
					imp.IsGlob = true
				case "blank_identifier":
					imp.Kind = ImportSideEffect
				case "interpreted_string_literal":
					path := strings.Trim(nodeText(spec, source), "\"")
					imp.Segments = strings.Split(path, "/")
				}
			}

			if len(imp.Segments) == 0 {
				continue
			}
			if imp.Kind == ImportQualified {
				name := imp.Segments[len(imp.Segments)-1]
				imp.Names = []ImportedName{{Name: name, Alias: alias}}
			}
			facts.Imports = append(facts.Imports, imp)
		}
	}
	walkSpecs(node)
}

func (e *GoExtractor) extractFunction(node *sitter.Node, source []byte, facts *FileFacts) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)

	sym := Symbol{
		Name:       name,
		Kind:       KindFunction,
		Language:   "go",
		FilePath:   facts.Path,
		Visibility: goVisibility(name),
		ModulePath: facts.ModulePath,
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, "/")
}

func (e *GoExtractor) extractMethod(node *sitter.Node, source []byte, facts *FileFacts) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)

	sym := Symbol{
		Name:       name,
		Kind:       KindMethod,
		Language:   "go",
		FilePath:   facts.Path,
		Visibility: goVisibility(name),
		ModulePath: joinModulePath(facts.ModulePath, e.receiverType(node, source), "/"),
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, "/")
}

// receiverType resolves the bare type name of a method receiver,
// stripping pointers and type parameters.
func (e *GoExtractor) receiverType(node *sitter.Node, source []byte) string {
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	var typeName string
	var find func(*sitter.Node)
	find = func(n *sitter.Node) {
		if typeName != "" {
			return
		}
		if n.Kind() == "type_identifier" {
			typeName = nodeText(n, source)
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			find(n.Child(i))
		}
	}
	find(receiver)
	return typeName
}

func (e *GoExtractor) extractTypeDecl(node *sitter.Node, source []byte, facts *FileFacts) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "type_spec":
			e.extractTypeSpec(child, source, facts, false)
		case "type_alias":
			e.extractTypeSpec(child, source, facts, true)
		}
	}
}

func (e *GoExtractor) extractTypeSpec(node *sitter.Node, source []byte, facts *FileFacts, alias bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)

	kind := KindStruct
	if alias {
		kind = KindTypeAlias
	} else if typeNode := node.ChildByFieldName("type"); typeNode != nil {
		switch typeNode.Kind() {
		case "interface_type":
			kind = KindInterface
		case "struct_type":
			kind = KindStruct
		default:
			kind = KindTypeAlias
		}
	}

	sym := Symbol{
		Name:       name,
		Kind:       kind,
		Language:   "go",
		FilePath:   facts.Path,
		Visibility: goVisibility(name),
		ModulePath: facts.ModulePath,
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, "/")
}

func (e *GoExtractor) extractValueDecl(node *sitter.Node, source []byte, facts *FileFacts) {
	// Only package-level const/var blocks reach here; function bodies are
	// handled by the scope builder, not the fact extractor.
	if parent := node.Parent(); parent != nil && parent.Kind() != "source_file" {
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		spec := node.Child(i)
		if spec.Kind() != "const_spec" && spec.Kind() != "var_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, source)

		sym := Symbol{
			Name:       name,
			Kind:       KindVariable,
			Language:   "go",
			FilePath:   facts.Path,
			Visibility: goVisibility(name),
			ModulePath: facts.ModulePath,
		}
		fillSpan(&sym, spec)
		appendSymbol(facts, sym, "/")
	}
}

func goVisibility(name string) Visibility {
	if name == "" {
		return VisibilityPrivate
	}
	if unicode.IsUpper(rune(name[0])) {
		return VisibilityPublic
	}
	return VisibilityRestricted
}
