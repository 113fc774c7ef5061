// # internal/engine/parser/python.go
package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type PythonExtractor struct{}

func (e *PythonExtractor) Extract(root *sitter.Node, source []byte, filePath, modulePath string) (*FileFacts, error) {
	facts := &FileFacts{
		Path:       filePath,
		Language:   "python",
		ModulePath: modulePath,
	}

	e.walk(root, source, facts, "")

	return facts, nil
}

// walk descends through module and class bodies. container carries the class
// chain within the file; function bodies are not descended into since their
// declarations are locals, not module symbols.
func (e *PythonExtractor) walk(node *sitter.Node, source []byte, facts *FileFacts, container string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "import_statement":
			e.extractImport(child, source, facts)
		case "import_from_statement":
			e.extractFromImport(child, source, facts)
		case "function_definition":
			e.extractFunction(child, source, facts, container)
		case "class_definition":
			e.extractClass(child, source, facts, container)
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil {
				switch def.Kind() {
				case "function_definition":
					e.extractFunction(def, source, facts, container)
				case "class_definition":
					e.extractClass(def, source, facts, container)
				}
			}
		case "expression_statement":
			if container == "" {
				e.extractAssignment(child, source, facts)
			}
		default:
			if container == "" {
				e.walk(child, source, facts, container)
			}
		}
	}
}

// extractImport handles "import a.b" and "import a.b as c". A statement with
// several targets ("import os, sys") expands to one Import per target
// sharing the statement's byte span.
func (e *PythonExtractor) extractImport(node *sitter.Node, source []byte, facts *FileFacts) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)

		var dotted *sitter.Node
		var alias string
		switch child.Kind() {
		case "dotted_name":
			dotted = child
		case "aliased_import":
			dotted = child.ChildByFieldName("name")
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				alias = nodeText(aliasNode, source)
			}
		default:
			continue
		}
		if dotted == nil {
			continue
		}

		segments := strings.Split(nodeText(dotted, source), ".")
		bound := segments[len(segments)-1]
		if alias == "" && len(segments) > 1 {
			// "import a.b" binds the root package name, not b.
			bound = segments[0]
		}

		facts.Imports = append(facts.Imports, Import{
			FilePath:  facts.Path,
			Language:  "python",
			Kind:      ImportQualified,
			Segments:  segments,
			Names:     []ImportedName{{Name: bound, Alias: alias}},
			StartByte: uint(node.StartByte()),
			EndByte:   uint(node.EndByte()),
			Line:      int(node.StartPosition().Row) + 1,
		})
	}
}

// extractFromImport handles "from x import a, b as c" and "from . import d".
func (e *PythonExtractor) extractFromImport(node *sitter.Node, source []byte, facts *FileFacts) {
	imp := Import{
		FilePath:  facts.Path,
		Language:  "python",
		Kind:      ImportQualified,
		StartByte: uint(node.StartByte()),
		EndByte:   uint(node.EndByte()),
		Line:      int(node.StartPosition().Row) + 1,
	}

	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	switch moduleNode.Kind() {
	case "dotted_name":
		imp.Segments = strings.Split(nodeText(moduleNode, source), ".")
	case "relative_import":
		imp.Kind = ImportRelative
		for j := uint(0); j < moduleNode.ChildCount(); j++ {
			part := moduleNode.Child(j)
			switch part.Kind() {
			case "import_prefix":
				dots := len(nodeText(part, source))
				if dots == 1 {
					imp.SelfRef = true
				} else {
					imp.Ancestors = dots - 1
				}
			case "dotted_name":
				imp.Segments = strings.Split(nodeText(part, source), ".")
			}
		}
	default:
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "wildcard_import":
			imp.IsGlob = true
			imp.Kind = ImportWildcard
		case "dotted_name":
			if moduleNode.Kind() == "dotted_name" && child.StartByte() == moduleNode.StartByte() {
				continue
			}
			imp.Names = append(imp.Names, ImportedName{Name: nodeText(child, source)})
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			named := ImportedName{Name: nodeText(nameNode, source)}
			if aliasNode != nil {
				named.Alias = nodeText(aliasNode, source)
			}
			imp.Names = append(imp.Names, named)
		}
	}

	facts.Imports = append(facts.Imports, imp)
}

func (e *PythonExtractor) extractFunction(node *sitter.Node, source []byte, facts *FileFacts, container string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)

	kind := KindFunction
	if container != "" {
		kind = KindMethod
		if name == "__init__" {
			kind = KindConstructor
		}
	}

	sym := Symbol{
		Name:       name,
		Kind:       kind,
		Language:   "python",
		FilePath:   facts.Path,
		Visibility: pythonVisibility(name),
		ModulePath: joinModulePath(facts.ModulePath, container, "."),
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, ".")
}

func (e *PythonExtractor) extractClass(node *sitter.Node, source []byte, facts *FileFacts, container string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, source)

	sym := Symbol{
		Name:       name,
		Kind:       KindClass,
		Language:   "python",
		FilePath:   facts.Path,
		Visibility: pythonVisibility(name),
		ModulePath: joinModulePath(facts.ModulePath, container, "."),
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, ".")

	if body := node.ChildByFieldName("body"); body != nil {
		e.walk(body, source, facts, joinModulePath(container, name, "."))
	}
}

func (e *PythonExtractor) extractAssignment(node *sitter.Node, source []byte, facts *FileFacts) {
	// Module-level "NAME = ..." only; anything fancier is a reference target,
	// not a declaration we track.
	if node.Parent() == nil || node.Parent().Kind() != "module" {
		return
	}
	assignment := childOfKind(node, "assignment")
	if assignment == nil {
		return
	}
	left := assignment.ChildByFieldName("left")
	if left == nil || left.Kind() != "identifier" {
		return
	}
	name := nodeText(left, source)

	sym := Symbol{
		Name:       name,
		Kind:       KindVariable,
		Language:   "python",
		FilePath:   facts.Path,
		Visibility: pythonVisibility(name),
		ModulePath: facts.ModulePath,
	}
	fillSpan(&sym, assignment)
	appendSymbol(facts, sym, ".")
}

func pythonVisibility(name string) Visibility {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return VisibilityPublic
	}
	if strings.HasPrefix(name, "_") {
		return VisibilityPrivate
	}
	return VisibilityPublic
}
