// # internal/engine/parser/rust.go
package parser

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type RustExtractor struct{}

func (e *RustExtractor) Extract(root *sitter.Node, source []byte, filePath, modulePath string) (*FileFacts, error) {
	facts := &FileFacts{
		Path:       filePath,
		Language:   "rust",
		ModulePath: modulePath,
	}

	e.walkItems(root, source, facts, "")

	return facts, nil
}

func (e *RustExtractor) walkItems(node *sitter.Node, source []byte, facts *FileFacts, container string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "use_declaration":
			e.extractUse(child, source, facts)
		case "function_item":
			kind := KindFunction
			if container != "" {
				kind = KindMethod
			}
			e.extractNamed(child, source, facts, container, kind)
		case "struct_item":
			e.extractNamed(child, source, facts, container, KindStruct)
		case "enum_item":
			e.extractNamed(child, source, facts, container, KindEnum)
		case "trait_item":
			e.extractNamed(child, source, facts, container, KindTrait)
			if body := child.ChildByFieldName("body"); body != nil {
				if name := e.itemName(child, source); name != "" {
					e.walkItems(body, source, facts, joinModulePath(container, name, "::"))
				}
			}
		case "impl_item":
			e.extractImpl(child, source, facts, container)
		case "mod_item":
			e.extractNamed(child, source, facts, container, KindModule)
			if body := child.ChildByFieldName("body"); body != nil {
				if name := e.itemName(child, source); name != "" {
					e.walkItems(body, source, facts, joinModulePath(container, name, "::"))
				}
			}
		case "const_item", "static_item":
			e.extractNamed(child, source, facts, container, KindVariable)
		case "type_item":
			e.extractNamed(child, source, facts, container, KindTypeAlias)
		}
	}
}

func (e *RustExtractor) itemName(node *sitter.Node, source []byte) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return nodeText(nameNode, source)
}

func (e *RustExtractor) extractNamed(node *sitter.Node, source []byte, facts *FileFacts, container string, kind SymbolKind) {
	name := e.itemName(node, source)
	if name == "" {
		return
	}

	visibility, scope := rustVisibility(node, source)
	sym := Symbol{
		Name:            name,
		Kind:            kind,
		Language:        "rust",
		FilePath:        facts.Path,
		Visibility:      visibility,
		VisibilityScope: scope,
		ModulePath:      joinModulePath(facts.ModulePath, container, "::"),
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, "::")
}

// extractImpl records the impl block itself, then its associated functions as
// methods scoped under the implemented type.
func (e *RustExtractor) extractImpl(node *sitter.Node, source []byte, facts *FileFacts, container string) {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	typeName := nodeText(typeNode, source)

	sym := Symbol{
		Name:       typeName,
		Kind:       KindImpl,
		Language:   "rust",
		FilePath:   facts.Path,
		Visibility: VisibilityPrivate,
		ModulePath: joinModulePath(facts.ModulePath, container, "::"),
	}
	fillSpan(&sym, node)
	appendSymbol(facts, sym, "::")

	if body := node.ChildByFieldName("body"); body != nil {
		e.walkItems(body, source, facts, joinModulePath(container, typeName, "::"))
	}
}

// extractUse expands one use declaration into Import values. Grouped trees
// (use a::{b, c::D}) produce one Import per leaf, all sharing the
// statement's byte span.
func (e *RustExtractor) extractUse(node *sitter.Node, source []byte, facts *FileFacts) {
	argument := node.ChildByFieldName("argument")
	if argument == nil {
		return
	}

	reexport := childOfKind(node, "visibility_modifier") != nil

	e.expandUseTree(argument, source, nil, func(segments []string, name ImportedName, glob bool) {
		imp := Import{
			FilePath:   facts.Path,
			Language:   "rust",
			Kind:       ImportQualified,
			IsGlob:     glob,
			IsReexport: reexport,
			StartByte:  uint(node.StartByte()),
			EndByte:    uint(node.EndByte()),
			Line:       int(node.StartPosition().Row) + 1,
		}
		if glob {
			imp.Kind = ImportWildcard
		} else {
			imp.Names = []ImportedName{name}
		}

		// Peel relative markers off the front of the path.
		for len(segments) > 0 {
			if segments[0] == "self" {
				imp.SelfRef = true
				imp.Kind = ImportRelative
				segments = segments[1:]
				continue
			}
			if segments[0] == "super" {
				imp.Ancestors++
				imp.Kind = ImportRelative
				segments = segments[1:]
				continue
			}
			break
		}
		imp.Segments = segments

		facts.Imports = append(facts.Imports, imp)
	})
}

// expandUseTree walks a use tree, accumulating path prefixes, and calls emit
// for every leaf binding.
func (e *RustExtractor) expandUseTree(node *sitter.Node, source []byte, prefix []string, emit func([]string, ImportedName, bool)) {
	switch node.Kind() {
	case "use_as_clause":
		pathNode := node.ChildByFieldName("path")
		aliasNode := node.ChildByFieldName("alias")
		if pathNode == nil || aliasNode == nil {
			return
		}
		segments := append(append([]string{}, prefix...), splitRustPath(nodeText(pathNode, source))...)
		if len(segments) == 0 {
			return
		}
		name := ImportedName{Name: segments[len(segments)-1], Alias: nodeText(aliasNode, source)}
		emit(segments[:len(segments)-1], name, false)
	case "scoped_use_list":
		pathNode := node.ChildByFieldName("path")
		listNode := node.ChildByFieldName("list")
		if listNode == nil {
			return
		}
		next := append([]string{}, prefix...)
		if pathNode != nil {
			next = append(next, splitRustPath(nodeText(pathNode, source))...)
		}
		e.expandUseTree(listNode, source, next, emit)
	case "use_list":
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.IsNamed() {
				e.expandUseTree(child, source, prefix, emit)
			}
		}
	case "use_wildcard":
		path := strings.TrimSuffix(nodeText(node, source), "*")
		path = strings.TrimSuffix(path, "::")
		segments := append(append([]string{}, prefix...), splitRustPath(path)...)
		emit(segments, ImportedName{}, true)
	case "identifier", "scoped_identifier", "crate", "self", "super":
		segments := append(append([]string{}, prefix...), splitRustPath(nodeText(node, source))...)
		if len(segments) == 0 {
			return
		}
		name := ImportedName{Name: segments[len(segments)-1]}
		if name.Name == "self" {
			// "use a::b::{self}" binds the module b itself.
			segments = segments[:len(segments)-1]
			if len(segments) == 0 {
				return
			}
			name.Name = segments[len(segments)-1]
		}
		emit(segments[:len(segments)-1], name, false)
	}
}

func splitRustPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, "::")
}

func rustVisibility(node *sitter.Node, source []byte) (Visibility, string) {
	modifier := childOfKind(node, "visibility_modifier")
	if modifier == nil {
		return VisibilityPrivate, ""
	}
	text := nodeText(modifier, source)
	if text == "pub" {
		return VisibilityPublic, ""
	}
	scope := strings.TrimSuffix(strings.TrimPrefix(text, "pub("), ")")
	scope = strings.TrimPrefix(scope, "in ")
	return VisibilityRestricted, scope
}
