// # internal/engine/parser/extractor_common.go
package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// fillSpan copies the node's byte span and positions onto the symbol.
func fillSpan(sym *Symbol, node *sitter.Node) {
	sym.StartByte = uint(node.StartByte())
	sym.EndByte = uint(node.EndByte())
	sym.StartLine = int(node.StartPosition().Row) + 1
	sym.EndLine = int(node.EndPosition().Row) + 1
	sym.StartCol = int(node.StartPosition().Column) + 1
	sym.EndCol = int(node.EndPosition().Column) + 1
}

// joinModulePath appends a container segment to a module path chain.
func joinModulePath(base, segment, sep string) string {
	if base == "" {
		return segment
	}
	if segment == "" {
		return base
	}
	return base + sep + segment
}

// appendSymbol finalizes the symbol's qualified name and records it.
func appendSymbol(facts *FileFacts, sym Symbol, sep string) {
	if sym.FullName == "" {
		sym.FullName = joinModulePath(sym.ModulePath, sym.Name, sep)
	}
	facts.Symbols = append(facts.Symbols, sym)
}

func childOfKind(node *sitter.Node, kind string) *sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child.Kind() == kind {
			return child
		}
	}
	return nil
}
