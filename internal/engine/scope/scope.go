// # internal/engine/scope/scope.go
package scope

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

type declaration struct {
	name   string
	offset uint
}

// Scope is one lexical region. Scopes nest by byte-range containment.
type Scope struct {
	StartByte uint
	EndByte   uint
	Parent    *Scope

	decls    []declaration
	children []*Scope
}

func (s *Scope) declare(name string, offset uint) {
	s.decls = append(s.decls, declaration{name: name, offset: offset})
}

func (s *Scope) contains(offset uint) bool {
	return offset >= s.StartByte && offset < s.EndByte
}

// Map holds the scope tree for one parsed file.
type Map struct {
	root *Scope
}

// IsShadowedAt reports whether a reference to name at offset resolves to a
// local declaration rather than the file-level symbol: some scope containing
// offset declares name at or before offset.
func (m *Map) IsShadowedAt(name string, offset uint) bool {
	scope := m.root
	for scope != nil {
		for _, d := range scope.decls {
			if d.name == name && d.offset <= offset {
				return true
			}
		}
		next := (*Scope)(nil)
		for _, child := range scope.children {
			if child.contains(offset) {
				next = child
				break
			}
		}
		scope = next
	}
	return false
}

// Build walks a parse tree top-down and records every lexical scope with the
// names declared inside it.
func Build(root *sitter.Node, source []byte, language string) *Map {
	rootScope := &Scope{StartByte: uint(root.StartByte()), EndByte: uint(root.EndByte()) + 1}
	b := &builder{source: source, language: language}
	b.walk(root, rootScope, true)
	return &Map{root: rootScope}
}

type builder struct {
	source   []byte
	language string
}

func (b *builder) openScope(parent *Scope, node *sitter.Node) *Scope {
	child := &Scope{
		StartByte: uint(node.StartByte()),
		EndByte:   uint(node.EndByte()),
		Parent:    parent,
	}
	parent.children = append(parent.children, child)
	return child
}

// walk threads the current scope through a single traversal. atRoot tracks
// whether declarations at this level belong to the file itself rather than
// to an enclosing function.
func (b *builder) walk(node *sitter.Node, current *Scope, atRoot bool) {
	switch b.language {
	case "go":
		if b.walkGo(node, current, atRoot) {
			return
		}
	case "python":
		if b.walkPython(node, current, atRoot) {
			return
		}
	case "rust":
		if b.walkRust(node, current, atRoot) {
			return
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		b.walk(node.Child(i), current, atRoot)
	}
}

// functionScope opens a scope over the body and declares every parameter
// name at the body's start, so parameter references are always local.
func (b *builder) functionScope(node, body, params *sitter.Node, current *Scope) *Scope {
	scope := b.openScope(current, body)
	if params != nil {
		for _, name := range b.identifiersIn(params) {
			scope.declare(name, scope.StartByte)
		}
	}
	return scope
}

// declareNested makes a nested function shadow its own name in the parent
// scope from its declaration point onward. File-level declarations are
// symbols, not shadows, so the root scope is skipped.
func (b *builder) declareNested(node *sitter.Node, name string, current *Scope, atRoot bool) {
	if atRoot || name == "" {
		return
	}
	current.declare(name, uint(node.StartByte()))
}

func (b *builder) identifiersIn(node *sitter.Node) []string {
	var names []string
	var collect func(*sitter.Node)
	collect = func(n *sitter.Node) {
		switch n.Kind() {
		case "identifier":
			names = append(names, string(b.source[n.StartByte():n.EndByte()]))
			return
		case "type_identifier", "field_identifier", "attribute":
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			collect(n.Child(i))
		}
	}
	collect(node)
	return names
}

func (b *builder) nameOf(node *sitter.Node) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	return string(b.source[nameNode.StartByte():nameNode.EndByte()])
}

func (b *builder) walkGo(node *sitter.Node, current *Scope, atRoot bool) bool {
	switch node.Kind() {
	case "function_declaration", "method_declaration":
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		b.declareNested(node, b.nameOf(node), current, atRoot)
		scope := b.functionScope(node, body, node.ChildByFieldName("parameters"), current)
		if receiver := node.ChildByFieldName("receiver"); receiver != nil {
			for _, name := range b.identifiersIn(receiver) {
				scope.declare(name, scope.StartByte)
			}
		}
		b.walkChildren(body, scope)
		return true
	case "func_literal":
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		scope := b.functionScope(node, body, node.ChildByFieldName("parameters"), current)
		b.walkChildren(body, scope)
		return true
	case "block":
		scope := b.openScope(current, node)
		b.walkChildren(node, scope)
		return true
	case "short_var_declaration":
		if left := node.ChildByFieldName("left"); left != nil {
			for _, name := range b.identifiersIn(left) {
				current.declare(name, uint(node.StartByte()))
			}
		}
		return false
	case "var_declaration", "const_declaration":
		if !atRoot {
			for i := uint(0); i < node.ChildCount(); i++ {
				spec := node.Child(i)
				if spec.Kind() != "var_spec" && spec.Kind() != "const_spec" {
					continue
				}
				if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
					current.declare(string(b.source[nameNode.StartByte():nameNode.EndByte()]), uint(node.StartByte()))
				}
			}
		}
		return false
	case "range_clause":
		if left := node.ChildByFieldName("left"); left != nil {
			for _, name := range b.identifiersIn(left) {
				current.declare(name, uint(node.StartByte()))
			}
		}
		return false
	}
	return false
}

func (b *builder) walkPython(node *sitter.Node, current *Scope, atRoot bool) bool {
	switch node.Kind() {
	case "function_definition":
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		b.declareNested(node, b.nameOf(node), current, atRoot)
		scope := b.functionScope(node, body, node.ChildByFieldName("parameters"), current)
		b.walkChildren(body, scope)
		return true
	case "lambda":
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		scope := b.functionScope(node, body, node.ChildByFieldName("parameters"), current)
		b.walkChildren(body, scope)
		return true
	case "assignment":
		if atRoot {
			return false
		}
		if left := node.ChildByFieldName("left"); left != nil {
			for _, name := range b.identifiersIn(left) {
				current.declare(name, uint(node.StartByte()))
			}
		}
		return false
	case "case_clause":
		// Pattern bindings are visible from the arm onward in the
		// enclosing scope.
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child.Kind() == "case_pattern" {
				for _, name := range b.identifiersIn(child) {
					current.declare(name, uint(node.StartByte()))
				}
			}
		}
		return false
	case "for_statement":
		if left := node.ChildByFieldName("left"); left != nil {
			for _, name := range b.identifiersIn(left) {
				current.declare(name, uint(node.StartByte()))
			}
		}
		return false
	}
	return false
}

func (b *builder) walkRust(node *sitter.Node, current *Scope, atRoot bool) bool {
	switch node.Kind() {
	case "function_item":
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		b.declareNested(node, b.nameOf(node), current, atRoot)
		scope := b.functionScope(node, body, node.ChildByFieldName("parameters"), current)
		b.walkChildren(body, scope)
		return true
	case "closure_expression":
		body := node.ChildByFieldName("body")
		if body == nil {
			return true
		}
		scope := b.functionScope(node, body, node.ChildByFieldName("parameters"), current)
		b.walkChildren(body, scope)
		return true
	case "block":
		scope := b.openScope(current, node)
		b.walkChildren(node, scope)
		return true
	case "let_declaration":
		if pattern := node.ChildByFieldName("pattern"); pattern != nil {
			for _, name := range b.identifiersIn(pattern) {
				current.declare(name, uint(node.StartByte()))
			}
		}
		return false
	case "match_arm":
		if pattern := node.ChildByFieldName("pattern"); pattern != nil {
			for _, name := range b.identifiersIn(pattern) {
				current.declare(name, uint(node.StartByte()))
			}
		}
		return false
	}
	return false
}

func (b *builder) walkChildren(node *sitter.Node, scope *Scope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		b.walk(node.Child(i), scope, false)
	}
}
