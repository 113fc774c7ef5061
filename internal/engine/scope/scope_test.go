// # internal/engine/scope/scope_test.go
package scope_test

import (
	"strings"
	"testing"

	"chisel/internal/engine/parser"
	"chisel/internal/engine/scope"
	"github.com/stretchr/testify/require"
)

func parseTree(t *testing.T, lang, source string) ([]byte, *scope.Map) {
	t.Helper()
	loader, err := parser.NewGrammarLoader(nil)
	require.NoError(t, err)
	p := parser.NewParser(loader, t.TempDir())

	tree, err := p.ParseTree(lang, []byte(source))
	require.NoError(t, err)
	defer tree.Close()

	return []byte(source), scope.Build(tree.RootNode(), []byte(source), lang)
}

func TestNestedRedefinitionShadowsFromDeclaration(t *testing.T) {
	source := "fn helper() -> i32 { 42 }\n" +
		"fn main() {\n" +
		"    helper();\n" +
		"    fn helper() -> i32 { 99 }\n" +
		"    helper();\n" +
		"}\n"
	src, m := parseTree(t, "rust", source)

	firstCall := uint(strings.Index(string(src), "helper();"))
	lastCall := uint(strings.LastIndex(string(src), "helper();"))

	require.False(t, m.IsShadowedAt("helper", firstCall), "call before nested redefinition must reach the top-level symbol")
	require.True(t, m.IsShadowedAt("helper", lastCall), "call after nested redefinition must be suppressed")
}

func TestParametersShadowEverywhereInBody(t *testing.T) {
	source := "fn count() -> i32 { 1 }\n" +
		"fn run(count: i32) -> i32 {\n" +
		"    count + 1\n" +
		"}\n"
	src, m := parseTree(t, "rust", source)

	use := uint(strings.Index(string(src), "count + 1"))
	require.True(t, m.IsShadowedAt("count", use))

	topLevel := uint(strings.Index(string(src), "fn count"))
	require.False(t, m.IsShadowedAt("count", topLevel))
}

func TestLetBindingShadowsOnlyLaterCode(t *testing.T) {
	source := "fn limit() -> i32 { 10 }\n" +
		"fn run() -> i32 {\n" +
		"    let before = limit();\n" +
		"    let limit = 5;\n" +
		"    limit + before\n" +
		"}\n"
	src, m := parseTree(t, "rust", source)

	early := uint(strings.Index(string(src), "limit();"))
	late := uint(strings.Index(string(src), "limit + before"))

	require.False(t, m.IsShadowedAt("limit", early))
	require.True(t, m.IsShadowedAt("limit", late))
}

func TestGoShortVarDeclaration(t *testing.T) {
	source := "package main\n\n" +
		"func helper() int { return 1 }\n\n" +
		"func run() int {\n" +
		"\tout := helper()\n" +
		"\thelper := func() int { return 2 }\n" +
		"\treturn out + helper()\n" +
		"}\n"
	src, m := parseTree(t, "go", source)

	early := uint(strings.Index(string(src), "out := helper()")) + uint(len("out := "))
	late := uint(strings.Index(string(src), "out + helper()")) + uint(len("out + "))

	require.False(t, m.IsShadowedAt("helper", early))
	require.True(t, m.IsShadowedAt("helper", late))
}

func TestPythonFunctionScopeDoesNotLeak(t *testing.T) {
	source := "def helper():\n" +
		"    return 1\n\n" +
		"def run():\n" +
		"    value = 2\n" +
		"    return helper()\n\n" +
		"print(value)\n"
	src, m := parseTree(t, "python", source)

	outside := uint(strings.Index(string(src), "print(value)")) + uint(len("print("))
	require.False(t, m.IsShadowedAt("value", outside), "function locals must not leak into module scope")

	inside := uint(strings.Index(string(src), "return helper()"))
	require.True(t, m.IsShadowedAt("value", inside))
}
