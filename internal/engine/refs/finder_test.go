// # internal/engine/refs/finder_test.go
package refs_test

import (
	"os"
	"path/filepath"
	"testing"

	"chisel/internal/engine/parser"
	"chisel/internal/engine/refs"
	"chisel/internal/engine/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workspace struct {
	root   string
	parser *parser.Parser
	res    *resolver.Resolver
}

func newWorkspace(t *testing.T, files map[string]string) *workspace {
	t.Helper()
	root := t.TempDir()

	loader, err := parser.NewGrammarLoader(nil)
	require.NoError(t, err)
	p := parser.NewParser(loader, root)

	registry, err := parser.BuildLanguageRegistry(nil)
	require.NoError(t, err)
	r := resolver.New(registry)

	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		facts, err := p.ParseFile(path, []byte(content))
		require.NoError(t, err)
		r.AddFile(facts)
	}
	return &workspace{root: root, parser: p, res: r}
}

func (w *workspace) symbol(t *testing.T, rel, name string) *parser.Symbol {
	t.Helper()
	facts, ok := w.res.Facts(filepath.Join(w.root, rel))
	require.True(t, ok)
	sym, ok := facts.SymbolNamed(name)
	require.True(t, ok)
	return sym
}

func (w *workspace) find(t *testing.T, rel, name string) *refs.ReferenceSet {
	t.Helper()
	finder := refs.NewFinder(w.parser, w.res)
	set, err := finder.FindReferences(w.symbol(t, rel, name))
	require.NoError(t, err)
	return set
}

func TestSameFileReferences(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/lib.rs": `pub fn target() {}

pub fn caller() {
    target();
    let f = target;
}
`,
	})

	set := w.find(t, "src/lib.rs", "target")
	require.Len(t, set.References, 2)
	assert.False(t, set.HasGlobAmbiguity)

	// Descending byte order within the file.
	assert.Greater(t, set.References[0].StartByte, set.References[1].StartByte)
	assert.Equal(t, refs.ContextIdentifier, set.References[0].Context)
	assert.Equal(t, refs.ContextFunctionCall, set.References[1].Context)
	assert.False(t, set.References[1].IsQualified)
}

func TestShadowedLocalSuppressed(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/lib.rs": `pub fn helper() {}

pub fn caller() {
    helper();
    fn helper() {}
    helper();
}
`,
	})

	set := w.find(t, "src/lib.rs", "helper")
	require.Len(t, set.References, 1, "only the pre-shadow call should survive")
	assert.Equal(t, refs.ContextFunctionCall, set.References[0].Context)
}

func TestParameterNeverEscapes(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/lib.rs": `pub fn count() {}

pub fn with_param(count: usize) -> usize {
    count + 1
}
`,
	})

	set := w.find(t, "src/lib.rs", "count")
	assert.Empty(t, set.References, "parameter use must not read as a reference to the file-level symbol")
}

func TestCrossFileReferences(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/auth.rs": "pub fn login() {}\n",
		"src/main.rs": `use crate::auth::login;

fn main() {
    login();
    login();
}
`,
	})

	set := w.find(t, "src/auth.rs", "login")
	require.Len(t, set.References, 3)

	var calls, imports int
	for _, ref := range set.References {
		switch ref.Context {
		case refs.ContextFunctionCall:
			calls++
		case refs.ContextImportStatement:
			imports++
		}
	}
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, imports)
}

func TestAliasedCrossFileUsesLocalName(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/auth.rs": "pub fn login() {}\n",
		"src/main.rs": `use crate::auth::login as sign_in;

fn main() {
    sign_in();
}
`,
	})

	set := w.find(t, "src/auth.rs", "login")

	var calls int
	for _, ref := range set.References {
		if ref.Context == refs.ContextFunctionCall {
			calls++
			assert.Equal(t, filepath.Join(w.root, "src/main.rs"), ref.FilePath)
		}
	}
	assert.Equal(t, 1, calls)
}

func TestGlobImportFlagsAmbiguity(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"src/auth.rs": "pub fn login() {}\n",
		"src/main.rs": `use crate::auth::*;

fn main() {
    login();
}
`,
	})

	set := w.find(t, "src/auth.rs", "login")
	assert.True(t, set.HasGlobAmbiguity)

	var calls int
	for _, ref := range set.References {
		if ref.Context == refs.ContextFunctionCall {
			calls++
		}
	}
	assert.Equal(t, 1, calls)
}

func TestPrivateSymbolStaysInFile(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"pkg/util.py": `def _hidden():
    pass

_hidden()
`,
		"pkg/app.py": `from pkg.util import _hidden

_hidden()
`,
	})

	set := w.find(t, "pkg/util.py", "_hidden")
	for _, ref := range set.References {
		assert.Equal(t, filepath.Join(w.root, "pkg/util.py"), ref.FilePath,
			"private symbols are never searched across files")
	}
	require.Len(t, set.References, 1)
}

func TestQualifiedCallClassification(t *testing.T) {
	w := newWorkspace(t, map[string]string{
		"pkg/auth/auth.go": `package auth

func Login() {}
`,
		"pkg/app/app.go": `package app

import "example.com/proj/pkg/auth"

func Run() {
	auth.Login()
}
`,
	})

	set := w.find(t, "pkg/auth/auth.go", "Login")

	var call *refs.Reference
	for i := range set.References {
		if set.References[i].Context == refs.ContextFunctionCall {
			call = &set.References[i]
		}
	}
	require.NotNil(t, call)
	assert.True(t, call.IsQualified)
}
