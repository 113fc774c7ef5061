// # internal/engine/resolver/resolver_test.go
package resolver_test

import (
	"os"
	"path/filepath"
	"testing"

	"chisel/internal/engine/parser"
	"chisel/internal/engine/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildResolver(t *testing.T, root string, files map[string]string) *resolver.Resolver {
	t.Helper()

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
	return r
}

func TestLocalDefinitionWins(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/lib.rs":  "pub fn login() {}\n",
		"src/auth.rs": "use crate::login;\n\npub fn login() {}\n",
	})

	res := r.ResolveSymbol(filepath.Join(root, "src/auth.rs"), "login")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/auth.rs"), res.FilePath)
	assert.Equal(t, "login", res.OriginalName)
	assert.False(t, res.LowConfidence)
}

func TestExplicitImportResolvesAcrossFiles(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/auth.rs": "pub fn login() {}\npub fn logout() {}\n",
		"src/main.rs": "use crate::auth::login;\n\nfn main() { login(); }\n",
	})

	res := r.ResolveSymbol(filepath.Join(root, "src/main.rs"), "login")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/auth.rs"), res.FilePath)
	assert.Equal(t, "login", res.OriginalName)
	assert.Equal(t, parser.KindFunction, res.Kind)
}

func TestAliasedImportResolvesToOriginalName(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/auth.rs": "pub fn login() {}\n",
		"src/main.rs": "use crate::auth::login as sign_in;\n\nfn main() { sign_in(); }\n",
	})

	res := r.ResolveSymbol(filepath.Join(root, "src/main.rs"), "sign_in")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/auth.rs"), res.FilePath)
	assert.Equal(t, "login", res.OriginalName)
	assert.False(t, res.LowConfidence)
}

func TestGlobImportIsLastResort(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/auth.rs":    "pub fn login() {}\n",
		"src/session.rs": "pub fn login() {}\npub fn renew() {}\n",
		"src/main.rs":    "use crate::session::renew;\nuse crate::auth::*;\n\nfn main() { login(); renew(); }\n",
	})

	main := filepath.Join(root, "src/main.rs")

	res := r.ResolveSymbol(main, "login")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/auth.rs"), res.FilePath)

	res = r.ResolveSymbol(main, "renew")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/session.rs"), res.FilePath,
		"explicit import must win over glob")
}

func TestSuperImportWalksAncestors(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/auth.rs":        "pub fn check() {}\n",
		"src/auth/tokens.rs": "use super::check;\n\npub fn issue() { check(); }\n",
	})

	res := r.ResolveSymbol(filepath.Join(root, "src/auth/tokens.rs"), "check")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/auth.rs"), res.FilePath)
}

func TestRenamedReexportFallsBackWithLowConfidence(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/facade.rs": "pub fn real_login() {}\n",
		"src/main.rs":   "use crate::facade::login;\n\nfn main() { login(); }\n",
	})

	res := r.ResolveSymbol(filepath.Join(root, "src/main.rs"), "login")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "src/facade.rs"), res.FilePath)
	assert.Equal(t, "real_login", res.OriginalName)
	assert.True(t, res.LowConfidence)
}

func TestUnknownIdentifier(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"src/main.rs": "fn main() {}\n",
	})

	assert.Nil(t, r.ResolveSymbol(filepath.Join(root, "src/main.rs"), "nonexistent"))
}

func TestPythonFromImport(t *testing.T) {
	root := t.TempDir()
	r := buildResolver(t, root, map[string]string{
		"pkg/auth.py": "def login():\n    pass\n",
		"pkg/app.py":  "from pkg.auth import login\n\nlogin()\n",
	})

	res := r.ResolveSymbol(filepath.Join(root, "pkg/app.py"), "login")
	require.NotNil(t, res)
	assert.Equal(t, filepath.Join(root, "pkg/auth.py"), res.FilePath)
	assert.Equal(t, "login", res.OriginalName)
}
