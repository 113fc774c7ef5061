// # internal/data/store/store_test.go
package store_test

import (
	"path/filepath"
	"testing"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/data/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func loginNode(file string, start, end uint) store.Node {
	return store.Node{
		FilePath:  file,
		Name:      "login",
		Kind:      "function",
		Language:  "rust",
		StartByte: start,
		EndByte:   end,
		StartLine: 1,
		EndLine:   1,
	}
}

func TestReplaceFileRoundTrip(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.ReplaceFile("src/auth.rs",
		[]store.Node{loginNode("src/auth.rs", 7, 42)},
		[]store.Edge{{ToFile: "src/session.rs", Kind: store.EdgeImport, Name: "Session"}}))

	nodes, err := s.FindNodes(store.NodeQuery{Name: "login"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, uint(7), nodes[0].StartByte)
	assert.Equal(t, uint(42), nodes[0].EndByte)
	assert.Equal(t, "function", nodes[0].Kind)

	edges, err := s.EdgesFrom("src/auth.rs")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "src/session.rs", edges[0].ToFile)
}

func TestReplaceFileDropsStaleNodes(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.ReplaceFile("src/auth.rs",
		[]store.Node{loginNode("src/auth.rs", 7, 42)}, nil))
	require.NoError(t, s.ReplaceFile("src/auth.rs",
		[]store.Node{loginNode("src/auth.rs", 100, 140)}, nil))

	nodes, err := s.FindNodes(store.NodeQuery{FilePath: "src/auth.rs"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, uint(100), nodes[0].StartByte)
}

func TestDeleteFile(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.ReplaceFile("src/auth.rs",
		[]store.Node{loginNode("src/auth.rs", 7, 42)},
		[]store.Edge{{ToFile: "src/other.rs", Kind: store.EdgeImport}}))
	require.NoError(t, s.DeleteFile("src/auth.rs"))

	nodes, err := s.FindNodes(store.NodeQuery{})
	require.NoError(t, err)
	assert.Empty(t, nodes)

	files, err := s.Files()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestStats(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.ReplaceFile("a.rs", []store.Node{loginNode("a.rs", 0, 10)}, nil))
	require.NoError(t, s.ReplaceFile("b.rs", []store.Node{loginNode("b.rs", 0, 10)},
		[]store.Edge{{ToFile: "a.rs", Kind: store.EdgeImport, Name: "login"}}))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, store.Stats{Files: 2, Nodes: 2, Edges: 1}, stats)
}

func TestResolveSpanScoped(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.ReplaceFile("a.rs", []store.Node{loginNode("a.rs", 3, 20)}, nil))
	require.NoError(t, s.ReplaceFile("b.rs", []store.Node{loginNode("b.rs", 5, 25)}, nil))

	span, err := store.ResolveSpan(s, "b.rs", "", "login")
	require.NoError(t, err)
	assert.Equal(t, "b.rs", span.FilePath)
	assert.Equal(t, uint(5), span.StartByte)
}

func TestResolveSpanNotFoundNamesFile(t *testing.T) {
	s := openStore(t)

	_, err := store.ResolveSpan(s, "a.rs", "", "missing")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeSymbolNotFound))
	assert.Contains(t, err.Error(), "a.rs")
}

func TestResolveSpanAmbiguousNeverGuesses(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.ReplaceFile("a.rs", []store.Node{loginNode("a.rs", 3, 20)}, nil))
	require.NoError(t, s.ReplaceFile("b.rs", []store.Node{loginNode("b.rs", 5, 25)}, nil))

	_, err := store.ResolveSpan(s, "", "", "login")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeAmbiguousSymbol))
	assert.ElementsMatch(t, []string{"a.rs", "b.rs"}, cerrors.CandidateFiles(err))
}

func TestResolveSpanAmbiguityListsEachFileOnce(t *testing.T) {
	s := openStore(t)
	fn := loginNode("a.rs", 3, 20)
	method := loginNode("a.rs", 40, 80)
	method.Kind = "method"
	require.NoError(t, s.ReplaceFile("a.rs", []store.Node{fn, method}, nil))

	_, err := store.ResolveSpan(s, "a.rs", "", "login")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeAmbiguousSymbol))
	assert.Equal(t, []string{"a.rs"}, cerrors.CandidateFiles(err))
}

func TestResolveSpanKindFilterDisambiguates(t *testing.T) {
	s := openStore(t)
	fn := loginNode("a.rs", 3, 20)
	st := loginNode("a.rs", 40, 80)
	st.Kind = "struct"
	require.NoError(t, s.ReplaceFile("a.rs", []store.Node{fn, st}, nil))

	_, err := store.ResolveSpan(s, "", "", "login")
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeAmbiguousSymbol))

	span, err := store.ResolveSpan(s, "", "struct", "login")
	require.NoError(t, err)
	assert.Equal(t, uint(40), span.StartByte)
}
