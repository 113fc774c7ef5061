// # internal/engine/modindex/modindex_test.go
package modindex

import (
	"testing"

	cerrors "chisel/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndResolve(t *testing.T) {
	x := New("::")
	require.NoError(t, x.Insert("crate::auth", "src/auth.rs"))
	require.NoError(t, x.Insert("crate::auth::tokens", "src/auth/tokens.rs"))

	file, ok := x.Resolve("crate::auth")
	assert.True(t, ok)
	assert.Equal(t, "src/auth.rs", file)

	module, ok := x.ModulePathOf("src/auth/tokens.rs")
	assert.True(t, ok)
	assert.Equal(t, "crate::auth::tokens", module)

	_, ok = x.Resolve("crate::missing")
	assert.False(t, ok)
}

func TestInsertRejectsRemapping(t *testing.T) {
	x := New("::")
	require.NoError(t, x.Insert("crate::auth", "src/auth.rs"))

	err := x.Insert("crate::auth", "src/other.rs")
	assert.True(t, cerrors.IsCode(err, cerrors.CodeConflict))

	err = x.Insert("crate::renamed", "src/auth.rs")
	assert.True(t, cerrors.IsCode(err, cerrors.CodeConflict))

	// Re-inserting the identical pair is fine.
	assert.NoError(t, x.Insert("crate::auth", "src/auth.rs"))
}

func TestResolveRelative(t *testing.T) {
	x := New("::")
	require.NoError(t, x.Insert("crate", "src/lib.rs"))
	require.NoError(t, x.Insert("crate::auth", "src/auth.rs"))
	require.NoError(t, x.Insert("crate::auth::tokens", "src/auth/tokens.rs"))
	require.NoError(t, x.Insert("crate::db", "src/db.rs"))

	tests := []struct {
		name        string
		currentFile string
		raw         string
		want        string
		wantOK      bool
	}{
		{"empty is self", "src/auth.rs", "", "src/auth.rs", true},
		{"bare self", "src/auth.rs", "self", "src/auth.rs", true},
		{"self with rest stays local", "src/auth.rs", "self::helpers", "src/auth.rs", true},
		{"single super", "src/auth/tokens.rs", "super", "src/auth.rs", true},
		{"super with rest", "src/auth/tokens.rs", "super::super::db", "src/db.rs", true},
		{"super overflow", "src/auth.rs", "super::super::db", "", false},
		{"direct lookup", "src/db.rs", "crate::auth::tokens", "src/auth/tokens.rs", true},
		{"direct miss", "src/db.rs", "crate::nope", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := x.ResolveRelative(tt.currentFile, tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestResolveRelativePythonSeparator(t *testing.T) {
	x := New(".")
	require.NoError(t, x.Insert("pkg.auth", "pkg/auth.py"))
	require.NoError(t, x.Insert("pkg.auth.tokens", "pkg/auth/tokens.py"))
	require.NoError(t, x.Insert("pkg.db", "pkg/db.py"))

	got, ok := x.ResolveRelative("pkg/auth/tokens.py", "super.db")
	// One level above pkg.auth.tokens is pkg.auth; its sibling db lives
	// under pkg.auth.db which is unmapped.
	assert.False(t, ok)
	assert.Empty(t, got)

	got, ok = x.ResolveRelative("pkg/auth/tokens.py", "super.super.db")
	assert.True(t, ok)
	assert.Equal(t, "pkg/db.py", got)
}
