package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"chisel/internal/core/app"
	"chisel/internal/core/config"
	cerrors "chisel/internal/core/errors"
	"chisel/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createWorkspace(t *testing.T, root string) {
	t.Helper()

	files := map[string]string{
		"go.mod": "module example.com/shop\n\ngo 1.24\n",
		"pkg/billing/invoice.go": `package billing

func Total(amounts []int) int {
	sum := 0
	for _, a := range amounts {
		sum += a
	}
	return sum
}
`,
		"main.go": `package main

import "example.com/shop/pkg/billing"

func main() {
	_ = billing.Total([]int{1, 2, 3})
	_ = billing.Total(nil)
}
`,
		"scripts/report.py": `def render(rows):
    return "\n".join(str(r) for r in rows)
`,
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newIntegrationApp(t *testing.T) (*app.App, string) {
	t.Helper()
	root := t.TempDir()
	createWorkspace(t, root)

	cfgPath := filepath.Join(t.TempDir(), "chisel.toml")
	cfgBody := fmt.Sprintf(`version = 1

[paths]
workspace_root = %q

[validation.compilers]
go = ["chisel-test-missing-compiler", "{file}"]
python = ["chisel-test-missing-compiler", "{file}"]
`, root)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	appInstance, err := app.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = appInstance.Close() })
	return appInstance, root
}

func TestFullPipelineIntegration(t *testing.T) {
	appInstance, root := newIntegrationApp(t)
	ctx := context.Background()

	result, err := appInstance.IndexWorkspace(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.FilesIndexed, "go.mod is not a source file")
	assert.Empty(t, result.Warnings)

	stats, err := appInstance.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.NotZero(t, stats.Nodes)
	assert.NotZero(t, stats.Edges)

	// Resolution works across languages in the same graph.
	span, err := appInstance.Resolve(ctx, ports.ResolveRequest{Name: "Total"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "pkg/billing/invoice.go"), span.FilePath)
	assert.Equal(t, "go", span.Language)

	pySpan, err := appInstance.Resolve(ctx, ports.ResolveRequest{Name: "render"})
	require.NoError(t, err)
	assert.Equal(t, "python", pySpan.Language)

	set, err := appInstance.FindReferences(ctx, ports.ReferencesRequest{Name: "Total"})
	require.NoError(t, err)
	assert.Len(t, set.References, 2)
	for _, ref := range set.References {
		assert.Equal(t, filepath.Join(root, "main.go"), ref.FilePath)
		assert.True(t, ref.IsQualified)
	}

	// A valid patch lands atomically and the graph follows.
	outcome, err := appInstance.ApplyPatch(ctx, ports.PatchRequest{
		Symbol: "render",
		NewText: `def render_table(rows):
    return "\n".join(str(r) for r in rows)
`,
	})
	require.NoError(t, err)
	assert.NotEqual(t, outcome.BeforeHash, outcome.AfterHash)

	_, err = appInstance.Resolve(ctx, ports.ResolveRequest{Name: "render_table"})
	require.NoError(t, err)
	_, err = appInstance.Resolve(ctx, ports.ResolveRequest{Name: "render"})
	assert.True(t, cerrors.IsCode(err, cerrors.CodeSymbolNotFound))

	// A patch that breaks the syntax gate rolls the file back untouched.
	before, err := os.ReadFile(span.FilePath)
	require.NoError(t, err)

	_, err = appInstance.ApplyPatch(ctx, ports.PatchRequest{
		Symbol:  "Total",
		NewText: "func Broken( {",
	})
	assert.True(t, cerrors.IsCode(err, cerrors.CodeParseFailed))

	after, err := os.ReadFile(span.FilePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = appInstance.Resolve(ctx, ports.ResolveRequest{Name: "Total"})
	require.NoError(t, err)
}

func TestPlanIntegration(t *testing.T) {
	appInstance, root := newIntegrationApp(t)
	ctx := context.Background()

	_, err := appInstance.IndexWorkspace(ctx)
	require.NoError(t, err)

	planPath := filepath.Join(t.TempDir(), "refactor.toml")
	planBody := fmt.Sprintf(`[[step]]
name = "rename python entry"

[step.patch]
symbol = "render"
new_text = '''def render_lines(rows):
    return "\n".join(str(r) for r in rows)
'''

[[step]]
name = "touch go helper"

[step.patch]
file = %q
symbol = "Total"
new_text = '''func Total(amounts []int) int {
	total := 0
	for _, a := range amounts {
		total += a
	}
	return total
}
'''
`, filepath.Join(root, "pkg/billing/invoice.go"))
	require.NoError(t, os.WriteFile(planPath, []byte(planBody), 0o644))

	steps, err := app.LoadPlan(planPath)
	require.NoError(t, err)
	require.Len(t, steps, 2)

	planResult, err := appInstance.RunPlan(ctx, steps)
	require.NoError(t, err)
	assert.Equal(t, 2, planResult.StepsTotal)
	assert.Equal(t, 2, planResult.StepsApplied)
	require.Len(t, planResult.Outcomes, 2)

	_, err = appInstance.Resolve(ctx, ports.ResolveRequest{Name: "render_lines"})
	require.NoError(t, err)
}
