package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chisel/internal/mcp/contracts"
)

func TestParseToolArgsResolve(t *testing.T) {
	op, input, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "symbol.resolve",
		"params":    map[string]any{"name": " Login ", "kind": "function"},
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.OperationSymbolResolve, op)

	typed, ok := input.(contracts.SymbolResolveInput)
	require.True(t, ok)
	assert.Equal(t, "Login", typed.Name)
	assert.Equal(t, "function", typed.Kind)
}

func TestParseToolArgsRejectsWrongTool(t *testing.T) {
	_, _, err := ParseToolArgs("other", map[string]any{"operation": "graph.stats"})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)
}

func TestParseToolArgsRejectsUnknownOperation(t *testing.T) {
	_, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{"operation": "symbol.rename"})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)
}

func TestParseToolArgsSchemaRejectsExtraFields(t *testing.T) {
	_, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "symbol.resolve",
		"params":    map[string]any{"name": "Login", "unexpected": true},
	})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)
}

func TestParseToolArgsSchemaRejectsBadKind(t *testing.T) {
	_, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "symbol.resolve",
		"params":    map[string]any{"name": "Login", "kind": "gadget"},
	})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)
}

func TestParseToolArgsPatchNeedsTarget(t *testing.T) {
	_, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "patch.apply",
		"params":    map[string]any{"new_text": "x"},
	})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)

	_, input, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "patch.apply",
		"params":    map[string]any{"symbol": "Login", "new_text": "func SignIn() {}"},
	})
	require.NoError(t, err)
	typed, ok := input.(contracts.PatchApplyInput)
	require.True(t, ok)
	assert.Equal(t, "Login", typed.Symbol)
}

func TestParseToolArgsPatchInvertedSpan(t *testing.T) {
	_, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "patch.apply",
		"params": map[string]any{
			"file":       "a.go",
			"start_byte": 10,
			"end_byte":   4,
			"new_text":   "x",
		},
	})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)
}

func TestParseToolArgsPlanValidatesEverySteps(t *testing.T) {
	_, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{
		"operation": "plan.run",
		"params": map[string]any{
			"steps": []any{
				map[string]any{"patch": map[string]any{"symbol": "A", "new_text": "a"}},
				map[string]any{"patch": map[string]any{"new_text": "b"}},
			},
		},
	})
	require.Error(t, err)
	assertToolErrorCode(t, err, contracts.ErrorInvalidArgument)
}

func TestParseToolArgsEmptyParamsOperations(t *testing.T) {
	op, _, err := ParseToolArgs(contracts.ToolNameChisel, map[string]any{"operation": "graph.stats"})
	require.NoError(t, err)
	assert.Equal(t, contracts.OperationGraphStats, op)

	op, _, err = ParseToolArgs(contracts.ToolNameChisel, map[string]any{"operation": "index.run"})
	require.NoError(t, err)
	assert.Equal(t, contracts.OperationIndexRun, op)
}

func assertToolErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	toolErr, ok := err.(contracts.ToolError)
	require.True(t, ok, "expected ToolError, got %T", err)
	assert.Equal(t, code, toolErr.Code)
}
