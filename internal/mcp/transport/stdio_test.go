package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chisel/internal/mcp/contracts"
)

func runStdio(t *testing.T, input string, handler Handler, rateLimit float64, burst int) []map[string]any {
	t.Helper()

	var out bytes.Buffer
	s := NewStdioStreams(strings.NewReader(input), &out, rateLimit, burst)
	require.NoError(t, s.Start(context.Background(), handler))

	var responses []map[string]any
	decoder := json.NewDecoder(&out)
	for decoder.More() {
		var resp map[string]any
		require.NoError(t, decoder.Decode(&resp))
		responses = append(responses, resp)
	}
	return responses
}

func echoHandler(_ context.Context, tool string, raw map[string]any) (any, error) {
	return map[string]any{"tool": tool, "echo": raw["operation"]}, nil
}

func TestStdioLegacyFraming(t *testing.T) {
	input := `{"id": 1, "tool": "chisel", "args": {"operation": "graph.stats"}}` + "\n"
	responses := runStdio(t, input, echoHandler, 0, 0)

	require.Len(t, responses, 1)
	assert.Equal(t, true, responses[0]["ok"])
	result := responses[0]["result"].(map[string]any)
	assert.Equal(t, "chisel", result["tool"])
}

func TestStdioJSONRPCLifecycle(t *testing.T) {
	input := `{"jsonrpc": "2.0", "id": 1, "method": "initialize"}
{"jsonrpc": "2.0", "method": "notifications/initialized"}
{"jsonrpc": "2.0", "id": 2, "method": "tools/list"}
{"jsonrpc": "2.0", "id": 3, "method": "tools/call", "params": {"name": "chisel", "arguments": {"operation": "graph.stats"}}}
{"jsonrpc": "2.0", "id": 4, "method": "nope"}
`
	responses := runStdio(t, input, echoHandler, 0, 0)
	require.Len(t, responses, 4)

	init := responses[0]["result"].(map[string]any)
	serverInfo := init["serverInfo"].(map[string]any)
	assert.Equal(t, contracts.ToolNameChisel, serverInfo["name"])

	list := responses[1]["result"].(map[string]any)
	tools := list["tools"].([]any)
	require.Len(t, tools, 1)
	tool := tools[0].(map[string]any)
	assert.Equal(t, contracts.ToolNameChisel, tool["name"])

	call := responses[2]["result"].(map[string]any)
	assert.Equal(t, false, call["isError"])

	assert.NotNil(t, responses[3]["error"])
}

func TestStdioToolErrorShape(t *testing.T) {
	handler := func(_ context.Context, _ string, _ map[string]any) (any, error) {
		return nil, contracts.ToolError{Code: contracts.ErrorNotFound, Message: "missing"}
	}
	input := `{"id": 9, "tool": "chisel", "args": {}}` + "\n"
	responses := runStdio(t, input, handler, 0, 0)

	require.Len(t, responses, 1)
	assert.Equal(t, false, responses[0]["ok"])
	errObj := responses[0]["error"].(map[string]any)
	assert.Equal(t, contracts.ErrorNotFound, errObj["code"])
}

func TestStdioRateLimitSheds(t *testing.T) {
	input := strings.Repeat(`{"id": 1, "tool": "chisel", "args": {}}`+"\n", 3)
	responses := runStdio(t, input, echoHandler, 0.001, 1)
	require.Len(t, responses, 3)

	limited := 0
	for _, resp := range responses {
		if errObj, ok := resp["error"].(map[string]any); ok {
			if code, ok := errObj["code"].(float64); ok && int(code) == -32005 {
				limited++
			}
		}
	}
	assert.Equal(t, 2, limited)
}
