// Package schema carries the chisel tool contract: the MCP tool definition
// exposed over tools/list and the OpenAPI document the per-operation param
// schemas are validated against.
package schema

import (
	_ "embed"
	"context"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"

	"chisel/internal/mcp/contracts"
)

//go:embed chisel.openapi.json
var contractDoc []byte

var (
	loadOnce sync.Once
	doc      *openapi3.T
	loadErr  error
)

// Document parses and validates the embedded contract once.
func Document() (*openapi3.T, error) {
	loadOnce.Do(func() {
		loader := openapi3.NewLoader()
		doc, loadErr = loader.LoadFromData(contractDoc)
		if loadErr != nil {
			return
		}
		loadErr = doc.Validate(context.Background())
	})
	return doc, loadErr
}

// ParamsSchema returns the schema the given operation's params must satisfy.
func ParamsSchema(op contracts.OperationID) (*openapi3.Schema, error) {
	d, err := Document()
	if err != nil {
		return nil, err
	}
	ref, ok := d.Components.Schemas[string(op)]
	if !ok || ref.Value == nil {
		return nil, fmt.Errorf("no schema for operation %q", op)
	}
	return ref.Value, nil
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
	Version     string         `json:"version"`
}

// BuildToolDefinitions lists the tools advertised over tools/list. Chisel
// exposes one tool with an operation discriminator.
func BuildToolDefinitions() []ToolDefinition {
	operations := []string{
		string(contracts.OperationIndexRun),
		string(contracts.OperationSymbolResolve),
		string(contracts.OperationSymbolReferences),
		string(contracts.OperationPatchApply),
		string(contracts.OperationPlanRun),
		string(contracts.OperationGraphStats),
	}

	return []ToolDefinition{
		{
			Name:        contracts.ToolNameChisel,
			Description: "Resolve symbols to byte spans, find references, and apply validated patches.",
			Version:     contracts.ContractVersion,
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"operation": map[string]any{
						"type":        "string",
						"description": "Operation identifier (e.g., symbol.resolve).",
						"enum":        operations,
					},
					"params": map[string]any{
						"type":                 "object",
						"additionalProperties": true,
					},
				},
				"required": []string{"operation"},
			},
		},
	}
}
