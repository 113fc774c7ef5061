package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"chisel/internal/mcp/contracts"
	"chisel/internal/mcp/schema"
)

// ParseToolArgs checks a raw tool call against the contract and returns the
// typed operation input. Params are validated structurally against the
// embedded OpenAPI schema before decoding, so handlers only ever see
// well-formed input.
func ParseToolArgs(tool string, raw map[string]any) (contracts.OperationID, any, error) {
	if strings.TrimSpace(tool) == "" {
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "tool name is required"}
	}
	if tool != contracts.ToolNameChisel {
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported tool: %s", tool)}
	}
	if raw == nil {
		raw = map[string]any{}
	}

	operationRaw, ok := raw["operation"].(string)
	if !ok || strings.TrimSpace(operationRaw) == "" {
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "operation is required"}
	}
	operation := contracts.OperationID(strings.TrimSpace(operationRaw))

	params := map[string]any{}
	if rawParams, ok := raw["params"]; ok && rawParams != nil {
		typed, ok := rawParams.(map[string]any)
		if !ok {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "params must be an object"}
		}
		params = typed
	}

	if err := checkSchema(operation, params); err != nil {
		return "", nil, err
	}

	switch operation {
	case contracts.OperationIndexRun:
		return operation, contracts.IndexRunInput{}, nil
	case contracts.OperationSymbolResolve:
		var input contracts.SymbolResolveInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		input.Name = strings.TrimSpace(input.Name)
		input.File = strings.TrimSpace(input.File)
		if input.Name == "" {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "name is required"}
		}
		return operation, input, nil
	case contracts.OperationSymbolReferences:
		var input contracts.SymbolReferencesInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		input.Name = strings.TrimSpace(input.Name)
		input.File = strings.TrimSpace(input.File)
		if input.Name == "" {
			return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "name is required"}
		}
		return operation, input, nil
	case contracts.OperationPatchApply:
		var input contracts.PatchApplyInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		if err := checkPatchTarget(&input); err != nil {
			return "", nil, err
		}
		return operation, input, nil
	case contracts.OperationPlanRun:
		var input contracts.PlanRunInput
		if err := decodeParams(params, &input); err != nil {
			return "", nil, err
		}
		for i := range input.Steps {
			if err := checkPatchTarget(&input.Steps[i].Patch); err != nil {
				return "", nil, err
			}
		}
		return operation, input, nil
	case contracts.OperationGraphStats:
		return operation, contracts.GraphStatsInput{}, nil
	default:
		return "", nil, contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported operation: %s", operation)}
	}
}

// checkPatchTarget enforces what the structural schema cannot: a patch names
// its target either by symbol or by explicit file span, never neither.
func checkPatchTarget(input *contracts.PatchApplyInput) error {
	input.File = strings.TrimSpace(input.File)
	input.Symbol = strings.TrimSpace(input.Symbol)
	if input.Symbol == "" {
		if input.File == "" {
			return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "patch needs a symbol or a file span"}
		}
		if input.EndByte < input.StartByte {
			return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "end_byte precedes start_byte"}
		}
	}
	return nil
}

func checkSchema(operation contracts.OperationID, params map[string]any) error {
	paramsSchema, err := schema.ParamsSchema(operation)
	if err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: fmt.Sprintf("unsupported operation: %s", operation)}
	}
	if err := paramsSchema.VisitJSON(normalizeJSON(params)); err != nil {
		return contracts.ToolError{
			Code:    contracts.ErrorInvalidArgument,
			Message: "params do not match the operation schema",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return nil
}

// normalizeJSON round-trips the params through encoding/json so numbers and
// nested maps carry the types the schema visitor expects.
func normalizeJSON(params map[string]any) any {
	data, err := json.Marshal(params)
	if err != nil {
		return params
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return params
	}
	return out
}

func decodeParams(params map[string]any, out any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params encoding"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "invalid params", Details: map[string]any{"error": err.Error()}}
	}
	return nil
}
