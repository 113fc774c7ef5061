package contracts

import "encoding/json"

const (
	ToolNameChisel  = "chisel"
	ContractVersion = "v1"
)

type OperationID string

const (
	OperationIndexRun         OperationID = "index.run"
	OperationSymbolResolve    OperationID = "symbol.resolve"
	OperationSymbolReferences OperationID = "symbol.references"
	OperationPatchApply       OperationID = "patch.apply"
	OperationPlanRun          OperationID = "plan.run"
	OperationGraphStats       OperationID = "graph.stats"
)

// ChiselToolInput is the single-tool envelope: one operation identifier and
// its operation-specific params object.
type ChiselToolInput struct {
	Operation OperationID     `json:"operation"`
	Params    json.RawMessage `json:"params,omitempty"`
}

type IndexRunInput struct{}

type IndexRunOutput struct {
	FilesIndexed int      `json:"files_indexed"`
	FilesSkipped int      `json:"files_skipped"`
	DurationMs   int      `json:"duration_ms"`
	Warnings     []string `json:"warnings,omitempty"`
}

type SymbolResolveInput struct {
	Name string `json:"name"`
	File string `json:"file,omitempty"`
	Kind string `json:"kind,omitempty"`
}

type SymbolSpan struct {
	File      string `json:"file"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Language  string `json:"language"`
	StartByte uint   `json:"start_byte"`
	EndByte   uint   `json:"end_byte"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

type SymbolResolveOutput struct {
	Symbol SymbolSpan `json:"symbol"`
}

type SymbolReferencesInput struct {
	Name string `json:"name"`
	File string `json:"file,omitempty"`
	Kind string `json:"kind,omitempty"`
}

type ReferenceEntry struct {
	File      string `json:"file"`
	StartByte uint   `json:"start_byte"`
	EndByte   uint   `json:"end_byte"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	Context   string `json:"context"`
	Qualified bool   `json:"qualified,omitempty"`
}

type SymbolReferencesOutput struct {
	Definition       SymbolSpan       `json:"definition"`
	ReferenceCount   int              `json:"reference_count"`
	References       []ReferenceEntry `json:"references,omitempty"`
	HasGlobAmbiguity bool             `json:"has_glob_ambiguity,omitempty"`
}

type PatchApplyInput struct {
	File      string `json:"file,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Kind      string `json:"kind,omitempty"`
	StartByte uint   `json:"start_byte,omitempty"`
	EndByte   uint   `json:"end_byte,omitempty"`
	NewText   string `json:"new_text"`
}

type PatchApplyOutput struct {
	PatchID    string `json:"patch_id"`
	File       string `json:"file"`
	BeforeHash string `json:"before_hash"`
	AfterHash  string `json:"after_hash"`
}

type PlanStepInput struct {
	Name  string          `json:"name,omitempty"`
	Patch PatchApplyInput `json:"patch"`
}

type PlanRunInput struct {
	Steps []PlanStepInput `json:"steps"`
}

type PlanRunOutput struct {
	StepsTotal   int                `json:"steps_total"`
	StepsApplied int                `json:"steps_applied"`
	Outcomes     []PatchApplyOutput `json:"outcomes,omitempty"`
}

type GraphStatsInput struct{}

type GraphStatsOutput struct {
	Files int `json:"files"`
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

type ToolError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e ToolError) Error() string {
	return e.Message
}

const (
	ErrorInvalidArgument = "invalid_argument"
	ErrorNotFound        = "not_found"
	ErrorAmbiguous       = "ambiguous"
	ErrorValidation      = "validation_failed"
	ErrorRateLimited     = "rate_limited"
	ErrorInternal        = "internal"
)
