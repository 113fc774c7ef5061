// # internal/core/ports/ports.go
package ports

import (
	"context"

	"chisel/internal/data/store"
	"chisel/internal/engine/parser"
	"chisel/internal/engine/refs"
)

// CodeParser abstracts source parsing and language-file support checks.
type CodeParser interface {
	ParseFile(path string, content []byte) (*parser.FileFacts, error)
	DetectLanguage(path string) (parser.LanguageSpec, bool)
	IsSupportedPath(path string) bool
	IsTestFile(path string) bool
	HasExtractor(path string) bool
	SupportedExtensions() []string
}

// IndexResult summarizes a workspace index run.
type IndexResult struct {
	FilesIndexed int
	FilesSkipped int
	Warnings     []string
}

// ResolveRequest names a symbol to locate. File and Kind are optional
// filters; without a file the lookup spans the whole workspace and fails on
// ambiguity rather than guessing.
type ResolveRequest struct {
	File string
	Kind string
	Name string
}

// ReferencesRequest names a symbol whose references should be collected.
type ReferencesRequest struct {
	File string
	Kind string
	Name string
}

// PatchRequest is one span replacement. When Symbol is set the span is
// resolved from the graph first and StartByte/EndByte are ignored.
type PatchRequest struct {
	File      string `toml:"file"`
	Symbol    string `toml:"symbol"`
	Kind      string `toml:"kind"`
	StartByte uint   `toml:"start_byte"`
	EndByte   uint   `toml:"end_byte"`
	NewText   string `toml:"new_text"`
}

// PatchOutcome reports an applied (and validated) patch.
type PatchOutcome struct {
	PatchID    string
	File       string
	BeforeHash string
	AfterHash  string
}

// PlanStep is one patch in an ordered plan.
type PlanStep struct {
	Name  string       `toml:"name"`
	Patch PatchRequest `toml:"patch"`
}

// PlanResult reports how far a plan got. Steps already applied before a
// failure stay applied; there is no cross-step rollback.
type PlanResult struct {
	StepsTotal   int
	StepsApplied int
	Outcomes     []PatchOutcome
}

// RefactorService is the driving port over index, resolve, reference, and
// patch use cases.
type RefactorService interface {
	IndexWorkspace(ctx context.Context) (IndexResult, error)
	Resolve(ctx context.Context, req ResolveRequest) (*store.ResolvedSpan, error)
	FindReferences(ctx context.Context, req ReferencesRequest) (*refs.ReferenceSet, error)
	ApplyPatch(ctx context.Context, req PatchRequest) (PatchOutcome, error)
	RunPlan(ctx context.Context, steps []PlanStep) (PlanResult, error)
	Stats(ctx context.Context) (store.Stats, error)
}
