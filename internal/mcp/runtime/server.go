package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/core/ports"
	"chisel/internal/mcp/contracts"
	"chisel/internal/mcp/registry"
	"chisel/internal/mcp/transport"
	"chisel/internal/mcp/validate"
)

// Server exposes a RefactorService over an MCP transport. All tool calls
// funnel through one registry keyed by operation id; argument validation
// happens before dispatch.
type Server struct {
	service   ports.RefactorService
	registry  *registry.Registry
	transport transport.Adapter
	log       *slog.Logger

	mu      sync.Mutex
	running bool
}

func New(service ports.RefactorService, adapter transport.Adapter, log *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("refactor service is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		service:   service,
		registry:  registry.New(),
		transport: adapter,
		log:       log,
	}
	if err := s.registerOperations(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info("mcp runtime active", "tool", contracts.ToolNameChisel,
		"operations", s.registry.Operations())

	err := s.transport.Start(ctx, s.handleToolCall)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return err
}

func (s *Server) Stop() error {
	return s.transport.Stop()
}

func (s *Server) handleToolCall(ctx context.Context, tool string, raw map[string]any) (any, error) {
	operation, input, err := validate.ParseToolArgs(tool, raw)
	if err != nil {
		return nil, err
	}

	handler, ok := s.registry.HandlerFor(string(operation))
	if !ok {
		return nil, contracts.ToolError{
			Code:    contracts.ErrorInvalidArgument,
			Message: fmt.Sprintf("unsupported operation: %s", operation),
		}
	}

	result, err := handler(ctx, input)
	if err != nil {
		s.log.Warn("tool call failed", "operation", operation, "error", err)
		return nil, toToolError(err)
	}
	return result, nil
}

func (s *Server) registerOperations() error {
	register := func(op contracts.OperationID, h registry.Handler) error {
		return s.registry.Register(string(op), h)
	}

	if err := register(contracts.OperationIndexRun, s.handleIndexRun); err != nil {
		return err
	}
	if err := register(contracts.OperationSymbolResolve, s.handleSymbolResolve); err != nil {
		return err
	}
	if err := register(contracts.OperationSymbolReferences, s.handleSymbolReferences); err != nil {
		return err
	}
	if err := register(contracts.OperationPatchApply, s.handlePatchApply); err != nil {
		return err
	}
	if err := register(contracts.OperationPlanRun, s.handlePlanRun); err != nil {
		return err
	}
	return register(contracts.OperationGraphStats, s.handleGraphStats)
}

func (s *Server) handleIndexRun(ctx context.Context, _ any) (any, error) {
	started := time.Now()
	result, err := s.service.IndexWorkspace(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.IndexRunOutput{
		FilesIndexed: result.FilesIndexed,
		FilesSkipped: result.FilesSkipped,
		DurationMs:   int(time.Since(started).Milliseconds()),
		Warnings:     result.Warnings,
	}, nil
}

func (s *Server) handleSymbolResolve(ctx context.Context, input any) (any, error) {
	req, ok := input.(contracts.SymbolResolveInput)
	if !ok {
		return nil, contracts.ToolError{Code: contracts.ErrorInternal, Message: "unexpected input type"}
	}

	span, err := s.service.Resolve(ctx, ports.ResolveRequest{
		File: req.File,
		Kind: req.Kind,
		Name: req.Name,
	})
	if err != nil {
		return nil, err
	}
	return contracts.SymbolResolveOutput{Symbol: contracts.SymbolSpan{
		File:      span.FilePath,
		Name:      span.Name,
		Kind:      span.Kind,
		Language:  span.Language,
		StartByte: span.StartByte,
		EndByte:   span.EndByte,
		StartLine: span.StartLine,
		EndLine:   span.EndLine,
	}}, nil
}

func (s *Server) handleSymbolReferences(ctx context.Context, input any) (any, error) {
	req, ok := input.(contracts.SymbolReferencesInput)
	if !ok {
		return nil, contracts.ToolError{Code: contracts.ErrorInternal, Message: "unexpected input type"}
	}

	set, err := s.service.FindReferences(ctx, ports.ReferencesRequest{
		File: req.File,
		Kind: req.Kind,
		Name: req.Name,
	})
	if err != nil {
		return nil, err
	}

	out := contracts.SymbolReferencesOutput{
		Definition: contracts.SymbolSpan{
			File:      set.Definition.FilePath,
			Name:      set.Definition.Name,
			Kind:      string(set.Definition.Kind),
			Language:  set.Definition.Language,
			StartByte: set.Definition.StartByte,
			EndByte:   set.Definition.EndByte,
			StartLine: set.Definition.StartLine,
			EndLine:   set.Definition.EndLine,
		},
		ReferenceCount:   len(set.References),
		HasGlobAmbiguity: set.HasGlobAmbiguity,
	}
	for _, ref := range set.References {
		out.References = append(out.References, contracts.ReferenceEntry{
			File:      ref.FilePath,
			StartByte: ref.StartByte,
			EndByte:   ref.EndByte,
			Line:      ref.Line,
			Column:    ref.Column,
			Context:   string(ref.Context),
			Qualified: ref.IsQualified,
		})
	}
	return out, nil
}

func (s *Server) handlePatchApply(ctx context.Context, input any) (any, error) {
	req, ok := input.(contracts.PatchApplyInput)
	if !ok {
		return nil, contracts.ToolError{Code: contracts.ErrorInternal, Message: "unexpected input type"}
	}

	outcome, err := s.service.ApplyPatch(ctx, toPatchRequest(req))
	if err != nil {
		return nil, err
	}
	return toPatchOutput(outcome), nil
}

func (s *Server) handlePlanRun(ctx context.Context, input any) (any, error) {
	req, ok := input.(contracts.PlanRunInput)
	if !ok {
		return nil, contracts.ToolError{Code: contracts.ErrorInternal, Message: "unexpected input type"}
	}

	steps := make([]ports.PlanStep, 0, len(req.Steps))
	for _, step := range req.Steps {
		steps = append(steps, ports.PlanStep{
			Name:  step.Name,
			Patch: toPatchRequest(step.Patch),
		})
	}

	result, runErr := s.service.RunPlan(ctx, steps)
	out := contracts.PlanRunOutput{
		StepsTotal:   result.StepsTotal,
		StepsApplied: result.StepsApplied,
	}
	for _, outcome := range result.Outcomes {
		out.Outcomes = append(out.Outcomes, toPatchOutput(outcome))
	}
	if runErr != nil {
		return nil, toToolErrorWithDetails(runErr, map[string]any{
			"steps_total":   out.StepsTotal,
			"steps_applied": out.StepsApplied,
		})
	}
	return out, nil
}

func (s *Server) handleGraphStats(ctx context.Context, _ any) (any, error) {
	stats, err := s.service.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return contracts.GraphStatsOutput{
		Files: stats.Files,
		Nodes: stats.Nodes,
		Edges: stats.Edges,
	}, nil
}

func toPatchRequest(in contracts.PatchApplyInput) ports.PatchRequest {
	return ports.PatchRequest{
		File:      in.File,
		Symbol:    in.Symbol,
		Kind:      in.Kind,
		StartByte: in.StartByte,
		EndByte:   in.EndByte,
		NewText:   in.NewText,
	}
}

func toPatchOutput(outcome ports.PatchOutcome) contracts.PatchApplyOutput {
	return contracts.PatchApplyOutput{
		PatchID:    outcome.PatchID,
		File:       outcome.File,
		BeforeHash: outcome.BeforeHash,
		AfterHash:  outcome.AfterHash,
	}
}

// toToolError maps domain error codes onto the wire contract.
func toToolError(err error) contracts.ToolError {
	return toToolErrorWithDetails(err, nil)
}

func toToolErrorWithDetails(err error, details map[string]any) contracts.ToolError {
	var toolErr contracts.ToolError
	switch {
	case cerrors.IsCode(err, cerrors.CodeSymbolNotFound):
		toolErr = contracts.ToolError{Code: contracts.ErrorNotFound, Message: err.Error()}
	case cerrors.IsCode(err, cerrors.CodeAmbiguousSymbol):
		toolErr = contracts.ToolError{Code: contracts.ErrorAmbiguous, Message: err.Error()}
		if candidates := cerrors.CandidateFiles(err); len(candidates) > 0 {
			toolErr.Details = map[string]any{"candidates": candidates}
		}
	case cerrors.IsCode(err, cerrors.CodeInvalidSpan):
		toolErr = contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: err.Error()}
	case cerrors.IsCode(err, cerrors.CodeParseFailed),
		cerrors.IsCode(err, cerrors.CodeCompilerFailed),
		cerrors.IsCode(err, cerrors.CodeAnalyzerFailed),
		cerrors.IsCode(err, cerrors.CodeAnalyzerMissing),
		cerrors.IsCode(err, cerrors.CodeValidationTimeout),
		cerrors.IsCode(err, cerrors.CodePlanFailed):
		toolErr = contracts.ToolError{Code: contracts.ErrorValidation, Message: err.Error()}
	default:
		toolErr = contracts.ToolError{Code: contracts.ErrorInternal, Message: err.Error()}
	}

	if details != nil {
		if toolErr.Details == nil {
			toolErr.Details = map[string]any{}
		}
		for k, v := range details {
			toolErr.Details[k] = v
		}
	}
	return toolErr
}
