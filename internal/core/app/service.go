// # internal/core/app/service.go
package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/core/ports"
	"chisel/internal/data/store"
	"chisel/internal/engine/parser"
	"chisel/internal/engine/refs"
	"chisel/internal/shared/observability"
	"chisel/internal/shared/util"
)

// Resolve locates a symbol's exact byte span through the graph store.
func (a *App) Resolve(ctx context.Context, req ports.ResolveRequest) (*store.ResolvedSpan, error) {
	_, span := observability.Tracer.Start(ctx, "resolve")
	defer span.End()

	resolved, err := store.ResolveSpan(a.Store, req.File, req.Kind, req.Name)
	observability.ResolutionsTotal.WithLabelValues(resolveOutcome(err)).Inc()
	return resolved, err
}

// FindReferences collects every reference to a symbol across the workspace.
func (a *App) FindReferences(ctx context.Context, req ports.ReferencesRequest) (*refs.ReferenceSet, error) {
	_, span := observability.Tracer.Start(ctx, "find_references")
	defer span.End()

	resolved, err := store.ResolveSpan(a.Store, req.File, req.Kind, req.Name)
	if err != nil {
		return nil, err
	}

	def, err := a.definitionSymbol(resolved)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	set, err := a.finder.FindReferences(def)
	if err != nil {
		return nil, err
	}
	observability.ReferenceScanDuration.Observe(time.Since(start).Seconds())
	return set, nil
}

// ApplyPatch replaces a symbol's span, runs the validation gates, and rolls
// the file back when any gate fails. The graph is reindexed for the patched
// file on success.
func (a *App) ApplyPatch(ctx context.Context, req ports.PatchRequest) (ports.PatchOutcome, error) {
	ctx, span := observability.Tracer.Start(ctx, "apply_patch")
	defer span.End()

	a.patchMu.Lock()
	defer a.patchMu.Unlock()

	path := req.File
	start, end := req.StartByte, req.EndByte
	if req.Symbol != "" {
		resolved, err := store.ResolveSpan(a.Store, req.File, req.Kind, req.Symbol)
		if err != nil {
			return ports.PatchOutcome{}, err
		}
		path = resolved.FilePath
		start, end = resolved.StartByte, resolved.EndByte
	}
	if path == "" {
		return ports.PatchOutcome{}, cerrors.New(cerrors.CodeInvalidSpan, "patch target file is empty")
	}
	if err := a.checkWorkspacePath(path); err != nil {
		return ports.PatchOutcome{}, err
	}

	res, err := a.patcher.ApplySpanReplacement(path, start, end, req.NewText)
	if err != nil {
		observability.PatchesTotal.WithLabelValues("failed").Inc()
		return ports.PatchOutcome{}, err
	}

	if err := a.validatePatched(ctx, path); err != nil {
		if rbErr := a.patcher.Rollback(res); rbErr != nil {
			a.log.Error("rollback failed, file left in failed state",
				"file", path, "error", rbErr)
			observability.PatchesTotal.WithLabelValues("failed").Inc()
			return ports.PatchOutcome{}, errors.Join(err, rbErr)
		}
		observability.PatchesTotal.WithLabelValues("rolled_back").Inc()
		a.log.Warn("patch rolled back", "file", path, "error", err)
		return ports.PatchOutcome{}, err
	}

	if err := a.ProcessFile(path); err != nil {
		a.log.Warn("reindex after patch failed", "file", path, "error", err)
	}

	observability.PatchesTotal.WithLabelValues("applied").Inc()
	a.log.Info("patch applied", "file", path, "patch_id", res.ID.String())
	return ports.PatchOutcome{
		PatchID:    res.ID.String(),
		File:       res.FilePath,
		BeforeHash: res.BeforeHash,
		AfterHash:  res.AfterHash,
	}, nil
}

// checkWorkspacePath rejects patch targets outside the configured workspace
// root. Patching arbitrary files through a symlinked or absolute path is
// never what a refactoring plan means.
func (a *App) checkWorkspacePath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if !util.HasPathPrefix(abs, a.Config.Paths.WorkspaceRoot) {
		return cerrors.AddContext(
			cerrors.New(cerrors.CodeNotSupported, "patch target is outside the workspace"),
			cerrors.CtxPath, path)
	}
	return nil
}

// Stats reports graph store totals.
func (a *App) Stats(ctx context.Context) (store.Stats, error) {
	return a.Store.Stats()
}

func (a *App) validatePatched(ctx context.Context, path string) error {
	spec, ok := a.Parser.DetectLanguage(path)
	if !ok {
		return cerrors.AddContext(
			cerrors.New(cerrors.CodeNotSupported, "no language registered for patched file"),
			cerrors.CtxPath, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	start := time.Now()
	err = a.pipeline.Run(ctx, path, spec.Name, content)
	observability.ValidationDuration.WithLabelValues(gateOf(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ValidationFailuresTotal.WithLabelValues(gateOf(err)).Inc()
	}
	return err
}

// definitionSymbol maps a stored span back to the parsed symbol the finder
// needs. The resolver holds the parsed facts for every indexed file.
func (a *App) definitionSymbol(resolved *store.ResolvedSpan) (*parser.Symbol, error) {
	facts, ok := a.resolver.Facts(resolved.FilePath)
	if !ok {
		return nil, cerrors.AddContext(
			cerrors.New(cerrors.CodeInternal, "file present in graph but not in resolver"),
			cerrors.CtxPath, resolved.FilePath)
	}
	for i := range facts.Symbols {
		sym := &facts.Symbols[i]
		if sym.StartByte == resolved.StartByte && sym.Name == resolved.Name {
			return sym, nil
		}
	}
	if sym, ok := facts.SymbolNamed(resolved.Name); ok {
		return sym, nil
	}
	return nil, cerrors.AddContext(
		cerrors.New(cerrors.CodeSymbolNotFound, "symbol missing from parsed facts"),
		cerrors.CtxSymbol, resolved.Name)
}

func resolveOutcome(err error) string {
	switch {
	case err == nil:
		return "resolved"
	case cerrors.IsCode(err, cerrors.CodeAmbiguousSymbol):
		return "ambiguous"
	case cerrors.IsCode(err, cerrors.CodeSymbolNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// gateOf labels a validation result by the gate that produced it.
func gateOf(err error) string {
	if err == nil {
		return "all"
	}
	var de *cerrors.DomainError
	if errors.As(err, &de) {
		if gate, ok := de.Context[cerrors.CtxGate].(string); ok {
			return gate
		}
	}
	return "unknown"
}
