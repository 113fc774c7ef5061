// # internal/core/app/indexer.go
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"chisel/internal/core/ports"
	"chisel/internal/data/store"
	"chisel/internal/engine/parser"
	"chisel/internal/shared/observability"
)

// IndexWorkspace scans the workspace and rebuilds the symbol graph. Fact
// extraction runs in two phases: every file is parsed and registered first,
// then edges are persisted, so import resolution always sees the complete
// module index.
func (a *App) IndexWorkspace(ctx context.Context) (ports.IndexResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "index_workspace")
	defer span.End()

	files, err := a.ScanWorkspace()
	if err != nil {
		return ports.IndexResult{}, err
	}

	result := ports.IndexResult{}
	parsed := make([]*parser.FileFacts, 0, len(files))

	for _, path := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if !a.Parser.HasExtractor(path) {
			result.FilesSkipped++
			continue
		}

		facts, err := a.parseAndRegister(path)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		parsed = append(parsed, facts)
	}

	for _, facts := range parsed {
		if err := a.persistFile(facts); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %v", facts.Path, err))
			continue
		}
		result.FilesIndexed++
	}

	a.refreshGraphGauges()
	a.log.Info("workspace indexed",
		"files", result.FilesIndexed,
		"skipped", result.FilesSkipped,
		"warnings", len(result.Warnings))
	return result, nil
}

// ProcessFile reindexes one file, for watch-mode updates and post-patch
// refreshes. The rest of the module index is already in place, so edges can
// be persisted immediately.
func (a *App) ProcessFile(path string) error {
	facts, err := a.parseAndRegister(path)
	if err != nil {
		return err
	}
	if err := a.persistFile(facts); err != nil {
		return err
	}
	a.refreshGraphGauges()
	return nil
}

// RemoveFile drops a deleted file from the resolver and the graph store.
func (a *App) RemoveFile(path string) error {
	a.resolver.RemoveFile(path)
	if err := a.Store.DeleteFile(path); err != nil {
		return err
	}
	a.refreshGraphGauges()
	return nil
}

func (a *App) parseAndRegister(path string) (*parser.FileFacts, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	facts, err := a.Parser.ParseFile(path, content)
	if err != nil {
		return nil, err
	}
	observability.ParsingDuration.WithLabelValues(facts.Language).Observe(time.Since(start).Seconds())

	a.resolver.RemoveFile(path)
	a.resolver.AddFile(facts)
	return facts, nil
}

func (a *App) persistFile(facts *parser.FileFacts) error {
	nodes := make([]store.Node, 0, len(facts.Symbols))
	for i := range facts.Symbols {
		sym := &facts.Symbols[i]
		nodes = append(nodes, store.Node{
			FilePath:   sym.FilePath,
			Name:       sym.Name,
			Kind:       string(sym.Kind),
			Language:   sym.Language,
			ModulePath: sym.ModulePath,
			Visibility: string(sym.Visibility),
			StartByte:  sym.StartByte,
			EndByte:    sym.EndByte,
			StartLine:  sym.StartLine,
			EndLine:    sym.EndLine,
		})
	}

	edges := make([]store.Edge, 0, len(facts.Imports))
	for i := range facts.Imports {
		imp := &facts.Imports[i]
		target, ok := a.resolver.ResolveImport(facts.Path, imp)
		if !ok {
			continue
		}
		for _, name := range imp.Names {
			edges = append(edges, store.Edge{
				ToFile: target,
				Kind:   store.EdgeImport,
				Name:   name.Name,
			})
		}
		if len(imp.Names) == 0 {
			edges = append(edges, store.Edge{ToFile: target, Kind: store.EdgeImport})
		}
	}

	return a.Store.ReplaceFile(facts.Path, nodes, edges)
}

func (a *App) refreshGraphGauges() {
	stats, err := a.Store.Stats()
	if err != nil {
		return
	}
	observability.GraphNodes.Set(float64(stats.Nodes))
	observability.GraphEdges.Set(float64(stats.Edges))
}
