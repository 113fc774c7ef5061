package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	coreapp "chisel/internal/core/app"
	"chisel/internal/core/config"
	cerrors "chisel/internal/core/errors"
	"chisel/internal/core/ports"
	"chisel/internal/data/store"
	mcpruntime "chisel/internal/mcp/runtime"
	"chisel/internal/mcp/transport"
	"chisel/internal/shared/observability"
)

func Run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Printf("chisel v%s\n", versionString)
		return 0
	}

	if err := validateModeCompatibility(opts); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}

	configureLogging(opts.verbose)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.OTLPEndpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, cfg.Observability.ServiceName, cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(shutdownCtx)
			}()
		}
	}

	a, err := coreapp.New(cfg, slog.Default())
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer a.Close()
	a.IncludeTests = opts.includeTests

	if cfg.Observability.Enabled {
		obs := observability.NewServer(cfg.Observability.Address, slog.Default())
		obs.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = obs.Shutdown(shutdownCtx)
		}()
	}

	if opts.mcp || cfg.MCP.Enabled {
		return runMCPMode(ctx, cfg, a)
	}

	result, err := a.IndexWorkspace(ctx)
	if err != nil {
		slog.Error("indexing failed", "error", err)
		return 1
	}
	for _, warning := range result.Warnings {
		slog.Warn("index warning", "detail", warning)
	}

	switch {
	case opts.resolve != "":
		return runResolve(ctx, a, opts)
	case opts.refs != "":
		return runRefs(ctx, a, opts)
	case opts.patchSymbol != "" || opts.patchSpan != "":
		return runPatch(ctx, a, opts)
	case opts.plan != "":
		return runPlan(ctx, a, opts)
	case opts.watch:
		return runWatch(ctx, a)
	default:
		fmt.Printf("Indexed %d files (%d skipped, %d warnings)\n",
			result.FilesIndexed, result.FilesSkipped, len(result.Warnings))
		return 0
	}
}

func validateModeCompatibility(opts cliOptions) error {
	if opts.patchSymbol != "" && opts.patchSpan != "" {
		return errors.New("-patch and -patch-span cannot be used together")
	}
	if opts.index && opts.watch {
		return errors.New("-index runs once and exits, drop it or drop -watch")
	}
	if (opts.patchSymbol != "" || opts.patchSpan != "") && opts.replacement == "" {
		return errors.New("-patch/-patch-span require -replacement")
	}
	if opts.ui && opts.resolve == "" && opts.refs == "" && opts.patchSymbol == "" {
		return errors.New("-ui needs a symbol mode (-resolve, -refs, or -patch)")
	}
	return nil
}

func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// loadConfig tolerates a missing file only at the default path, falling back
// to built-in defaults for the current directory.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil && os.IsNotExist(err) && path == defaultConfigPath {
		return config.Load("")
	}
	return cfg, err
}

func runMCPMode(ctx context.Context, cfg *config.Config, a *coreapp.App) int {
	adapter := transport.NewStdio(cfg.MCP.RateLimit, cfg.MCP.RateBurst)
	server, err := mcpruntime.New(a, adapter, slog.Default())
	if err != nil {
		slog.Error("failed to start MCP server", "error", err)
		return 1
	}
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("MCP server failed", "error", err)
		return 1
	}
	return 0
}

func runResolve(ctx context.Context, a *coreapp.App, opts cliOptions) int {
	span, err := resolveWithPicker(ctx, a, opts, opts.resolve)
	if err != nil {
		return reportError(err)
	}
	printSpan(span.FilePath, span.Name, span.Kind, span.Language,
		span.StartByte, span.EndByte, span.StartLine, span.EndLine)
	return 0
}

func runRefs(ctx context.Context, a *coreapp.App, opts cliOptions) int {
	file := opts.file
	if opts.ui {
		span, err := resolveWithPicker(ctx, a, opts, opts.refs)
		if err != nil {
			return reportError(err)
		}
		file = span.FilePath
	}

	set, err := a.FindReferences(ctx, ports.ReferencesRequest{
		File: file,
		Kind: opts.kind,
		Name: opts.refs,
	})
	if err != nil {
		return reportError(err)
	}

	fmt.Printf("%s defined at %s:%d\n", set.Definition.Name, set.Definition.FilePath, set.Definition.StartLine)
	for _, ref := range set.References {
		qualifier := ""
		if ref.IsQualified {
			qualifier = " qualified"
		}
		fmt.Printf("  %s:%d:%d bytes %d-%d %s%s\n",
			ref.FilePath, ref.Line, ref.Column, ref.StartByte, ref.EndByte, ref.Context, qualifier)
	}
	if set.HasGlobAmbiguity {
		fmt.Println("  (wildcard imports present: reference set may be incomplete)")
	}
	return 0
}

func runPatch(ctx context.Context, a *coreapp.App, opts cliOptions) int {
	req := ports.PatchRequest{
		File:    opts.file,
		Symbol:  opts.patchSymbol,
		Kind:    opts.kind,
		NewText: opts.replacement,
	}
	if opts.patchSpan != "" {
		file, start, end, err := parsePatchSpan(opts.patchSpan)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			return 2
		}
		req.File, req.StartByte, req.EndByte, req.Symbol = file, start, end, ""
	} else if opts.ui {
		span, err := resolveWithPicker(ctx, a, opts, opts.patchSymbol)
		if err != nil {
			return reportError(err)
		}
		req.File = span.FilePath
	}

	outcome, err := a.ApplyPatch(ctx, req)
	if err != nil {
		return reportError(err)
	}
	fmt.Printf("Patched %s (patch %s)\n  before %s\n  after  %s\n",
		outcome.File, outcome.PatchID, outcome.BeforeHash, outcome.AfterHash)
	return 0
}

func runPlan(ctx context.Context, a *coreapp.App, opts cliOptions) int {
	steps, err := coreapp.LoadPlan(opts.plan)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	result, err := a.RunPlan(ctx, steps)
	fmt.Printf("Applied %d/%d steps\n", result.StepsApplied, result.StepsTotal)
	for _, outcome := range result.Outcomes {
		fmt.Printf("  %s patch %s\n", outcome.File, outcome.PatchID)
	}
	if err != nil {
		return reportError(err)
	}
	return 0
}

func runWatch(ctx context.Context, a *coreapp.App) int {
	err := a.WatchWorkspace(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("watch failed", "error", err)
		return 1
	}
	return 0
}

// resolveWithPicker resolves a name and, when the result is ambiguous and
// the picker is enabled, lets the user choose the defining file instead of
// failing.
func resolveWithPicker(ctx context.Context, a *coreapp.App, opts cliOptions, name string) (*store.ResolvedSpan, error) {
	span, err := a.Resolve(ctx, ports.ResolveRequest{File: opts.file, Kind: opts.kind, Name: name})
	if err == nil {
		return span, nil
	}
	if !opts.ui || !cerrors.IsCode(err, cerrors.CodeAmbiguousSymbol) {
		return nil, err
	}

	candidates := cerrors.CandidateFiles(err)
	choice, ok, pickErr := pickCandidate(name, candidates)
	if pickErr != nil {
		return nil, pickErr
	}
	if !ok {
		return nil, err
	}

	return a.Resolve(ctx, ports.ResolveRequest{File: choice, Kind: opts.kind, Name: name})
}

func parsePatchSpan(value string) (string, uint, uint, error) {
	parseErr := fmt.Errorf("invalid -patch-span %q, expected file:start:end", value)

	lastColon := strings.LastIndex(value, ":")
	if lastColon <= 0 {
		return "", 0, 0, parseErr
	}
	midColon := strings.LastIndex(value[:lastColon], ":")
	if midColon <= 0 {
		return "", 0, 0, parseErr
	}

	file := value[:midColon]
	start, err := strconv.ParseUint(value[midColon+1:lastColon], 10, 64)
	if err != nil {
		return "", 0, 0, parseErr
	}
	end, err := strconv.ParseUint(value[lastColon+1:], 10, 64)
	if err != nil {
		return "", 0, 0, parseErr
	}
	if end < start {
		return "", 0, 0, fmt.Errorf("invalid -patch-span %q: end precedes start", value)
	}
	return file, uint(start), uint(end), nil
}

func printSpan(file, name, kind, language string, startByte, endByte uint, startLine, endLine int) {
	fmt.Printf("%s %s\n  %s bytes %d-%d lines %d-%d (%s)\n",
		kind, name, file, startByte, endByte, startLine, endLine, language)
}

func reportError(err error) int {
	if candidates := cerrors.CandidateFiles(err); len(candidates) > 0 {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		for _, candidate := range candidates {
			fmt.Fprintf(os.Stderr, "  candidate: %s\n", candidate)
		}
		return 1
	}
	fmt.Fprintln(os.Stderr, err.Error())
	return 1
}
