// # internal/core/app/app.go
package app

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gobwas/glob"

	"chisel/internal/core/config"
	"chisel/internal/data/store"
	"chisel/internal/engine/parser"
	"chisel/internal/engine/patch"
	"chisel/internal/engine/refs"
	"chisel/internal/engine/resolver"
	"chisel/internal/engine/validate"
	"chisel/internal/shared/util"
)

// App wires the engine packages into one refactoring service over a single
// workspace. Patch operations are serialized internally; read paths share
// the resolver state built during indexing.
type App struct {
	Config *config.Config
	Parser *parser.Parser
	Store  store.Storage

	resolver *resolver.Resolver
	finder   *refs.Finder
	patcher  *patch.Engine
	pipeline *validate.Pipeline

	IncludeTests bool

	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob

	reindexLimiter *util.Limiter

	log *slog.Logger

	// Single writer: resolve-patch-validate must not interleave.
	patchMu sync.Mutex
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	registry, err := parser.BuildLanguageRegistry(languageOverrides(cfg))
	if err != nil {
		return nil, err
	}
	loader, err := parser.NewGrammarLoader(registry)
	if err != nil {
		return nil, err
	}
	p := parser.NewParser(loader, cfg.Paths.WorkspaceRoot)

	st, err := store.Open(cfg.Paths.StorePath)
	if err != nil {
		return nil, err
	}

	res := resolver.New(registry)

	excludeDirs, err := compileGlobs(cfg.Exclude.Dirs, "exclude dir")
	if err != nil {
		return nil, err
	}
	excludeFiles, err := compileGlobs(cfg.Exclude.Files, "exclude file")
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:       cfg,
		Parser:       p,
		Store:        st,
		resolver:     res,
		finder:       refs.NewFinder(p, res),
		patcher:      patch.NewEngine(log),
		pipeline:     validate.NewPipeline(p, cfg.Paths.WorkspaceRoot, validationConfig(cfg), log),
		excludeDirs:  excludeDirs,
		excludeFiles: excludeFiles,
		// 50 files/s sustained keeps a branch switch from starving patches.
		reindexLimiter: util.NewLimiter(50, 200),

		log: log,
	}
	return a, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

func languageOverrides(cfg *config.Config) map[string]parser.LanguageOverride {
	if len(cfg.Languages) == 0 {
		return nil
	}
	overrides := make(map[string]parser.LanguageOverride, len(cfg.Languages))
	for id, lang := range cfg.Languages {
		overrides[id] = parser.LanguageOverride{
			Enabled:    lang.Enabled,
			Extensions: lang.Extensions,
		}
	}
	return overrides
}

func validationConfig(cfg *config.Config) validate.Config {
	vc := validate.DefaultConfig()
	vc.Timeout = cfg.Validation.Timeout
	vc.AnalyzerMode = validate.AnalyzerMode(cfg.Validation.AnalyzerMode)
	if len(cfg.Validation.Compilers) > 0 {
		vc.Compilers = cfg.Validation.Compilers
	}
	if len(cfg.Validation.Analyzers) > 0 {
		vc.Analyzers = cfg.Validation.Analyzers
	}
	return vc
}

func compileGlobs(patterns []string, kind string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", kind, pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}
