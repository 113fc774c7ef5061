// # internal/engine/validate/pipeline.go
package validate

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/engine/parser"
)

const (
	GateSyntax   = "syntax"
	GateCompiler = "compiler"
	GateAnalyzer = "analyzer"
)

// AnalyzerMode controls the deep-analysis gate. In strict mode any output
// from the analyzer fails validation; severity is deliberately not parsed.
type AnalyzerMode string

const (
	AnalyzerOff    AnalyzerMode = "off"
	AnalyzerStrict AnalyzerMode = "strict"
)

// Config holds per-language check commands. Argv entries may use the
// placeholders {file} and {dir}, replaced with the patched file's path and
// directory before execution.
type Config struct {
	Timeout      time.Duration
	Compilers    map[string][]string
	Analyzers    map[string][]string
	AnalyzerMode AnalyzerMode
}

func DefaultConfig() Config {
	return Config{
		Timeout: 60 * time.Second,
		Compilers: map[string][]string{
			"go":     {"go", "vet", "{dir}"},
			"python": {"python3", "-m", "py_compile", "{file}"},
			"rust":   {"cargo", "check", "--quiet"},
		},
		Analyzers: map[string][]string{
			"rust": {"rust-analyzer", "diagnostics", "{dir}"},
		},
		AnalyzerMode: AnalyzerOff,
	}
}

// Pipeline runs the post-patch validation gates in fixed order: syntax,
// compiler, analyzer. The first hard failure stops the run. A missing
// compiler binary is a soft skip; a missing analyzer binary in strict mode
// is a hard failure, since the caller explicitly asked for deep analysis.
type Pipeline struct {
	parser *parser.Parser
	root   string
	cfg    Config
	log    *slog.Logger

	runCommand func(ctx context.Context, dir string, argv []string) ([]byte, error)
	lookPath   func(string) (string, error)
}

func NewPipeline(p *parser.Parser, root string, cfg Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Pipeline{
		parser: p,
		root:   root,
		cfg:    cfg,
		log:    log,
		runCommand: func(ctx context.Context, dir string, argv []string) ([]byte, error) {
			cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
			cmd.Dir = dir
			return cmd.CombinedOutput()
		},
		lookPath: exec.LookPath,
	}
}

// Run validates one patched file. content is the post-patch file body, used
// by the syntax gate so it never races a concurrent writer.
func (pl *Pipeline) Run(ctx context.Context, path, language string, content []byte) error {
	if err := pl.syntaxGate(path, language, content); err != nil {
		return err
	}
	if err := pl.compilerGate(ctx, path, language); err != nil {
		return err
	}
	return pl.analyzerGate(ctx, path, language)
}

func (pl *Pipeline) syntaxGate(path, language string, content []byte) error {
	tree, err := pl.parser.ParseTree(language, content)
	if err != nil {
		return cerrors.AddContext(err, cerrors.CtxGate, GateSyntax)
	}
	defer tree.Close()

	if tree.RootNode().HasError() {
		return cerrors.AddContext(cerrors.AddContext(
			cerrors.New(cerrors.CodeParseFailed, "patched file has syntax errors"),
			cerrors.CtxGate, GateSyntax), cerrors.CtxPath, path)
	}
	return nil
}

func (pl *Pipeline) compilerGate(ctx context.Context, path, language string) error {
	argv, ok := pl.cfg.Compilers[language]
	if !ok || len(argv) == 0 {
		return nil
	}
	argv = expandPlaceholders(argv, path)

	if _, err := pl.lookPath(argv[0]); err != nil {
		// Unable to validate is not a failure; the toolchain may simply
		// not be installed where the engine runs.
		pl.log.Warn("compiler check skipped, binary not found",
			"gate", GateCompiler, "binary", argv[0], "language", language)
		return nil
	}

	output, err := pl.run(ctx, argv)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pl.timeoutError(GateCompiler, argv[0], path)
		}
		return cerrors.AddContext(cerrors.AddContext(cerrors.AddContext(
			cerrors.New(cerrors.CodeCompilerFailed, firstLines(output, 20)),
			cerrors.CtxGate, GateCompiler), cerrors.CtxPath, path),
			cerrors.CtxLanguage, language)
	}
	return nil
}

func (pl *Pipeline) analyzerGate(ctx context.Context, path, language string) error {
	if pl.cfg.AnalyzerMode != AnalyzerStrict {
		return nil
	}
	argv, ok := pl.cfg.Analyzers[language]
	if !ok || len(argv) == 0 {
		return nil
	}
	argv = expandPlaceholders(argv, path)

	if _, err := pl.lookPath(argv[0]); err != nil {
		return cerrors.AddContext(cerrors.AddContext(
			cerrors.New(cerrors.CodeAnalyzerMissing, "analyzer binary not found: "+argv[0]),
			cerrors.CtxGate, GateAnalyzer), cerrors.CtxLanguage, language)
	}

	output, err := pl.run(ctx, argv)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return pl.timeoutError(GateAnalyzer, argv[0], path)
	}
	// Any diagnostic output at all fails the gate, including on exit 0.
	if err != nil || len(strings.TrimSpace(string(output))) > 0 {
		return cerrors.AddContext(cerrors.AddContext(cerrors.AddContext(
			cerrors.New(cerrors.CodeAnalyzerFailed, firstLines(output, 20)),
			cerrors.CtxGate, GateAnalyzer), cerrors.CtxPath, path),
			cerrors.CtxLanguage, language)
	}
	return nil
}

func (pl *Pipeline) run(parent context.Context, argv []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(parent, pl.cfg.Timeout)
	defer cancel()

	output, err := pl.runCommand(ctx, pl.root, argv)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return output, context.DeadlineExceeded
	}
	return output, err
}

func (pl *Pipeline) timeoutError(gate, binary, path string) error {
	return cerrors.AddContext(cerrors.AddContext(
		cerrors.New(cerrors.CodeValidationTimeout,
			"validation command timed out after "+pl.cfg.Timeout.String()+": "+binary),
		cerrors.CtxGate, gate), cerrors.CtxPath, path)
}

func expandPlaceholders(argv []string, path string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		arg = strings.ReplaceAll(arg, "{file}", path)
		arg = strings.ReplaceAll(arg, "{dir}", filepath.Dir(path))
		out[i] = arg
	}
	return out
}

func firstLines(output []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
