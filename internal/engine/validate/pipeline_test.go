// # internal/engine/validate/pipeline_test.go
package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	cerrors "chisel/internal/core/errors"
	"chisel/internal/engine/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	loader, err := parser.NewGrammarLoader(nil)
	require.NoError(t, err)
	p := parser.NewParser(loader, t.TempDir())
	return NewPipeline(p, t.TempDir(), cfg, nil)
}

func TestSyntaxGatePassesValidSource(t *testing.T) {
	pl := newTestPipeline(t, Config{})
	pl.cfg.Compilers = nil

	err := pl.Run(context.Background(), "main.go", "go", []byte("package main\n\nfunc main() {}\n"))
	assert.NoError(t, err)
}

func TestSyntaxGateRejectsBrokenSource(t *testing.T) {
	pl := newTestPipeline(t, Config{})

	err := pl.Run(context.Background(), "main.go", "go", []byte("package main\n\nfunc main( {}\n"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeParseFailed))
}

func TestSyntaxFailureShortCircuitsCompilerGate(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	pl.lookPath = func(name string) (string, error) { return name, nil }
	pl.runCommand = func(context.Context, string, []string) ([]byte, error) {
		t.Fatal("compiler must not run after a syntax failure")
		return nil, nil
	}

	err := pl.Run(context.Background(), "main.go", "go", []byte("package main\n\nfunc main( {}\n"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeParseFailed))
}

func TestCompilerGateMissingBinaryIsSoftSkip(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	pl.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	pl.runCommand = func(context.Context, string, []string) ([]byte, error) {
		t.Fatal("command must not run when the binary is missing")
		return nil, nil
	}

	err := pl.Run(context.Background(), "main.go", "go", []byte("package main\n"))
	assert.NoError(t, err)
}

func TestCompilerGateDiagnosticsAreHardFailure(t *testing.T) {
	pl := newTestPipeline(t, DefaultConfig())
	pl.lookPath = func(name string) (string, error) { return name, nil }
	pl.runCommand = func(context.Context, string, []string) ([]byte, error) {
		return []byte("main.go:3:1: undefined: missingFunc\n"), errors.New("exit status 1")
	}

	err := pl.Run(context.Background(), "main.go", "go", []byte("package main\n"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeCompilerFailed))
	assert.Contains(t, err.Error(), "undefined: missingFunc")
}

func TestCompilerGateTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond

	pl := newTestPipeline(t, cfg)
	pl.lookPath = func(name string) (string, error) { return name, nil }
	pl.runCommand = func(ctx context.Context, _ string, _ []string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	err := pl.Run(context.Background(), "main.go", "go", []byte("package main\n"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeValidationTimeout))
}

func TestAnalyzerGateAnyOutputFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compilers = nil
	cfg.AnalyzerMode = AnalyzerStrict

	pl := newTestPipeline(t, cfg)
	pl.lookPath = func(name string) (string, error) { return name, nil }
	pl.runCommand = func(context.Context, string, []string) ([]byte, error) {
		return []byte("warning: unused variable `x`\n"), nil
	}

	err := pl.Run(context.Background(), "src/lib.rs", "rust", []byte("pub fn f() {}\n"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeAnalyzerFailed))
}

func TestAnalyzerGateSilenceIsSuccess(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compilers = nil
	cfg.AnalyzerMode = AnalyzerStrict

	pl := newTestPipeline(t, cfg)
	pl.lookPath = func(name string) (string, error) { return name, nil }
	pl.runCommand = func(context.Context, string, []string) ([]byte, error) {
		return nil, nil
	}

	err := pl.Run(context.Background(), "src/lib.rs", "rust", []byte("pub fn f() {}\n"))
	assert.NoError(t, err)
}

func TestAnalyzerGateMissingBinaryIsHardFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compilers = nil
	cfg.AnalyzerMode = AnalyzerStrict

	pl := newTestPipeline(t, cfg)
	pl.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	err := pl.Run(context.Background(), "src/lib.rs", "rust", []byte("pub fn f() {}\n"))
	require.Error(t, err)
	assert.True(t, cerrors.IsCode(err, cerrors.CodeAnalyzerMissing))
}

func TestAnalyzerOffByDefault(t *testing.T) {
	pl := newTestPipeline(t, Config{Compilers: map[string][]string{}})
	pl.lookPath = func(string) (string, error) { t.Fatal("analyzer must not be probed when off"); return "", nil }

	err := pl.Run(context.Background(), "src/lib.rs", "rust", []byte("pub fn f() {}\n"))
	assert.NoError(t, err)
}
