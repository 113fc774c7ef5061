// # internal/core/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version       int                 `toml:"version"`
	Paths         Paths               `toml:"paths"`
	Languages     map[string]Language `toml:"languages"`
	Exclude       Exclude             `toml:"exclude"`
	Watch         Watch               `toml:"watch"`
	Validation    Validation          `toml:"validation"`
	Observability Observability       `toml:"observability"`
	MCP           MCP                 `toml:"mcp"`
}

type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	StorePath     string `toml:"store_path"`
}

type Language struct {
	Enabled    *bool    `toml:"enabled"`
	Extensions []string `toml:"extensions"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Validation struct {
	Timeout      time.Duration       `toml:"timeout"`
	AnalyzerMode string              `toml:"analyzer_mode"`
	Compilers    map[string][]string `toml:"compilers"`
	Analyzers    map[string][]string `toml:"analyzers"`
}

type Observability struct {
	Enabled      bool   `toml:"enabled"`
	Address      string `toml:"address"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
}

type MCP struct {
	Enabled   bool    `toml:"enabled"`
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// Load reads a TOML config file, fills defaults, and validates it. An empty
// path yields the defaults for the current directory.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Paths.WorkspaceRoot) == "" {
		cfg.Paths.WorkspaceRoot = "."
	}
	if abs, err := filepath.Abs(cfg.Paths.WorkspaceRoot); err == nil {
		cfg.Paths.WorkspaceRoot = abs
	}
	if strings.TrimSpace(cfg.Paths.StorePath) == "" {
		cfg.Paths.StorePath = filepath.Join(cfg.Paths.WorkspaceRoot, ".chisel", "graph.db")
	}

	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{
			".git", ".chisel", "node_modules", "target", "vendor", "dist",
			"__pycache__", ".venv", "build",
		}
	}

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}

	if cfg.Validation.Timeout <= 0 {
		cfg.Validation.Timeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.Validation.AnalyzerMode) == "" {
		cfg.Validation.AnalyzerMode = "off"
	}

	if strings.TrimSpace(cfg.Observability.Address) == "" {
		cfg.Observability.Address = "127.0.0.1:9187"
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "chisel"
	}

	if cfg.MCP.RateLimit <= 0 {
		cfg.MCP.RateLimit = 10
	}
	if cfg.MCP.RateBurst <= 0 {
		cfg.MCP.RateBurst = 20
	}
}

func validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d", cfg.Version)
	}

	info, err := os.Stat(cfg.Paths.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("workspace root %q: %w", cfg.Paths.WorkspaceRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace root %q is not a directory", cfg.Paths.WorkspaceRoot)
	}

	switch cfg.Validation.AnalyzerMode {
	case "off", "strict":
	default:
		return fmt.Errorf("validation.analyzer_mode must be \"off\" or \"strict\", got %q", cfg.Validation.AnalyzerMode)
	}

	for lang, argv := range cfg.Validation.Compilers {
		if len(argv) == 0 {
			return fmt.Errorf("validation.compilers.%s must not be empty", lang)
		}
	}
	for lang, argv := range cfg.Validation.Analyzers {
		if len(argv) == 0 {
			return fmt.Errorf("validation.analyzers.%s must not be empty", lang)
		}
	}

	return nil
}
