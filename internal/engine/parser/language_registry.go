// # internal/engine/parser/language_registry.go
package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// LanguageSpec describes one supported language. ExtractorReady languages
// produce symbol and import facts; the rest are parse-only and participate
// exclusively in the syntax validation gate.
type LanguageSpec struct {
	Name             string
	Extensions       []string
	TestFileSuffixes []string
	PathSeparator    string // module path separator ("::", ".", "/")
	Enabled          bool
	ExtractorReady   bool
}

func DefaultLanguageRegistry() map[string]LanguageSpec {
	return map[string]LanguageSpec{
		"go": {
			Name:             "go",
			Extensions:       []string{".go"},
			TestFileSuffixes: []string{"_test.go"},
			PathSeparator:    "/",
			Enabled:          true,
			ExtractorReady:   true,
		},
		"python": {
			Name:             "python",
			Extensions:       []string{".py"},
			TestFileSuffixes: []string{"_test.py"},
			PathSeparator:    ".",
			Enabled:          true,
			ExtractorReady:   true,
		},
		"rust": {
			Name:             "rust",
			Extensions:       []string{".rs"},
			PathSeparator:    "::",
			Enabled:          true,
			ExtractorReady:   true,
		},
		"javascript": {
			Name:           "javascript",
			Extensions:     []string{".js", ".cjs", ".mjs"},
			PathSeparator:  "/",
			Enabled:        true,
			ExtractorReady: false,
		},
		"typescript": {
			Name:           "typescript",
			Extensions:     []string{".ts"},
			PathSeparator:  "/",
			Enabled:        true,
			ExtractorReady: false,
		},
		"tsx": {
			Name:           "tsx",
			Extensions:     []string{".tsx"},
			PathSeparator:  "/",
			Enabled:        true,
			ExtractorReady: false,
		},
		"java": {
			Name:           "java",
			Extensions:     []string{".java"},
			PathSeparator:  ".",
			Enabled:        true,
			ExtractorReady: false,
		},
	}
}

type LanguageOverride struct {
	Enabled    *bool
	Extensions []string
}

// BuildLanguageRegistry applies config overrides onto the default registry.
func BuildLanguageRegistry(overrides map[string]LanguageOverride) (map[string]LanguageSpec, error) {
	registry := DefaultLanguageRegistry()
	for langID, override := range overrides {
		spec, ok := registry[langID]
		if !ok {
			return nil, fmt.Errorf("unknown language in overrides: %s", langID)
		}
		if override.Enabled != nil {
			spec.Enabled = *override.Enabled
		}
		if len(override.Extensions) > 0 {
			exts := make([]string, 0, len(override.Extensions))
			for _, ext := range override.Extensions {
				ext = strings.TrimSpace(ext)
				if ext == "" {
					continue
				}
				if !strings.HasPrefix(ext, ".") {
					ext = "." + ext
				}
				exts = append(exts, strings.ToLower(ext))
			}
			spec.Extensions = exts
		}
		registry[langID] = spec
	}
	return registry, nil
}

// DetectLanguage maps a file path to a registered, enabled language.
func DetectLanguage(registry map[string]LanguageSpec, path string) (LanguageSpec, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return LanguageSpec{}, false
	}

	for _, langID := range sortedLanguageIDs(registry) {
		spec := registry[langID]
		if !spec.Enabled {
			continue
		}
		for _, candidate := range spec.Extensions {
			if candidate == ext {
				return spec, true
			}
		}
	}
	return LanguageSpec{}, false
}

// IsTestFile reports whether the path matches the language's test convention.
func IsTestFile(registry map[string]LanguageSpec, path string) bool {
	base := filepath.Base(path)
	for _, spec := range registry {
		for _, suffix := range spec.TestFileSuffixes {
			if strings.HasSuffix(base, suffix) {
				return true
			}
		}
		if spec.Name == "python" && strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py") {
			return true
		}
	}
	return false
}

func sortedLanguageIDs(registry map[string]LanguageSpec) []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
