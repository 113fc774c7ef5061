// # internal/engine/parser/parser.go
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Extractor turns a parse tree into language-agnostic symbol and import facts.
type Extractor interface {
	Extract(root *sitter.Node, source []byte, filePath, modulePath string) (*FileFacts, error)
}

type Parser struct {
	loader     *GrammarLoader
	root       string // workspace root for module path derivation
	extractors map[string]Extractor
}

func NewParser(loader *GrammarLoader, root string) *Parser {
	p := &Parser{
		loader:     loader,
		root:       root,
		extractors: make(map[string]Extractor),
	}
	p.RegisterExtractor("go", &GoExtractor{})
	p.RegisterExtractor("python", &PythonExtractor{})
	p.RegisterExtractor("rust", &RustExtractor{})
	return p
}

func (p *Parser) RegisterExtractor(lang string, e Extractor) {
	p.extractors[lang] = e
}

func (p *Parser) Root() string {
	return p.root
}

func (p *Parser) SupportedExtensions() []string {
	return p.loader.SupportedExtensions()
}

// DetectLanguage returns the spec for a path, or false for unsupported files.
func (p *Parser) DetectLanguage(path string) (LanguageSpec, bool) {
	return DetectLanguage(p.loader.LanguageRegistry(), path)
}

func (p *Parser) IsSupportedPath(path string) bool {
	_, ok := p.DetectLanguage(path)
	return ok
}

func (p *Parser) IsTestFile(path string) bool {
	return IsTestFile(p.loader.LanguageRegistry(), path)
}

// HasExtractor reports whether the path's language is integrated with
// symbol extraction (as opposed to parse-only).
func (p *Parser) HasExtractor(path string) bool {
	spec, ok := p.DetectLanguage(path)
	return ok && spec.ExtractorReady
}

// ParseTree parses content with the grammar for lang. The caller owns the
// returned tree and must Close it.
func (p *Parser) ParseTree(lang string, content []byte) (*sitter.Tree, error) {
	grammar, ok := p.loader.Language(lang)
	if !ok {
		return nil, fmt.Errorf("grammar not loaded: %s", lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errors.New("parse failed")
	}
	return tree, nil
}

// ParseFile extracts symbol and import facts from one source file. Facts are
// produced fresh on every call; nothing is cached between invocations.
func (p *Parser) ParseFile(path string, content []byte) (*FileFacts, error) {
	spec, ok := p.DetectLanguage(path)
	if !ok {
		return nil, errors.New("unsupported language")
	}
	if !spec.ExtractorReady {
		return nil, fmt.Errorf("no extractor for: %s", spec.Name)
	}

	extractor := p.extractors[spec.Name]
	if extractor == nil {
		return nil, fmt.Errorf("no extractor for: %s", spec.Name)
	}

	tree, err := p.ParseTree(spec.Name, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	modulePath := p.ModulePathFor(spec, path)
	facts, err := extractor.Extract(tree.RootNode(), content, path, modulePath)
	if err != nil {
		return nil, err
	}
	facts.ParsedAt = time.Now()
	return facts, nil
}

// ModulePathFor derives the logical module path of a file from its position
// under the workspace root, in the language's own path idiom.
func (p *Parser) ModulePathFor(spec LanguageSpec, path string) string {
	rel, err := filepath.Rel(p.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)

	switch spec.Name {
	case "python":
		rel = strings.TrimSuffix(rel, ".py")
		rel = strings.TrimSuffix(rel, "/__init__")
		if rel == "__init__" {
			return ""
		}
		return strings.ReplaceAll(rel, "/", ".")
	case "rust":
		rel = strings.TrimSuffix(rel, ".rs")
		rel = strings.TrimPrefix(rel, "src/")
		rel = strings.TrimSuffix(rel, "/mod")
		if rel == "lib" || rel == "main" {
			return "crate"
		}
		return "crate::" + strings.ReplaceAll(rel, "/", "::")
	default:
		dir := filepath.ToSlash(filepath.Dir(rel))
		if dir == "." {
			return filepath.Base(p.root)
		}
		return dir
	}
}
