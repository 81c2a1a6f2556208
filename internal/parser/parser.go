// Package parser provides tree-sitter based parsing for extracting symbols from source code.
package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language represents a supported programming language.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
)

// SymbolKind represents the type of code symbol.
type SymbolKind string

const (
	SymbolFunction SymbolKind = "function"
	SymbolClass    SymbolKind = "class"
	SymbolMethod   SymbolKind = "method"
	SymbolVariable SymbolKind = "variable"
)

// Symbol represents a parsed code symbol.
type Symbol struct {
	Name      string     `json:"name"`
	Kind      SymbolKind `json:"kind"`
	FilePath  string     `json:"file_path"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	Content   string     `json:"content"`
	Docstring string     `json:"docstring,omitempty"`
	Parent    string     `json:"parent,omitempty"`
	Signature string     `json:"signature,omitempty"`
}

// Parser wraps tree-sitter for a specific language.
type Parser struct {
	language Language
	parser   *sitter.Parser
	lang     *sitter.Language
}

// NewParser creates a parser for the given language.
func NewParser(lang Language) (*Parser, error) {
	p := sitter.NewParser()

	var l *sitter.Language
	switch lang {
	case LanguagePython:
		l = getPythonLanguage()
	case LanguageJavaScript, LanguageTypeScript:
		l = getJavaScriptLanguage()
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	p.SetLanguage(l)

	return &Parser{
		language: lang,
		parser:   p,
		lang:     l,
	}, nil
}

// Parse parses source code and extracts symbols.
func (p *Parser) Parse(source []byte, filePath string) ([]Symbol, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	switch p.language {
	case LanguagePython:
		return extractPythonSymbols(tree.RootNode(), source, filePath)
	case LanguageJavaScript, LanguageTypeScript:
		return extractJavaScriptSymbols(tree.RootNode(), source, filePath)
	default:
		return nil, fmt.Errorf("extraction not implemented for: %s", p.language)
	}
}

// RawParseCtx exposes the underlying tree-sitter parse for callers (the IR
// generator) that need the raw tree rather than the flat Symbol list.
func RawParseCtx(ctx context.Context, p *Parser, source []byte) (*sitter.Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return tree, nil
}

// ParseIncremental reparses newSource given the tree produced from
// oldSource, reusing every unchanged subtree instead of reparsing from
// scratch (§4.1). It diffs oldSource/newSource into a single edit region
// (the common prefix and suffix bound the changed span, which is exact
// for a single-file edit and a safe, if coarser, over-approximation for
// a handful of disjoint edits collapsed into one), applies it to oldTree
// via Tree.Edit, then hands both the edited tree and the new source to
// ParseCtx so tree-sitter's incremental parser can skip unaffected nodes.
func ParseIncremental(ctx context.Context, p *Parser, oldTree *sitter.Tree, oldSource, newSource []byte) (*sitter.Tree, error) {
	if oldTree == nil {
		return RawParseCtx(ctx, p, newSource)
	}

	edit := computeEdit(oldSource, newSource)
	oldTree.Edit(edit)

	tree, err := p.parser.ParseCtx(ctx, oldTree, newSource)
	if err != nil {
		return nil, fmt.Errorf("incremental parse error: %w", err)
	}
	return tree, nil
}

// computeEdit finds the single byte range that changed between old and
// new by walking in from both ends, and expresses it as the
// sitter.EditInput tree-sitter needs to reuse subtrees outside that range.
func computeEdit(old, new []byte) sitter.EditInput {
	prefix := 0
	max := len(old)
	if len(new) < max {
		max = len(new)
	}
	for prefix < max && old[prefix] == new[prefix] {
		prefix++
	}

	oldSuffix := len(old)
	newSuffix := len(new)
	for oldSuffix > prefix && newSuffix > prefix && old[oldSuffix-1] == new[newSuffix-1] {
		oldSuffix--
		newSuffix--
	}

	return sitter.EditInput{
		StartIndex:  uint32(prefix),
		OldEndIndex: uint32(oldSuffix),
		NewEndIndex: uint32(newSuffix),
		StartPoint:  pointAt(old, prefix),
		OldEndPoint: pointAt(old, oldSuffix),
		NewEndPoint: pointAt(new, newSuffix),
	}
}

// pointAt converts a byte offset into a tree-sitter row/column position by
// counting newlines up to offset.
func pointAt(source []byte, offset int) sitter.Point {
	if offset > len(source) {
		offset = len(source)
	}
	row := uint32(0)
	lastNewline := -1
	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			row++
			lastNewline = i
		}
	}
	return sitter.Point{Row: row, Column: uint32(offset - lastNewline - 1)}
}

// DetectLanguage determines language from file extension.
func DetectLanguage(filePath string) (Language, bool) {
	switch {
	case hasExtension(filePath, ".py"):
		return LanguagePython, true
	case hasExtension(filePath, ".js", ".jsx"):
		return LanguageJavaScript, true
	case hasExtension(filePath, ".ts", ".tsx"):
		return LanguageTypeScript, true
	default:
		return "", false
	}
}

func hasExtension(path string, exts ...string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
