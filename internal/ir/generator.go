package ir

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeintel/codeindex/internal/parser"
)

// SourceFile is the minimal input the generator needs beyond the AST: the
// path the IR is scoped to and the original bytes (for span-accurate
// content slicing and the literal-kind sets below).
type SourceFile struct {
	RepoID   string
	FilePath string
	Source   []byte
	Language parser.Language
}

// kindSet is an O(1) set-membership table for node-type classification.
type kindSet map[string]struct{}

func newKindSet(kinds ...string) kindSet {
	s := make(kindSet, len(kinds))
	for _, k := range kinds {
		s[k] = struct{}{}
	}
	return s
}

func (s kindSet) has(k string) bool {
	_, ok := s[k]
	return ok
}

// languageTables bundles the pre-compiled classification sets and the
// handler dispatch table for one language, built once per Generator.
type languageTables struct {
	branchKinds kindSet
	loopKinds   kindSet
	tryKinds    kindSet
	skipKinds   kindSet
	handlers    map[string]nodeHandler
}

// frame is one entry of the explicit traversal stack. No recursion is used
// anywhere in Generate: a parse error or deeply nested file must not grow
// the Go call stack.
type frame struct {
	node     *sitter.Node
	parentID string
	fqnScope string
	fn       *FunctionMetrics
	fnNodeID string
}

// nodeHandler inspects the current frame's node, optionally emits an IR
// node/edge, and returns the frame-context children should inherit. The
// generator always pushes the node's children with that returned context;
// a handler cannot stop descent into its subtree (only skipKinds do).
type nodeHandler func(g *Generator, doc *Document, sf *SourceFile, fr frame) (childParentID, childFQNScope string, childFn *FunctionMetrics, childFnNodeID string)

// Generator converts an AstTree plus its SourceFile into an IRDocument in a
// single iterative, explicit-stack depth-first pass. Per-function metrics
// (cyclomatic complexity, loop_count, has_try, branch_count, calls,
// assignments, imports) are computed in the same pass rather than in a
// second scan.
type Generator struct {
	tables map[parser.Language]*languageTables
}

// ClassificationSets exposes the pre-compiled branch/loop/try node-type
// sets for a language so other pipeline stages (the CFG builder in
// internal/semantic) classify nodes identically to the IR generator.
func (g *Generator) ClassificationSets(lang parser.Language) (branch, loop, try map[string]struct{}, ok bool) {
	t, exists := g.tables[lang]
	if !exists {
		return nil, nil, nil, false
	}
	return map[string]struct{}(t.branchKinds), map[string]struct{}(t.loopKinds), map[string]struct{}(t.tryKinds), true
}

// NewGenerator builds the classification sets and handler tables once.
func NewGenerator() *Generator {
	g := &Generator{tables: make(map[parser.Language]*languageTables)}
	g.tables[parser.LanguagePython] = pythonTables()
	jsTables := javascriptTables()
	g.tables[parser.LanguageJavaScript] = jsTables
	g.tables[parser.LanguageTypeScript] = jsTables
	return g
}

// Generate produces an IRDocument for one file. If ast is nil, the file is
// parsed first via a fresh parser.Parser for sf.Language.
func (g *Generator) Generate(ctx context.Context, sf SourceFile, snapshotID string, ast *sitter.Tree) (doc *Document, err error) {
	tables, ok := g.tables[sf.Language]
	if !ok {
		return nil, fmt.Errorf("ir: unsupported language %q", sf.Language)
	}

	tree := ast
	if tree == nil {
		p, perr := parser.NewParser(sf.Language)
		if perr != nil {
			return nil, perr
		}
		tree, err = rawParse(ctx, p, sf.Source)
		if err != nil {
			return nil, err
		}
	}

	doc = NewDocument(sf.RepoID, snapshotID, sf.FilePath)

	defer func() {
		if r := recover(); r != nil {
			// A fatal invariant violation (missing parent, malformed
			// cursor walk) aborts generation for this file only; it is
			// reported as a per-file error, never a batch failure.
			err = fmt.Errorf("ir: invariant violation generating %s: %v", sf.FilePath, r)
			doc = nil
		}
	}()

	root := tree.RootNode()
	fileID := NodeID(sf.RepoID, snapshotID, sf.FilePath, KindFile, sf.FilePath, 0, 0)
	doc.AddNode(&Node{
		ID:          fileID,
		Kind:        KindFile,
		FQN:         sf.FilePath,
		Name:        sf.FilePath,
		Span:        spanOf(root, sf.FilePath),
		ContentHash: contentHash(sf.Source),
	})

	stack := []frame{{node: root, parentID: fileID, fqnScope: ""}}

	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		nodeType := fr.node.Type()

		if tables.skipKinds.has(nodeType) {
			continue
		}

		childParentID := fr.parentID
		childFQNScope := fr.fqnScope
		childFn := fr.fn
		childFnNodeID := fr.fnNodeID

		if handler, ok := tables.handlers[nodeType]; ok {
			childParentID, childFQNScope, childFn, childFnNodeID = handler(g, doc, &sf, fr)
		} else {
			// No structural handler: still update the enclosing
			// function's derived metrics using O(1) set membership,
			// since branches/loops/try blocks can appear at any nesting
			// depth within a function body.
			if fr.fn != nil {
				classify(tables, fr.fn, nodeType)
			}
		}

		count := int(fr.node.ChildCount())
		for i := count - 1; i >= 0; i-- {
			child := fr.node.Child(i)
			if child == nil {
				continue
			}
			stack = append(stack, frame{
				node:     child,
				parentID: childParentID,
				fqnScope: childFQNScope,
				fn:       childFn,
				fnNodeID: childFnNodeID,
			})
		}
	}

	for _, n := range doc.Nodes {
		if n.Metrics != nil {
			finalizeComplexity(n.Metrics)
		}
	}

	return doc, nil
}

// classify updates the enclosing function's metrics for a single AST node
// using pre-compiled set membership, never a conditional chain.
func classify(tables *languageTables, fn *FunctionMetrics, nodeType string) {
	switch {
	case tables.branchKinds.has(nodeType):
		fn.BranchCount++
	case tables.loopKinds.has(nodeType):
		fn.LoopCount++
	case tables.tryKinds.has(nodeType):
		fn.HasTry = true
	}
}

func finalizeComplexity(fn *FunctionMetrics) {
	fn.CyclomaticComplexity = 1 + fn.BranchCount + fn.LoopCount
}

func rawParse(ctx context.Context, p *parser.Parser, source []byte) (*sitter.Tree, error) {
	return parser.RawParseCtx(ctx, p, source)
}

func spanOf(n *sitter.Node, filePath string) Span {
	sp := n.StartPoint()
	ep := n.EndPoint()
	return Span{
		FilePath:  filePath,
		StartLine: int(sp.Row),
		StartCol:  int(sp.Column),
		EndLine:   int(ep.Row),
		EndCol:    int(ep.Column),
	}
}

func nodeText(n *sitter.Node, source []byte) string {
	return string(source[n.StartByte():n.EndByte()])
}
