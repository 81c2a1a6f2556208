// Package semantic builds control-flow graphs and resolves identifiers to
// types, enriching the IR produced by internal/ir with cross-file and
// external-analyzer information.
package semantic

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// BlockKind enumerates CFG block roles.
type BlockKind string

const (
	BlockEntry      BlockKind = "Entry"
	BlockExit       BlockKind = "Exit"
	BlockNormal     BlockKind = "Block"
	BlockCondition  BlockKind = "Condition"
	BlockLoopHeader BlockKind = "LoopHeader"
	BlockTry        BlockKind = "Try"
	BlockCatch      BlockKind = "Catch"
	BlockFinally    BlockKind = "Finally"
)

// CFGEdgeKind enumerates CFG edge roles.
type CFGEdgeKind string

const (
	CFGNormal      CFGEdgeKind = "Normal"
	CFGTrueBranch  CFGEdgeKind = "TrueBranch"
	CFGFalseBranch CFGEdgeKind = "FalseBranch"
	CFGException   CFGEdgeKind = "Exception"
	CFGLoopBack    CFGEdgeKind = "LoopBack"
)

// Block is one CFG node.
type Block struct {
	ID   int
	Kind BlockKind
}

// CFGEdge is one CFG edge between two blocks, referenced by block ID.
type CFGEdge struct {
	From, To int
	Kind     CFGEdgeKind
}

// CFG is the per-function control-flow graph: exactly one Entry, at least
// one Exit, every block reachable from Entry.
type CFG struct {
	Blocks []*Block
	Edges  []*CFGEdge
}

type cfgBuilder struct {
	cfg      *CFG
	branch   map[string]struct{}
	loop     map[string]struct{}
	tryKinds map[string]struct{}
}

// BuildCFG walks a function body node iteratively (explicit stack, no
// recursion) and produces its control-flow graph. branchKinds, loopKinds,
// tryKinds are the same pre-compiled classification sets the IR generator
// uses, passed in so the two stay consistent per language.
func BuildCFG(body *sitter.Node, branchKinds, loopKinds, tryKinds map[string]struct{}) *CFG {
	b := &cfgBuilder{
		cfg:      &CFG{},
		branch:   branchKinds,
		loop:     loopKinds,
		tryKinds: tryKinds,
	}

	entry := b.newBlock(BlockEntry)
	exit := b.newBlock(BlockExit)

	if body == nil {
		b.edge(entry.ID, exit.ID, CFGNormal)
		return b.cfg
	}

	type workItem struct {
		node *sitter.Node
		from int
	}

	cur := b.newBlock(BlockNormal)
	b.edge(entry.ID, cur.ID, CFGNormal)

	stack := []workItem{}
	count := int(body.ChildCount())
	for i := count - 1; i >= 0; i-- {
		if c := body.Child(i); c != nil {
			stack = append(stack, workItem{node: c, from: cur.ID})
		}
	}

	last := cur.ID
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nt := item.node.Type()

		switch {
		case b.isIn(nt, b.branch):
			cond := b.newBlock(BlockCondition)
			b.edge(last, cond.ID, CFGNormal)
			trueBlk := b.newBlock(BlockNormal)
			falseBlk := b.newBlock(BlockNormal)
			b.edge(cond.ID, trueBlk.ID, CFGTrueBranch)
			b.edge(cond.ID, falseBlk.ID, CFGFalseBranch)
			join := b.newBlock(BlockNormal)
			b.edge(trueBlk.ID, join.ID, CFGNormal)
			b.edge(falseBlk.ID, join.ID, CFGNormal)
			last = join.ID

		case b.isIn(nt, b.loop):
			header := b.newBlock(BlockLoopHeader)
			b.edge(last, header.ID, CFGNormal)
			body2 := b.newBlock(BlockNormal)
			b.edge(header.ID, body2.ID, CFGNormal)
			b.edge(body2.ID, header.ID, CFGLoopBack)
			after := b.newBlock(BlockNormal)
			b.edge(header.ID, after.ID, CFGNormal)
			last = after.ID

		case b.isIn(nt, b.tryKinds):
			tryBlk := b.newBlock(BlockTry)
			b.edge(last, tryBlk.ID, CFGNormal)
			catchBlk := b.newBlock(BlockCatch)
			b.edge(tryBlk.ID, catchBlk.ID, CFGException)
			finallyBlk := b.newBlock(BlockFinally)
			b.edge(tryBlk.ID, finallyBlk.ID, CFGNormal)
			b.edge(catchBlk.ID, finallyBlk.ID, CFGNormal)
			last = finallyBlk.ID

		case nt == "return_statement" || nt == "raise_statement" || nt == "throw_statement":
			b.edge(last, exit.ID, CFGNormal)
			// Siblings after an early return are unreachable and get no
			// blocks, so every block stays reachable from Entry.
			return b.cfg
		}
	}

	b.edge(last, exit.ID, CFGNormal)
	return b.cfg
}

func (b *cfgBuilder) newBlock(kind BlockKind) *Block {
	blk := &Block{ID: len(b.cfg.Blocks), Kind: kind}
	b.cfg.Blocks = append(b.cfg.Blocks, blk)
	return blk
}

func (b *cfgBuilder) edge(from, to int, kind CFGEdgeKind) {
	b.cfg.Edges = append(b.cfg.Edges, &CFGEdge{From: from, To: to, Kind: kind})
}

func (b *cfgBuilder) isIn(nodeType string, set map[string]struct{}) bool {
	_, ok := set[nodeType]
	return ok
}
