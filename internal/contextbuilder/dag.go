package contextbuilder

import "github.com/codeintel/codeindex/internal/ir"

// dependencyEdgeKinds is the edge-kind subset the definitions-before-uses
// ordering is built from (§4.10 step 1).
var dependencyEdgeKinds = map[ir.EdgeKind]struct{}{
	ir.EdgeInherits:       {},
	ir.EdgeReferencesType: {},
	ir.EdgeInstantiates:   {},
	ir.EdgeImports:        {},
	ir.EdgeCalls:          {},
}

// dagNode is one chunk's position in the dependency graph: its rank in the
// fused result (for tie-breaking within a cycle) and its outgoing edges to
// other selected chunks (chunks it depends on, i.e. should come after).
type dagNode struct {
	chunkID string
	rank    int
	deps    []string // chunk IDs this chunk depends on (must come first)
}

// buildDependencyGraph maps IR edges between the symbols backing the
// selected chunks into a chunk-level dependency graph. Edges whose
// endpoints aren't both in the selection are dropped.
func buildDependencyGraph(chunks []Candidate, edges []*ir.Edge) map[string]*dagNode {
	bySymbol := make(map[string]string, len(chunks)) // symbol id -> chunk id
	nodes := make(map[string]*dagNode, len(chunks))
	for i, c := range chunks {
		nodes[c.ChunkID] = &dagNode{chunkID: c.ChunkID, rank: i}
		if c.SymbolID != "" {
			bySymbol[c.SymbolID] = c.ChunkID
		}
	}

	for _, e := range edges {
		if _, ok := dependencyEdgeKinds[e.Kind]; !ok {
			continue
		}
		fromChunk, ok1 := bySymbol[e.SourceID]
		toChunk, ok2 := bySymbol[e.TargetID]
		if !ok1 || !ok2 || fromChunk == toChunk {
			continue
		}
		// e: fromChunk -> toChunk means "fromChunk uses/calls toChunk", so
		// toChunk (the definition) must be emitted first: fromChunk depends
		// on toChunk.
		nodes[fromChunk].deps = append(nodes[fromChunk].deps, toChunk)
	}
	return nodes
}

// topoOrder returns chunk IDs ordered so dependencies precede dependents,
// using Tarjan's SCC algorithm to collapse cycles into single units
// (emitted in original rank order internally and at the point of the
// SCC's earliest member).
func topoOrder(nodes map[string]*dagNode, order []string) []string {
	t := &tarjan{
		nodes:   nodes,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, id := range order {
		if _, visited := t.index[id]; !visited {
			t.strongConnect(id)
		}
	}
	// Tarjan completes sink components first (a "uses" edge points from a
	// chunk to its dependency, so a dependency with no further deps of its
	// own is a sink and finishes first) — exactly the definitions-before-
	// uses order we want, with no extra reversal needed.
	var out []string
	for _, scc := range t.sccs {
		out = append(out, scc...)
	}
	return out
}

type tarjan struct {
	nodes   map[string]*dagNode
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.nodes[v].deps {
		if _, ok := t.nodes[w]; !ok {
			continue
		}
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		// Within an SCC (a genuine cycle, or the trivial single-node case),
		// preserve original fused rank order.
		sortByRank(scc, t.nodes)
		t.sccs = append(t.sccs, scc)
	}
}

func sortByRank(scc []string, nodes map[string]*dagNode) {
	for i := 1; i < len(scc); i++ {
		for j := i; j > 0 && nodes[scc[j]].rank < nodes[scc[j-1]].rank; j-- {
			scc[j], scc[j-1] = scc[j-1], scc[j]
		}
	}
}
