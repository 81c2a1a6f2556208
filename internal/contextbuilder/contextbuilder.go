// Package contextbuilder turns a ranked chunk list and a token budget into
// an ordered, deduplicated context: definitions before uses, architectural
// layer priority, call-chain proximity for flow queries, falling back to
// score order, packed against an exact tiktoken budget.
package contextbuilder

import (
	"sort"
	"strings"

	"github.com/codeintel/codeindex/internal/ir"
	"github.com/codeintel/codeindex/internal/retriever"
)

// Candidate is one ranked chunk as the context builder sees it: enough of
// retriever.Fused plus the chunk's own content/symbol linkage to order,
// deduplicate, and pack it.
type Candidate struct {
	ChunkID   string
	SymbolID  string
	FilePath  string
	StartLine int
	EndLine   int
	Content   string
	Score     float64
}

// FromFused adapts retriever.Fused results (which don't carry chunk
// content) into Candidates once the caller has resolved content from the
// relational store.
func FromFused(fused []retriever.Fused, content map[string]string) []Candidate {
	out := make([]Candidate, 0, len(fused))
	for _, f := range fused {
		out = append(out, Candidate{
			ChunkID:   f.ChunkID,
			SymbolID:  f.SymbolID,
			FilePath:  f.FilePath,
			StartLine: f.StartLine,
			EndLine:   f.EndLine,
			Content:   content[f.ChunkID],
			Score:     f.Score,
		})
	}
	return out
}

// layerOrder ranks architectural layers for step 2 of §4.10 when a query
// implies layer traversal: router -> handler -> service -> repository/store.
var layerOrder = []string{"router", "handler", "service", "repository", "store"}

func layerRank(filePath string) int {
	lower := strings.ToLower(filePath)
	for i, layer := range layerOrder {
		if strings.Contains(lower, layer) {
			return i
		}
	}
	return len(layerOrder)
}

// Options configures one Build call.
type Options struct {
	Budget       int
	Model        string
	FlowIntent   bool
	LayerAware   bool
	CallChain    []string // ordered chunk IDs along the call path, for flow intent
	Edges        []*ir.Edge
}

// Result is the packed, ordered context.
type Result struct {
	Chunks      []Candidate
	TotalTokens int
	Dropped     int // candidates that fit the ordering but exceeded budget
}

// Build dedups overlapping spans, orders by §4.10's priority chain, then
// packs chunks into tok.Budget without ever truncating inside a chunk.
func Build(candidates []Candidate, opts Options) (*Result, error) {
	counter, err := NewTokenCounter(opts.Model)
	if err != nil {
		return nil, err
	}

	deduped := dedupeOverlapping(candidates)
	ordered := order(deduped, opts)

	res := &Result{}
	for _, c := range ordered {
		n := counter.Count(c.Content)
		if res.TotalTokens+n > opts.Budget {
			res.Dropped++
			continue
		}
		res.Chunks = append(res.Chunks, c)
		res.TotalTokens += n
	}
	return res, nil
}

// dedupeOverlapping collapses same-file spans overlapping more than 70%
// into the longer span; when both spans have the same length, the one
// that comes first in candidates is kept. Scores are not compared.
func dedupeOverlapping(candidates []Candidate) []Candidate {
	byFile := map[string][]int{}
	keep := make([]bool, len(candidates))
	for i := range keep {
		keep[i] = true
	}
	for i, c := range candidates {
		byFile[c.FilePath] = append(byFile[c.FilePath], i)
	}

	for _, idxs := range byFile {
		for a := 0; a < len(idxs); a++ {
			i := idxs[a]
			if !keep[i] {
				continue
			}
			for b := a + 1; b < len(idxs); b++ {
				j := idxs[b]
				if !keep[j] {
					continue
				}
				if overlapFraction(candidates[i], candidates[j]) > 0.70 {
					if spanLen(candidates[j]) > spanLen(candidates[i]) {
						keep[i] = false
					} else {
						keep[j] = false
					}
				}
			}
		}
	}

	out := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func spanLen(c Candidate) int { return c.EndLine - c.StartLine + 1 }

func overlapFraction(a, b Candidate) float64 {
	start := max(a.StartLine, b.StartLine)
	end := min(a.EndLine, b.EndLine)
	if end < start {
		return 0
	}
	overlap := float64(end - start + 1)
	shorter := float64(min(spanLen(a), spanLen(b)))
	if shorter == 0 {
		return 0
	}
	return overlap / shorter
}

// order applies the §4.10 priority chain: dependency DAG topo order when
// edges are available, then architectural layer, then call-chain
// proximity for flow intent, falling back to score order.
func order(candidates []Candidate, opts Options) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if len(opts.Edges) > 0 {
		rankOrder := make([]string, len(candidates))
		for i, c := range candidates {
			rankOrder[i] = c.ChunkID
		}
		nodes := buildDependencyGraph(candidates, opts.Edges)
		topo := topoOrder(nodes, rankOrder)
		candidates = reorderByIDs(candidates, topo)
	}

	if opts.LayerAware {
		sort.SliceStable(candidates, func(i, j int) bool {
			return layerRank(candidates[i].FilePath) < layerRank(candidates[j].FilePath)
		})
	}

	if opts.FlowIntent && len(opts.CallChain) > 0 {
		candidates = reorderByIDs(candidates, opts.CallChain)
	}

	return candidates
}

func reorderByIDs(candidates []Candidate, idOrder []string) []Candidate {
	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ChunkID] = c
	}
	out := make([]Candidate, 0, len(candidates))
	seen := map[string]struct{}{}
	for _, id := range idOrder {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			seen[id] = struct{}{}
		}
	}
	// Candidates topoOrder/CallChain didn't know about (no symbol linkage,
	// or outside the call chain) keep their prior relative order, appended
	// after the ones that were explicitly ordered.
	for _, c := range candidates {
		if _, ok := seen[c.ChunkID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
