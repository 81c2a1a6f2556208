package retriever

import (
	"sort"
	"strings"

	"github.com/codeintel/codeindex/internal/index"
)

// Weights is a per-source weight profile for fusion, keyed by
// index.Source* constants (vector, lexical, symbol, a graph pseudo-source
// folded from the symbol adapter's graph-expansion results).
type Weights map[string]float64

// baselineProfiles are the §4.9 weight table rows, one per Intent.
var baselineProfiles = map[Intent]Weights{
	IntentSymbol:   {index.SourceVector: 0.20, index.SourceLexical: 0.10, index.SourceSymbol: 0.40, index.SourceGraph: 0.30},
	IntentFlow:     {index.SourceVector: 0.20, index.SourceLexical: 0.10, index.SourceSymbol: 0.20, index.SourceGraph: 0.50},
	IntentConcept:  {index.SourceVector: 0.40, index.SourceLexical: 0.20, index.SourceSymbol: 0.10, index.SourceGraph: 0.30},
	IntentCode:     {index.SourceVector: 0.30, index.SourceLexical: 0.30, index.SourceSymbol: 0.20, index.SourceGraph: 0.20},
	IntentBalanced: {index.SourceVector: 0.25, index.SourceLexical: 0.25, index.SourceSymbol: 0.25, index.SourceGraph: 0.25},
}

// BlendProfile computes the active weight profile as
// Σ_i P(intent_i) · profile_i over the classifier's distribution.
func BlendProfile(scores IntentScores) Weights {
	out := Weights{}
	for intent, p := range scores {
		if p <= 0 {
			continue
		}
		profile := baselineProfiles[intent]
		for source, w := range profile {
			out[source] += p * w
		}
	}
	return out
}

// BoostForIntent applies the §4.9 step 7 non-linear intent boost to an
// already-blended profile, then renormalizes so weights sum to 1.
func BoostForIntent(weights Weights, scores IntentScores) Weights {
	out := Weights{}
	for k, v := range weights {
		out[k] = v
	}
	dominant, _ := scores.Dominant()
	if p := scores[IntentFlow]; dominant == IntentFlow && p > 0.20 {
		out[index.SourceGraph] *= 1.3
	}
	if p := scores[IntentSymbol]; dominant == IntentSymbol && p > 0.30 {
		out[index.SourceSymbol] *= 1.2
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total == 0 {
		return out
	}
	for k, v := range out {
		out[k] = v / total
	}
	return out
}

// rrfK is the RRF rank-offset constant per source family, tuned per §4.9:
// vector/lexical are deeper, noisier rankings; symbol/graph are shallower
// and more precise, so a smaller k keeps their top ranks more dominant.
func rrfK(source string) float64 {
	switch source {
	case index.SourceSymbol, index.SourceGraph:
		return 50
	default:
		return 70
	}
}

// consensusBoost implements b(m) for a chunk appearing in m >= 2 strategies.
func consensusBoost(m int) float64 {
	switch {
	case m >= 4:
		return 1.30
	case m == 3:
		return 1.22
	case m == 2:
		return 1.13
	default:
		return 1.0
	}
}

// Fused is one chunk's fused score plus bookkeeping needed by later
// pipeline stages (expansion boost, context building, explanation).
type Fused struct {
	ChunkID    string
	Score      float64
	Sources    []string
	FilePath   string
	StartLine  int
	EndLine    int
	SymbolID   string
	Metadata   map[string]any
}

// StrategyResult is one index adapter's raw hits for the current query.
type StrategyResult struct {
	Source string
	Hits   []index.SearchHit
}

// Fuse runs weighted RRF across every strategy's ranked hit list, applies
// consensus boosting, then the query-expansion boost. weights must already
// include the intent-based non-linear boost (BoostForIntent's output).
func Fuse(results []StrategyResult, weights Weights, exp Expansion) []Fused {
	byChunk := map[string]*Fused{}
	counts := map[string]int{}
	// order records first-seen chunk IDs in strategy order (vector, lexical,
	// symbol, graph, as passed in results), so the final sort's ties break
	// on that intent-stable order instead of Go's randomized map iteration.
	var order []string

	for _, r := range results {
		w := weights[r.Source]
		if w <= 0 {
			continue
		}
		k := rrfK(r.Source)
		for rank, hit := range r.Hits {
			contribution := w / (k + float64(rank))
			f, ok := byChunk[hit.ChunkID]
			if !ok {
				f = &Fused{
					ChunkID:   hit.ChunkID,
					FilePath:  hit.FilePath,
					StartLine: hit.StartLine,
					EndLine:   hit.EndLine,
					Metadata:  hit.Metadata,
				}
				if hit.Metadata != nil {
					if sid, ok := hit.Metadata["symbol_id"].(string); ok {
						f.SymbolID = sid
					}
				}
				// symbol/graph hits carry the symbol's own ID as the chunk
				// ID rather than a separate metadata key.
				if f.SymbolID == "" && (r.Source == index.SourceSymbol || r.Source == index.SourceGraph) {
					f.SymbolID = hit.ChunkID
				}
				byChunk[hit.ChunkID] = f
				order = append(order, hit.ChunkID)
			}
			f.Score += contribution
			f.Sources = append(f.Sources, r.Source)
			counts[hit.ChunkID]++
		}
	}

	out := make([]Fused, 0, len(order))
	for _, id := range order {
		f := byChunk[id]
		f.Score *= consensusBoost(counts[id])
		f.Score *= expansionBoost(*f, exp)
		out = append(out, *f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// expansionBoost implements §4.9 step 8: ×1.1 if an extracted symbol
// matches the chunk's symbol, or an extracted path/module appears in its
// file path.
func expansionBoost(f Fused, exp Expansion) float64 {
	for _, s := range exp.Symbols {
		if s == f.SymbolID {
			return 1.1
		}
	}
	for _, p := range exp.Paths {
		if p != "" && strings.Contains(f.FilePath, p) {
			return 1.1
		}
	}
	for _, m := range exp.Modules {
		if m != "" && strings.Contains(f.FilePath, m) {
			return 1.1
		}
	}
	return 1.0
}
