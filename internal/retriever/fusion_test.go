package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeintel/codeindex/internal/index"
)

func equalWeights() Weights {
	return Weights{
		index.SourceVector:  0.25,
		index.SourceLexical: 0.25,
		index.SourceSymbol:  0.25,
		index.SourceGraph:   0.25,
	}
}

func TestFuse_RankIsZeroBased(t *testing.T) {
	// A lone vector hit at rank 0 must score w / k, not w / (k + 1): the
	// RRF rank offset is 0-based per this package's own documented formula.
	results := []StrategyResult{
		{Source: index.SourceVector, Hits: []index.SearchHit{{ChunkID: "a"}}},
	}
	out := Fuse(results, equalWeights(), Expansion{})
	require.Len(t, out, 1)

	w := equalWeights()[index.SourceVector]
	k := rrfK(index.SourceVector)
	assert.InDelta(t, w/k, out[0].Score, 1e-9)
}

func TestFuse_TieBreaksOnFirstSeenOrder(t *testing.T) {
	// Three chunks tie at rank 0 across three strategies weighted
	// identically; repeated runs must return them in the same order
	// (the order the strategies were passed in), never map-random order.
	results := []StrategyResult{
		{Source: index.SourceVector, Hits: []index.SearchHit{{ChunkID: "a"}}},
		{Source: index.SourceLexical, Hits: []index.SearchHit{{ChunkID: "b"}}},
		{Source: index.SourceFuzzy, Hits: []index.SearchHit{{ChunkID: "c"}}},
	}
	weights := Weights{
		index.SourceVector:  0.3,
		index.SourceLexical: 0.3,
		index.SourceFuzzy:   0.3,
	}

	var firstOrder []string
	for i := 0; i < 20; i++ {
		out := Fuse(results, weights, Expansion{})
		require.Len(t, out, 3)
		ids := []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID}
		if firstOrder == nil {
			firstOrder = ids
		} else {
			assert.Equal(t, firstOrder, ids, "tie-break order must be deterministic across runs")
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, firstOrder)
}

func TestFuse_ConsensusBoostsChunksAppearingInMultipleStrategies(t *testing.T) {
	results := []StrategyResult{
		{Source: index.SourceVector, Hits: []index.SearchHit{{ChunkID: "shared"}, {ChunkID: "vec-only"}}},
		{Source: index.SourceLexical, Hits: []index.SearchHit{{ChunkID: "shared"}}},
	}
	weights := Weights{index.SourceVector: 0.5, index.SourceLexical: 0.5}

	out := Fuse(results, weights, Expansion{})
	byID := map[string]Fused{}
	for _, f := range out {
		byID[f.ChunkID] = f
	}

	require.Contains(t, byID, "shared")
	require.Contains(t, byID, "vec-only")
	assert.Greater(t, byID["shared"].Score, byID["vec-only"].Score)
	assert.Len(t, byID["shared"].Sources, 2)
}

func TestFuse_ZeroWeightStrategyContributesNothing(t *testing.T) {
	results := []StrategyResult{
		{Source: index.SourceVector, Hits: []index.SearchHit{{ChunkID: "a"}}},
		{Source: index.SourceSymbol, Hits: []index.SearchHit{{ChunkID: "b"}}},
	}
	weights := Weights{index.SourceVector: 1.0, index.SourceSymbol: 0}

	out := Fuse(results, weights, Expansion{})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestFuse_ExpansionBoostAppliesToMatchingSymbol(t *testing.T) {
	results := []StrategyResult{
		{Source: index.SourceSymbol, Hits: []index.SearchHit{{ChunkID: "sym-1", Metadata: map[string]any{"symbol_id": "sym-1"}}}},
	}
	weights := Weights{index.SourceSymbol: 1.0}

	withoutExpansion := Fuse(results, weights, Expansion{})
	withExpansion := Fuse(results, weights, Expansion{Symbols: []string{"sym-1"}})

	require.Len(t, withoutExpansion, 1)
	require.Len(t, withExpansion, 1)
	assert.Greater(t, withExpansion[0].Score, withoutExpansion[0].Score)
}

func TestBlendProfile_WeightsSumToOneAcrossBlendedIntents(t *testing.T) {
	scores := IntentScores{IntentSymbol: 0.6, IntentConcept: 0.4}
	blended := BlendProfile(scores)

	var total float64
	for _, w := range blended {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestBoostForIntent_RenormalizesAfterBoost(t *testing.T) {
	scores := IntentScores{IntentFlow: 0.9}
	blended := BlendProfile(scores)
	boosted := BoostForIntent(blended, scores)

	var total float64
	for _, w := range boosted {
		total += w
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, boosted[index.SourceGraph], blended[index.SourceGraph])
}
