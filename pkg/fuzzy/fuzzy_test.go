package fuzzy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/fuzzy"
)

func TestRank_StrategyPrecedence(t *testing.T) {
	candidates := []string{"prompt-abc", "prompt-abcd", "abc"}

	ranked := fuzzy.Rank("abc", candidates, 0)
	require.NotEmpty(t, ranked)

	// Exact beats everything.
	assert.Equal(t, "abc", ranked[0].Candidate)
	assert.Equal(t, fuzzy.StrategyExact, ranked[0].Strategy)

	// A contains hit on "prompt-abc" must outrank any edit-distance hit,
	// and the shorter candidate wins the within-strategy tie... almost:
	// prompt-abc scores higher than prompt-abcd because the query covers
	// more of it.
	assert.Equal(t, "prompt-abc", ranked[1].Candidate)
	assert.Equal(t, fuzzy.StrategyContains, ranked[1].Strategy)
	assert.Equal(t, "prompt-abcd", ranked[2].Candidate)
}

func TestRank_PrefixBeatsContains(t *testing.T) {
	ranked := fuzzy.Rank("eval", []string{"my-eval-set", "evaluator-main"}, 0)
	require.Len(t, ranked, 2)
	assert.Equal(t, "evaluator-main", ranked[0].Candidate)
	assert.Equal(t, fuzzy.StrategyPrefix, ranked[0].Strategy)
	assert.Equal(t, fuzzy.StrategyContains, ranked[1].Strategy)
}

func TestMatch_Initials(t *testing.T) {
	m, ok := fuzzy.Best("ts", []string{"training-set"}, 0)
	require.True(t, ok)
	assert.Equal(t, fuzzy.StrategyInitials, m.Strategy)

	m, ok = fuzzy.Best("ps", []string{"promptSet"}, 0)
	require.True(t, ok)
	assert.Equal(t, fuzzy.StrategyInitials, m.Strategy)
}

func TestMatch_DistanceFloor(t *testing.T) {
	// One substitution in a 7-rune string clears the default floor.
	m, ok := fuzzy.Best("dataset", []string{"datasey"}, 0)
	require.True(t, ok)
	assert.Equal(t, fuzzy.StrategyDistance, m.Strategy)
	assert.InDelta(t, 6.0/7.0, m.Score, 0.001)

	// A totally different string does not match at all.
	_, ok = fuzzy.Best("dataset", []string{"zzzzzzz"}, 0)
	assert.False(t, ok)
}

func TestRank_TieBreakShorterCandidate(t *testing.T) {
	// Both candidates share the same prefix coverage only when scores tie;
	// craft equal-length queries over same-length prefixes.
	ranked := fuzzy.Rank("ab", []string{"abxx", "abyy", "abz"}, 0)
	require.Len(t, ranked, 3)
	// "abz" has the highest prefix coverage (2/3) and shortest length.
	assert.Equal(t, "abz", ranked[0].Candidate)
	// The remaining two tie on score; stable order keeps input order.
	assert.Equal(t, "abxx", ranked[1].Candidate)
}

func TestSimilarity_Unicode(t *testing.T) {
	// Rune-wise distance: one character differs out of four.
	assert.InDelta(t, 0.75, fuzzy.Similarity("测试任务", "测试任业"), 0.001)
	assert.Equal(t, 1.0, fuzzy.Similarity("模型", "模型"))
}
