package stress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"uniform", "stratified", "edge_case", "mixed"} {
		strategy, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, Strategy(name), strategy)
	}

	_, err := ParseStrategy("random")
	require.Error(t, err)
}

func TestSampleDeterministicWithSeed(t *testing.T) {
	t.Parallel()

	sampler, err := NewSampler()
	require.NoError(t, err)

	first := sampler.Sample(10, StrategyUniform, 42)
	second := sampler.Sample(10, StrategyUniform, 42)

	require.Len(t, first, 10)
	assert.Equal(t, first, second)

	other := sampler.Sample(10, StrategyUniform, 43)
	assert.NotEqual(t, first, other)
}

func TestSampleUniformNoDuplicates(t *testing.T) {
	t.Parallel()

	sampler, err := NewSampler()
	require.NoError(t, err)

	companies := sampler.Sample(20, StrategyUniform, 7)
	require.Len(t, companies, 20)

	seen := map[string]bool{}
	for _, company := range companies {
		assert.False(t, seen[company.Ticker], "duplicate ticker %s", company.Ticker)
		seen[company.Ticker] = true
	}
}

func TestSampleStratifiedCoversSectors(t *testing.T) {
	t.Parallel()

	sampler, err := NewSampler()
	require.NoError(t, err)

	companies := sampler.Sample(16, StrategyStratified, 11)
	require.Len(t, companies, 16)

	sectors := map[string]int{}
	for _, company := range companies {
		sectors[company.Sector]++
	}

	assert.GreaterOrEqual(t, len(sectors), 4)
}

func TestSampleEdgeCaseDrawsEdgesFirst(t *testing.T) {
	t.Parallel()

	sampler, err := NewSampler()
	require.NoError(t, err)

	companies := sampler.Sample(4, StrategyEdgeCase, 3)
	require.Len(t, companies, 4)

	for _, company := range companies {
		assert.NotEmpty(t, company.Note, "edge case %s should carry a note", company.Ticker)
	}
}

func TestSampleEdgeCaseTopsUpFromMainPool(t *testing.T) {
	t.Parallel()

	sampler, err := NewSampler()
	require.NoError(t, err)

	companies := sampler.Sample(15, StrategyEdgeCase, 3)
	require.Len(t, companies, 15)
}

func TestSampleMixedIncludesEdgeCase(t *testing.T) {
	t.Parallel()

	sampler, err := NewSampler()
	require.NoError(t, err)

	companies := sampler.Sample(20, StrategyMixed, 9)
	require.Len(t, companies, 20)

	withNote := 0
	for _, company := range companies {
		if company.Note != "" {
			withNote++
		}
	}

	assert.GreaterOrEqual(t, withNote, 1)
}
