// Package stress drives randomized reliability probes against the
// basket workers and classifies, aggregates, and reports the outcomes.
package stress

import (
	_ "embed"
	"fmt"
	"math/rand"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy selects how companies are drawn from the fixture.
type Strategy string

// Sampling strategies. Mixed draws roughly 10% edge cases and fills
// the rest uniformly.
const (
	StrategyUniform    Strategy = "uniform"
	StrategyStratified Strategy = "stratified"
	StrategyEdgeCase   Strategy = "edge_case"
	StrategyMixed      Strategy = "mixed"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyUniform, StrategyStratified, StrategyEdgeCase, StrategyMixed:
		return Strategy(name), nil
	default:
		return "", fmt.Errorf("unknown sampling strategy: %q", name)
	}
}

// Company is one fixture entry.
type Company struct {
	Ticker string `yaml:"ticker" json:"ticker"`
	Name   string `yaml:"name"   json:"name"`
	Sector string `yaml:"sector" json:"sector"`
	Note   string `yaml:"note,omitempty" json:"note,omitempty"`
}

//go:embed companies.yaml
var companiesFixture []byte

type fixture struct {
	SP500Sample []Company `yaml:"sp500_sample"`
	EdgeCases   []Company `yaml:"edge_cases"`
	Sectors     []string  `yaml:"sectors"`
}

// Sampler draws test companies from the embedded fixture.
type Sampler struct {
	companies []Company
	edgeCases []Company
	sectors   []string
	bySector  map[string][]Company
}

// NewSampler parses the embedded fixture.
func NewSampler() (*Sampler, error) {
	var data fixture

	err := yaml.Unmarshal(companiesFixture, &data)
	if err != nil {
		return nil, fmt.Errorf("parse companies fixture: %w", err)
	}

	s := &Sampler{
		companies: data.SP500Sample,
		edgeCases: data.EdgeCases,
		sectors:   data.Sectors,
		bySector:  map[string][]Company{},
	}

	for _, company := range s.companies {
		s.bySector[company.Sector] = append(s.bySector[company.Sector], company)
	}

	return s, nil
}

// Sectors returns the fixture's sector list.
func (s *Sampler) Sectors() []string {
	return append([]string(nil), s.sectors...)
}

// Sample draws n companies with the given strategy. The same seed
// reproduces the same draw; seed 0 seeds from the clock.
func (s *Sampler) Sample(n int, strategy Strategy, seed int64) []Company {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))

	switch strategy {
	case StrategyStratified:
		return s.sampleStratified(rng, n)
	case StrategyEdgeCase:
		return s.sampleEdgeCase(rng, n)
	case StrategyMixed:
		return s.sampleMixed(rng, n)
	default:
		return s.sampleUniform(rng, n)
	}
}

func (s *Sampler) sampleUniform(rng *rand.Rand, n int) []Company {
	return drawWithout(rng, s.companies, n, nil)
}

// sampleStratified takes an equal share from every sector, topping up
// uniformly when sectors run short.
func (s *Sampler) sampleStratified(rng *rand.Rand, n int) []Company {
	if len(s.bySector) == 0 {
		return nil
	}

	perSector := n / len(s.bySector)
	if perSector < 1 {
		perSector = 1
	}

	var result []Company

	for _, sector := range s.sectors {
		result = append(result, drawWithout(rng, s.bySector[sector], perSector, nil)...)

		if len(result) >= n {
			break
		}
	}

	if len(result) < n {
		result = append(result, drawWithout(rng, s.companies, n-len(result), result)...)
	}

	return result[:minInt(n, len(result))]
}

// sampleEdgeCase exhausts the edge cases first, then fills from the
// main pool.
func (s *Sampler) sampleEdgeCase(rng *rand.Rand, n int) []Company {
	result := drawWithout(rng, s.edgeCases, n, nil)

	if len(result) < n {
		result = append(result, drawWithout(rng, s.companies, n-len(result), nil)...)
	}

	return result
}

func (s *Sampler) sampleMixed(rng *rand.Rand, n int) []Company {
	edgeN := n / 10
	if edgeN < 1 {
		edgeN = 1
	}

	result := drawWithout(rng, s.edgeCases, edgeN, nil)
	result = append(result, drawWithout(rng, s.companies, n-len(result), nil)...)

	rng.Shuffle(len(result), func(i, j int) {
		result[i], result[j] = result[j], result[i]
	})

	return result[:minInt(n, len(result))]
}

// drawWithout samples up to n companies from pool without replacement,
// skipping tickers already present in exclude.
func drawWithout(rng *rand.Rand, pool []Company, n int, exclude []Company) []Company {
	taken := map[string]bool{}
	for _, company := range exclude {
		taken[company.Ticker] = true
	}

	candidates := make([]Company, 0, len(pool))

	for _, company := range pool {
		if !taken[company.Ticker] {
			candidates = append(candidates, company)
		}
	}

	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	return candidates[:minInt(n, len(candidates))]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}
