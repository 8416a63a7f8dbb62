package fairness

import (
	"fmt"
	"math/rand/v2"
)

// Candidate is an eligible tenant. Score is the raw aggregate score,
// Adjusted the score after redistributing the excluded tenants' share.
type Candidate struct {
	TenantID int64   `json:"tenant_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Adjusted float64 `json:"adjusted"`
}

// Choice is the drawn candidate together with its selection probability.
type Choice struct {
	Candidate
	Probability float64 `json:"probability"`
}

// Selector draws from a Distribution with an engine-owned random source. It
// is not safe for concurrent use.
type Selector struct {
	rng   *rand.Rand
	gamma float64
}

// NewSelector seeds the random source once; equal seeds replay equal draws.
func NewSelector(seed uint64, gamma float64) *Selector {
	return &Selector{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		gamma: gamma,
	}
}

func (s *Selector) Gamma() float64 { return s.gamma }

// Odds pairs every candidate with the probability Pick would choose it.
// candidates must be ascending by Adjusted.
func (s *Selector) Odds(candidates []Candidate) ([]Choice, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Adjusted
	}
	dist, err := Distribution(scores, s.gamma)
	if err != nil {
		return nil, err
	}
	odds := make([]Choice, len(candidates))
	for i, c := range candidates {
		odds[i] = Choice{Candidate: c, Probability: dist[i]}
	}
	return odds, nil
}

// Pick draws one of candidates, which must be ascending by Adjusted. It
// returns nil when candidates is empty.
func (s *Selector) Pick(candidates []Candidate) (*Choice, error) {
	odds, err := s.Odds(candidates)
	if err != nil || odds == nil {
		return nil, err
	}
	dist := make([]float64, len(odds))
	for i, o := range odds {
		dist[i] = o.Probability
	}

	idx, err := s.draw(dist)
	if err != nil {
		return nil, err
	}
	return &odds[idx], nil
}

func (s *Selector) draw(dist []float64) (int, error) {
	var total float64
	for _, p := range dist {
		total += p
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: no probability mass", ErrMalformedDistribution)
	}

	r := s.rng.Float64() * total
	var cum float64
	for i, p := range dist {
		cum += p
		if r < cum {
			return i, nil
		}
	}
	// r landed on the rounding gap at the top; take the last index with mass
	for i := len(dist) - 1; i >= 0; i-- {
		if dist[i] > 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no probability mass", ErrMalformedDistribution)
}
