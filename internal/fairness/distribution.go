// Package fairness turns eligible tenants' scores into a probability
// distribution and draws the assignee from it.
package fairness

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedDistribution means the computed probabilities do not form a
// distribution. It indicates a bug in the score pipeline, never bad input.
var ErrMalformedDistribution = errors.New("malformed distribution")

const (
	// scores closer to zero than this are treated as all equal
	flatEpsilon = 1e-7
	tolerance   = 1e-4
)

// Distribution maps ascending scores to selection probabilities.
//
// With n scores and x_n the largest, tenant i gets
//
//	max(1/n - (1-gamma)/(n*x_n) * score_i, 0)
//
// so lower scores are more likely to be chosen. gamma = 1 yields the uniform
// distribution, gamma = 0 drives the highest scorer's probability to zero.
func Distribution(scores []float64, gamma float64) ([]float64, error) {
	if len(scores) == 0 {
		return []float64{}, nil
	}
	n := float64(len(scores))
	xn := scores[len(scores)-1]

	dist := make([]float64, len(scores))
	if math.Abs(xn) < flatEpsilon {
		for i := range dist {
			dist[i] = 1 / n
		}
		return dist, nil
	}

	for i, s := range scores {
		dist[i] = math.Max(1/n-(1-gamma)/(n*xn)*s, 0)
	}
	if err := validate(dist); err != nil {
		return nil, err
	}
	return dist, nil
}

func validate(dist []float64) error {
	var sum float64
	for i, p := range dist {
		if p < 0 || p > 1 || math.IsNaN(p) {
			return fmt.Errorf("%w: probability[%d] = %v", ErrMalformedDistribution, i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > tolerance {
		return fmt.Errorf("%w: probabilities sum to %v", ErrMalformedDistribution, sum)
	}
	return nil
}
