package planner

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/christopher-besch/chore-planner/internal/fairness"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/score"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// scores closer than this are ties; folding the same fractions in a
// different order differs in the last bits
const scoreTolerance = 1e-9

// state is everything the resolver needs, read once per slot.
type state struct {
	facts   *score.Facts
	tenants map[int64]model.Tenant
}

func loadState(ctx context.Context, q *store.Queries) (*state, error) {
	var f score.Facts
	var err error
	if f.Tenancies, err = q.Tenants.ListTenancies(ctx); err != nil {
		return nil, err
	}
	if f.Exemptions, err = q.Exemptions.ListExemptions(ctx); err != nil {
		return nil, err
	}
	if f.ChoreExemptions, err = q.Exemptions.ListChoreExemptions(ctx); err != nil {
		return nil, err
	}
	if f.Logs, err = q.Plan.ListLogs(ctx); err != nil {
		return nil, err
	}
	tenants, err := q.Tenants.ListTenants(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]model.Tenant, len(tenants))
	for _, t := range tenants {
		byID[t.ID] = t
	}
	return &state{facts: &f, tenants: byID}, nil
}

// candidates returns the tenants eligible for choreID in w, ascending by
// aggregate score (ties by name). Each Adjusted score carries an equal share
// of the score held by excluded tenants, so the Adjusted scores sum to 0.
func candidates(ctx context.Context, q *store.Queries, st *state, choreID int64, w week.Week) ([]fairness.Candidate, error) {
	unwilling, err := q.Tenants.UnwillingIn(ctx, w)
	if err != nil {
		return nil, err
	}
	aggregate := st.facts.Aggregate()

	var out []fairness.Candidate
	for _, id := range st.facts.Residents(w) {
		if unwilling[id] || st.facts.Exempt(id, choreID, w) {
			continue
		}
		t, ok := st.tenants[id]
		if !ok {
			return nil, fmt.Errorf("%w: tenancy of unknown tenant %d", store.ErrInvariantViolation, id)
		}
		out = append(out, fairness.Candidate{TenantID: id, Name: t.Name, Score: aggregate[id]})
	}
	if len(out) == 0 {
		return nil, nil
	}

	sort.SliceStable(out, func(i, j int) bool {
		if math.Abs(out[i].Score-out[j].Score) > scoreTolerance {
			return out[i].Score < out[j].Score
		}
		return out[i].Name < out[j].Name
	})

	var sum float64
	for _, c := range out {
		sum += c.Score
	}
	share := -sum / float64(len(out))
	var adjusted float64
	for i := range out {
		out[i].Adjusted = out[i].Score + share
		adjusted += out[i].Adjusted
	}
	if math.Abs(adjusted) > 1e-4 {
		return nil, fmt.Errorf("%w: adjusted scores sum to %v", store.ErrInvariantViolation, adjusted)
	}
	return out, nil
}

// Available lists the tenants eligible for chore in week w with their raw
// and adjusted scores, ascending. It is empty when nobody is eligible.
func (e *Engine) Available(ctx context.Context, w week.Week, chore string) ([]fairness.Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	c, err := q.Chores.GetByName(ctx, chore)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrChoreNotFound, chore)
	}
	st, err := loadState(ctx, q)
	if err != nil {
		return nil, err
	}
	return candidates(ctx, q, st, c.ID, w)
}

// Candidates is Available with the probability each tenant would be drawn
// with if the slot were filled now.
func (e *Engine) Candidates(ctx context.Context, w week.Week, chore string) ([]fairness.Choice, error) {
	cands, err := e.Available(ctx, w, chore)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selector.Odds(cands)
}
