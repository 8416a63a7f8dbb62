package planner

import (
	"context"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

func reasonByName(ctx context.Context, q *store.Queries, reason string) (*model.ExemptionReason, error) {
	r, err := q.Exemptions.GetReason(ctx, reason)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExemptionReason, reason)
	}
	return r, nil
}

func linkChores(ctx context.Context, q *store.Queries, reasonID int64, chores []string) error {
	seen := make(map[int64]bool)
	for _, name := range chores {
		c, err := q.Chores.GetByName(ctx, name)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %s", ErrChoreNotFound, name)
		}
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if err := q.Exemptions.AddReasonChore(ctx, reasonID, c.ID); err != nil {
			return err
		}
	}
	return nil
}

// CreateExemptionReason defines a reason excusing its holders from chores.
func (e *Engine) CreateExemptionReason(ctx context.Context, reason string, chores []string) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "create exemption reason", func(q *store.Queries) error {
		existing, err := q.Exemptions.GetReason(ctx, reason)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrReasonExists, reason)
		}
		r, err := q.Exemptions.CreateReason(ctx, reason)
		if err != nil {
			return err
		}
		return linkChores(ctx, q, r.ID, chores)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	return e.maintain(ctx)
}

// ChangeExemptionReason replaces the set of chores reason excuses.
func (e *Engine) ChangeExemptionReason(ctx context.Context, reason string, chores []string) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "change exemption reason", func(q *store.Queries) error {
		r, err := reasonByName(ctx, q, reason)
		if err != nil {
			return err
		}
		if err := q.Exemptions.ClearReasonChores(ctx, r.ID); err != nil {
			return err
		}
		return linkChores(ctx, q, r.ID, chores)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	e.logger.Info("exemption reason redefined", "reason", reason, "chores", chores)
	return e.maintain(ctx)
}

// GrantExemption exempts tenant for reason from week w on.
func (e *Engine) GrantExemption(ctx context.Context, tenant, reason string, w week.Week) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "grant exemption", func(q *store.Queries) error {
		t, err := tenantByName(ctx, q, tenant)
		if err != nil {
			return err
		}
		r, err := reasonByName(ctx, q, reason)
		if err != nil {
			return err
		}
		exemptions, err := q.Exemptions.ListExemptions(ctx)
		if err != nil {
			return err
		}
		span := week.Open(w)
		for _, ex := range exemptions {
			if ex.TenantID == t.ID && ex.ReasonID == r.ID && ex.Span.Overlaps(span) {
				return fmt.Errorf("%w: %s holds %s %s", ErrAlreadyExempt, t.Name, r.Reason, ex.Span)
			}
		}
		return q.Exemptions.Insert(ctx, t.ID, r.ID, w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	return e.maintain(ctx)
}

// RevokeExemption ends tenant's exemption for reason at week w. An exemption
// granted in w is removed entirely.
func (e *Engine) RevokeExemption(ctx context.Context, tenant, reason string, w week.Week) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "revoke exemption", func(q *store.Queries) error {
		t, err := tenantByName(ctx, q, tenant)
		if err != nil {
			return err
		}
		r, err := reasonByName(ctx, q, reason)
		if err != nil {
			return err
		}
		ex, err := q.Exemptions.ActiveExemption(ctx, t.ID, r.ID, w)
		if err != nil {
			return err
		}
		if ex == nil {
			return fmt.Errorf("%w: %s for %s in %s", ErrNotExempt, t.Name, r.Reason, w)
		}
		if ex.Span.Start == w {
			return q.Exemptions.Delete(ctx, t.ID, r.ID, ex.Span.Start)
		}
		return q.Exemptions.Close(ctx, t.ID, r.ID, ex.Span.Start, w)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	return e.maintain(ctx)
}

// IsExempt reports whether tenant holds any exemption excusing chore in w.
func (e *Engine) IsExempt(ctx context.Context, tenant, chore string, w week.Week) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	t, err := tenantByName(ctx, q, tenant)
	if err != nil {
		return false, err
	}
	c, err := q.Chores.GetByName(ctx, chore)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, fmt.Errorf("%w: %s", ErrChoreNotFound, chore)
	}
	st, err := loadState(ctx, q)
	if err != nil {
		return false, err
	}
	return st.facts.Exempt(t.ID, c.ID, w), nil
}

// ExemptionOverview lists every reason with the active chores it excuses and
// who holds it in the current week.
func (e *Engine) ExemptionOverview(ctx context.Context) ([]model.ExemptionOverview, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	w, err := e.currentWeek(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.Exemptions.Overview(ctx, w)
}
