package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// Assigned is a newly filled slot.
type Assigned struct {
	Chore   string    `json:"chore"`
	Week    week.Week `json:"week"`
	Tenant  string    `json:"tenant"`
	ChatTag *string   `json:"chat_tag"`
	// Score is the tenant's aggregate score, EffectiveScore the score after
	// redistribution over the eligible tenants.
	Score          float64 `json:"score"`
	EffectiveScore float64 `json:"effective_score"`
	Probability    float64 `json:"probability"`
	Message        string  `json:"message"`
}

// Retracted is a future assignment removed because its assignee is no
// longer eligible or its chore was deactivated.
type Retracted struct {
	Chore   string    `json:"chore"`
	Week    week.Week `json:"week"`
	Tenant  string    `json:"tenant"`
	ChatTag *string   `json:"chat_tag"`
}

// PlanDelta is what one Maintain pass changed.
type PlanDelta struct {
	Assigned  []Assigned  `json:"assigned"`
	Retracted []Retracted `json:"retracted"`
}

func (d PlanDelta) Empty() bool {
	return len(d.Assigned) == 0 && len(d.Retracted) == 0
}

// Maintain retracts invalid assignments from the current week on and fills
// every unplanned slot of the horizon. Running it twice without a change in
// between returns an empty delta the second time.
func (e *Engine) Maintain(ctx context.Context) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maintain(ctx)
}

// maintain commits every slot on its own. An error leaves the slots handled
// so far in place; the next pass resumes from there.
func (e *Engine) maintain(ctx context.Context) (PlanDelta, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveMaintain(time.Since(start)) }()

	var delta PlanDelta
	q := e.queries()
	current, err := e.currentWeek(ctx, q)
	if err != nil {
		return delta, err
	}

	logs, err := q.Plan.ListFrom(ctx, current)
	if err != nil {
		return delta, err
	}
	for _, l := range logs {
		if l.Completed {
			continue
		}
		r, err := e.retract(ctx, l)
		if err != nil {
			return delta, fmt.Errorf("retract %s: %w", l.Week, err)
		}
		if r != nil {
			delta.Retracted = append(delta.Retracted, *r)
		}
	}

	chores, err := q.Chores.ListActive(ctx)
	if err != nil {
		return delta, err
	}
	for i := 0; i < e.cfg.WeeksToPlan; i++ {
		w := current.Add(i)
		for _, c := range chores {
			a, err := e.fill(ctx, c, w, current)
			if err != nil {
				return delta, fmt.Errorf("plan %s in %s: %w", c.Name, w, err)
			}
			if a != nil {
				delta.Assigned = append(delta.Assigned, *a)
			}
		}
	}

	if !delta.Empty() {
		e.logger.Info("plan updated",
			"week", current.String(),
			"assigned", len(delta.Assigned),
			"retracted", len(delta.Retracted),
		)
	}
	return delta, nil
}

// retract deletes l when its chore is inactive or its worker is no longer
// eligible.
func (e *Engine) retract(ctx context.Context, l model.ChoreLog) (*Retracted, error) {
	var out *Retracted
	err := e.mutate(ctx, "retract", func(q *store.Queries) error {
		chore, err := q.Chores.GetByID(ctx, l.ChoreID)
		if err != nil {
			return err
		}
		if chore == nil {
			return fmt.Errorf("%w: log for unknown chore %d", store.ErrInvariantViolation, l.ChoreID)
		}

		st, err := loadState(ctx, q)
		if err != nil {
			return err
		}
		if chore.Active {
			cands, err := candidates(ctx, q, st, chore.ID, l.Week)
			if err != nil {
				return err
			}
			for _, c := range cands {
				if c.TenantID == l.WorkerID {
					return nil
				}
			}
		}

		if err := q.Plan.Delete(ctx, l.ChoreID, l.Week); err != nil {
			return err
		}
		worker := st.tenants[l.WorkerID]
		out = &Retracted{Chore: chore.Name, Week: l.Week, Tenant: worker.Name, ChatTag: worker.ChatTag}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		e.metrics.AssignmentRetracted(out.Chore)
		e.logger.Info("assignment retracted", "chore", out.Chore, "week", out.Week.String(), "tenant", out.Tenant)
	}
	return out, nil
}

// fill assigns chore in w unless the slot is taken. It returns nil when the
// slot is already planned or nobody is eligible.
func (e *Engine) fill(ctx context.Context, chore model.Chore, w, current week.Week) (*Assigned, error) {
	var out *Assigned
	var unplanned bool
	err := e.mutate(ctx, "fill", func(q *store.Queries) error {
		existing, err := q.Plan.Get(ctx, chore.ID, w)
		if err != nil || existing != nil {
			return err
		}

		st, err := loadState(ctx, q)
		if err != nil {
			return err
		}
		cands, err := candidates(ctx, q, st, chore.ID, w)
		if err != nil {
			return err
		}
		choice, err := e.selector.Pick(cands)
		if err != nil {
			return err
		}
		if choice == nil {
			unplanned = true
			return nil
		}

		if err := q.Plan.Insert(ctx, chore.ID, w, choice.TenantID); err != nil {
			return err
		}
		out = &Assigned{
			Chore:          chore.Name,
			Week:           w,
			Tenant:         choice.Name,
			ChatTag:        st.tenants[choice.TenantID].ChatTag,
			Score:          choice.Score,
			EffectiveScore: choice.Adjusted,
			Probability:    choice.Probability,
		}
		out.Message = e.explain(out, w.Sub(current))
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case unplanned:
		e.metrics.SlotUnplanned(chore.Name)
		e.logger.Debug("nobody eligible, slot left unplanned", "chore", chore.Name, "week", w.String())
	case out != nil:
		e.metrics.AssignmentCreated(out.Chore)
		e.logger.Info("chore assigned",
			"chore", out.Chore,
			"week", out.Week.String(),
			"tenant", out.Tenant,
			"effective_score", out.EffectiveScore,
			"probability", out.Probability,
		)
	}
	return out, nil
}

func (e *Engine) explain(a *Assigned, weeksAhead int64) string {
	unit := "weeks"
	if weeksAhead == 1 {
		unit = "week"
	}
	return fmt.Sprintf(`# %[2]s on %[3]s (in %[6]d %[7]s): %[1]s
%[1]s, you have been chosen for the %[2]s on %[3]s.
With an effective score of %.2[4]f you had a %.0[5]f%% chance of being chosen.
If that does not suit you, hand it to someone else with:
    %[8]s
If you are away that week, you can also move out and back in.`,
		a.Tenant, a.Chore, a.Week, a.EffectiveScore, a.Probability*100,
		weeksAhead, unit, e.cfg.ReplanHint(a.Tenant, a.Week))
}
