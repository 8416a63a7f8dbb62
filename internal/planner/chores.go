package planner

import (
	"context"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
)

// CreateChore adds an active chore and plans it.
func (e *Engine) CreateChore(ctx context.Context, name, description string) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "create chore", func(q *store.Queries) error {
		existing, err := q.Chores.GetByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s", ErrChoreExists, name)
		}
		_, err = q.Chores.Create(ctx, name, description)
		return err
	})
	if err != nil {
		return PlanDelta{}, err
	}
	e.logger.Info("chore created", "chore", name)
	return e.maintain(ctx)
}

// SetChoreActive activates or deactivates a chore. Deactivated chores keep
// their history; their future assignments are retracted.
func (e *Engine) SetChoreActive(ctx context.Context, name string, active bool) (PlanDelta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.mutate(ctx, "set chore active", func(q *store.Queries) error {
		c, err := q.Chores.GetByName(ctx, name)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %s", ErrChoreNotFound, name)
		}
		if c.Active == active {
			return nil
		}
		return q.Chores.SetActive(ctx, c.ID, active)
	})
	if err != nil {
		return PlanDelta{}, err
	}
	e.logger.Info("chore state changed", "chore", name, "active", active)
	return e.maintain(ctx)
}

// ListChores returns every chore, inactive ones included.
func (e *Engine) ListChores(ctx context.Context) ([]model.Chore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queries().Chores.List(ctx)
}
