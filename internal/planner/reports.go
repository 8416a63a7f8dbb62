package planner

import (
	"context"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// ListFutureAssignments returns the assignments of active chores from the
// current week on, grouped by chore.
func (e *Engine) ListFutureAssignments(ctx context.Context) ([]model.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	current, err := e.currentWeek(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.Plan.Assignments(ctx, current, nil)
}

// ListPastAssignments returns the assignments of active chores from since up
// to, not including, the current week.
func (e *Engine) ListPastAssignments(ctx context.Context, since week.Week) ([]model.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	current, err := e.currentWeek(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.Plan.Assignments(ctx, since, &current)
}

// WeekAssignments returns who does what in week w.
func (e *Engine) WeekAssignments(ctx context.Context, w week.Week) ([]model.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queries().Plan.InWeek(ctx, w)
}
