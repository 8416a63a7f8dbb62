package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// RatingOptions are the poll answers offered to raters. Each starts with
// its numeric rating.
var RatingOptions = []string{
	"1   Catastrophe.",
	"2   Worse than before.",
	"3   Barely started.",
	"4   Nothing happened.",
	"5   Half done.",
	"6   Acceptable.",
	"7   Good job.",
	"8   Spotless.",
	"9   Above and beyond.",
	"10  Legendary.",
}

// ParseRatingOption returns the rating an option label stands for.
func ParseRatingOption(label string) (int, error) {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty option", ErrInvalidRating)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > len(RatingOptions) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRating, label)
	}
	return n, nil
}

// RatingPrompt is the poll question for an assignment.
func RatingPrompt(a model.Assignment) string {
	return fmt.Sprintf("How well did %s do the %s in %s?", a.Tenant, a.Chore, a.Week)
}

// RatingsDue returns last week's assignments that have no poll yet.
func (e *Engine) RatingsDue(ctx context.Context) ([]model.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	current, err := e.currentWeek(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.Plan.Unpolled(ctx, current.Add(-1))
}

// AttachRatingPoll records the external poll collecting ratings for the
// assignment of chore in week w.
func (e *Engine) AttachRatingPoll(ctx context.Context, chore string, w week.Week, ref string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, "attach rating poll", func(q *store.Queries) error {
		c, err := q.Chores.GetByName(ctx, chore)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("%w: %s", ErrChoreNotFound, chore)
		}
		l, err := q.Plan.Get(ctx, c.ID, w)
		if err != nil {
			return err
		}
		if l == nil {
			return fmt.Errorf("%w: %s in %s", ErrAssignmentNotFound, chore, w)
		}
		if l.PollRef != nil {
			return fmt.Errorf("%w: %s in %s already has poll %s", ErrPollClosed, chore, w, *l.PollRef)
		}
		other, err := q.Plan.GetByPollRef(ctx, ref)
		if err != nil {
			return err
		}
		if other != nil {
			return fmt.Errorf("%w: %s", ErrPollRefInUse, ref)
		}
		return q.Plan.SetPollRef(ctx, c.ID, w, ref)
	})
}

// OpenRatingPolls returns uncompleted assignments before the current week
// whose poll is still running.
func (e *Engine) OpenRatingPolls(ctx context.Context) ([]model.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	q := e.queries()
	current, err := e.currentWeek(ctx, q)
	if err != nil {
		return nil, err
	}
	return q.Plan.OpenPolls(ctx, current)
}

// CompleteRatingPoll stores the poll result, votes per rating, and marks the
// assignment completed.
func (e *Engine) CompleteRatingPoll(ctx context.Context, ref string, votes map[int]int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for rating, count := range votes {
		if rating < 1 || rating > len(RatingOptions) || count < 0 {
			return fmt.Errorf("%w: %d votes for %d", ErrInvalidRating, count, rating)
		}
	}

	return e.mutate(ctx, "complete rating poll", func(q *store.Queries) error {
		l, err := q.Plan.GetByPollRef(ctx, ref)
		if err != nil {
			return err
		}
		if l == nil {
			return fmt.Errorf("%w: %s", ErrPollNotFound, ref)
		}
		if l.Completed {
			return fmt.Errorf("%w: %s", ErrPollClosed, ref)
		}
		for rating := 1; rating <= len(RatingOptions); rating++ {
			for i := 0; i < votes[rating]; i++ {
				if err := q.Plan.AddRating(ctx, l.ChoreID, l.Week, rating); err != nil {
					return err
				}
			}
		}
		return q.Plan.MarkCompleted(ctx, ref)
	})
}
