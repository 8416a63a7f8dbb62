// Package scheduler advances the planner into new weeks.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// Planner is the part of the engine the scheduler drives.
type Planner interface {
	AdvanceWeek(ctx context.Context, w week.Week) (bool, error)
	CurrentWeek(ctx context.Context) (week.Week, error)
	Maintain(ctx context.Context) (planner.PlanDelta, error)
	WeekAssignments(ctx context.Context, w week.Week) ([]model.Assignment, error)
}

// Feed is told about every plan change and every new week.
type Feed interface {
	PublishDelta(delta planner.PlanDelta)
	PublishWeek(w week.Week, assignments []model.Assignment)
}

// Snapshotter saves a copy of the database once a new week has started.
type Snapshotter interface {
	Enabled() bool
	Snapshot(ctx context.Context, w week.Week) (*model.Snapshot, error)
}

// Weekly checks on every tick, and on every Trigger, whether the calendar
// week moved on. When it did, the plan is maintained and the new week is
// announced.
type Weekly struct {
	planner  Planner
	feed     Feed
	snap     Snapshotter
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	// serialises Advance between the loop and API callers
	advanceMu sync.Mutex

	// set when Maintain failed after the week moved on; guarded by advanceMu
	maintainPending bool

	mu      sync.RWMutex
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewWeekly(p Planner, feed Feed, interval time.Duration, logger *slog.Logger) *Weekly {
	return &Weekly{
		planner:  p,
		feed:     feed,
		interval: interval,
		now:      time.Now,
		logger:   logger.With("component", "scheduler"),
		trigger:  make(chan struct{}, 1),
	}
}

// SnapshotEachWeek makes every successful week change end with a snapshot.
// It must be called before Start.
func (s *Weekly) SnapshotEachWeek(sn Snapshotter) {
	s.snap = sn
}

// Start begins the scheduler loop.
func (s *Weekly) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			case <-s.trigger:
				s.tick(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for a running tick to finish.
func (s *Weekly) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Trigger requests a tick without waiting for the ticker. Requests made
// while one is pending are merged.
func (s *Weekly) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Weekly) tick(ctx context.Context) {
	if _, err := s.Advance(ctx, week.Of(s.now())); err != nil {
		s.logger.Error("advance week", "error", err)
	}
}

// Advance makes w current. When the stored week changed it maintains the
// plan, publishes the delta and announces the new week. If maintaining failed
// last time, the next call retries it even though the week is unchanged.
func (s *Weekly) Advance(ctx context.Context, w week.Week) (bool, error) {
	s.advanceMu.Lock()
	defer s.advanceMu.Unlock()

	changed, err := s.planner.AdvanceWeek(ctx, w)
	if err != nil {
		return false, err
	}
	if !changed && !s.maintainPending {
		return false, nil
	}

	delta, err := s.planner.Maintain(ctx)
	if err != nil {
		s.maintainPending = true
		return changed, fmt.Errorf("maintain after advance: %w", err)
	}
	s.maintainPending = false
	if !delta.Empty() {
		s.feed.PublishDelta(delta)
	}

	current, err := s.planner.CurrentWeek(ctx)
	if err != nil {
		return changed, err
	}
	assignments, err := s.planner.WeekAssignments(ctx, current)
	if err != nil {
		return changed, fmt.Errorf("week assignments: %w", err)
	}
	s.feed.PublishWeek(current, assignments)
	s.logger.Info("new week started", "week", current.String(), "assignments", len(assignments))

	// a failed snapshot does not undo the week change
	if s.snap != nil && s.snap.Enabled() {
		if _, err := s.snap.Snapshot(ctx, current); err != nil {
			s.logger.Error("snapshot after advance", "week", current.String(), "error", err)
		}
	}
	return changed, nil
}
