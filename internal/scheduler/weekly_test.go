package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/christopher-besch/chore-planner/internal/logging"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

type fakePlanner struct {
	mu        sync.Mutex
	current   week.Week
	advances  []week.Week
	maintains int
	fail      error

	// maintainFail makes Maintain fail while the planner still advances
	maintainFail error
}

func (p *fakePlanner) AdvanceWeek(_ context.Context, w week.Week) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return false, p.fail
	}
	p.advances = append(p.advances, w)
	changed := w != p.current
	p.current = w
	return changed, nil
}

func (p *fakePlanner) CurrentWeek(context.Context) (week.Week, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakePlanner) Maintain(context.Context) (planner.PlanDelta, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maintains++
	if p.maintainFail != nil {
		return planner.PlanDelta{}, p.maintainFail
	}
	return planner.PlanDelta{Assigned: []planner.Assigned{{Chore: "Spüldienst", Week: p.current, Tenant: "Alex"}}}, nil
}

func (p *fakePlanner) WeekAssignments(_ context.Context, w week.Week) ([]model.Assignment, error) {
	return []model.Assignment{{Chore: "Spüldienst", Week: w, Tenant: "Alex"}}, nil
}

type fakeFeed struct {
	mu     sync.Mutex
	deltas int
	weeks  []week.Week
}

func (f *fakeFeed) PublishDelta(planner.PlanDelta) {
	f.mu.Lock()
	f.deltas++
	f.mu.Unlock()
}

func (f *fakeFeed) PublishWeek(w week.Week, _ []model.Assignment) {
	f.mu.Lock()
	f.weeks = append(f.weeks, w)
	f.mu.Unlock()
}

func (f *fakeFeed) weekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.weeks)
}

func TestAdvance(t *testing.T) {
	p := &fakePlanner{current: 2850}
	feed := &fakeFeed{}
	s := NewWeekly(p, feed, time.Hour, logging.Discard())
	ctx := context.Background()

	changed, err := s.Advance(ctx, 2850)
	if err != nil || changed {
		t.Fatalf("Advance(same week) = %v, %v; want false, nil", changed, err)
	}
	if p.maintains != 0 || feed.weekCount() != 0 {
		t.Errorf("unchanged week maintained %d times, announced %d", p.maintains, feed.weekCount())
	}

	changed, err = s.Advance(ctx, 2851)
	if err != nil || !changed {
		t.Fatalf("Advance(next week) = %v, %v; want true, nil", changed, err)
	}
	if p.maintains != 1 {
		t.Errorf("maintains = %d, want 1", p.maintains)
	}
	if feed.deltas != 1 {
		t.Errorf("deltas = %d, want 1", feed.deltas)
	}
	if len(feed.weeks) != 1 || feed.weeks[0] != 2851 {
		t.Errorf("announced %v, want [2851]", feed.weeks)
	}
}

func TestAdvanceError(t *testing.T) {
	p := &fakePlanner{fail: errors.New("disk full")}
	s := NewWeekly(p, &fakeFeed{}, time.Hour, logging.Discard())

	if _, err := s.Advance(context.Background(), 2851); err == nil {
		t.Fatal("Advance() error = nil, want error")
	}
}

func TestAdvanceRetriesFailedMaintain(t *testing.T) {
	p := &fakePlanner{current: 2850, maintainFail: errors.New("database is locked")}
	feed := &fakeFeed{}
	s := NewWeekly(p, feed, time.Hour, logging.Discard())
	ctx := context.Background()

	changed, err := s.Advance(ctx, 2851)
	if err == nil || !changed {
		t.Fatalf("Advance() = %v, %v; want true and an error", changed, err)
	}
	if feed.weekCount() != 0 {
		t.Errorf("announced %v after failed maintain, want nothing", feed.weeks)
	}

	p.mu.Lock()
	p.maintainFail = nil
	p.mu.Unlock()

	// the week is already stored, yet the plan still gets filled
	changed, err = s.Advance(ctx, 2851)
	if err != nil || changed {
		t.Fatalf("Advance(retry) = %v, %v; want false, nil", changed, err)
	}
	if p.maintains != 2 {
		t.Errorf("maintains = %d, want 2", p.maintains)
	}
	if feed.deltas != 1 || feed.weekCount() != 1 {
		t.Errorf("deltas = %d, weeks = %v; want 1 and [2851]", feed.deltas, feed.weeks)
	}

	// once it succeeded, unchanged weeks are quiet again
	if _, err := s.Advance(ctx, 2851); err != nil {
		t.Fatal(err)
	}
	if p.maintains != 2 {
		t.Errorf("maintains = %d after quiet tick, want 2", p.maintains)
	}
}

func TestTrigger(t *testing.T) {
	p := &fakePlanner{current: 2850}
	feed := &fakeFeed{}
	s := NewWeekly(p, feed, time.Hour, logging.Discard())
	s.now = func() time.Time { return week.Week(2852).Monday().Add(36 * time.Hour) }

	s.Start(context.Background())
	defer s.Stop()

	s.Trigger()
	deadline := time.Now().Add(2 * time.Second)
	for feed.weekCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("trigger did not advance the week")
		}
		time.Sleep(5 * time.Millisecond)
	}

	current, _ := p.CurrentWeek(context.Background())
	if current != 2852 {
		t.Errorf("current = %v, want 2852", current)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewWeekly(&fakePlanner{}, &fakeFeed{}, time.Hour, logging.Discard())
	s.Stop()
}

type fakeSnapshotter struct {
	enabled bool
	fail    error
	weeks   []week.Week
}

func (f *fakeSnapshotter) Enabled() bool { return f.enabled }

func (f *fakeSnapshotter) Snapshot(_ context.Context, w week.Week) (*model.Snapshot, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.weeks = append(f.weeks, w)
	return &model.Snapshot{Week: w, Status: model.SnapshotCompleted}, nil
}

func TestAdvanceSnapshots(t *testing.T) {
	p := &fakePlanner{current: 2850}
	snap := &fakeSnapshotter{enabled: true}
	s := NewWeekly(p, &fakeFeed{}, time.Hour, logging.Discard())
	s.SnapshotEachWeek(snap)
	ctx := context.Background()

	if _, err := s.Advance(ctx, 2850); err != nil {
		t.Fatalf("advance same week: %v", err)
	}
	if len(snap.weeks) != 0 {
		t.Errorf("snapshots without a week change: %v", snap.weeks)
	}

	if _, err := s.Advance(ctx, 2851); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(snap.weeks) != 1 || snap.weeks[0] != 2851 {
		t.Errorf("snapshots = %v, want [2851]", snap.weeks)
	}

	snap.fail = errors.New("bucket unreachable")
	changed, err := s.Advance(ctx, 2852)
	if err != nil || !changed {
		t.Errorf("Advance with failing snapshot = %v, %v; want true, nil", changed, err)
	}
}

func TestAdvanceSkipsDisabledSnapshots(t *testing.T) {
	snap := &fakeSnapshotter{}
	s := NewWeekly(&fakePlanner{current: 2850}, &fakeFeed{}, time.Hour, logging.Discard())
	s.SnapshotEachWeek(snap)

	if _, err := s.Advance(context.Background(), 2851); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(snap.weeks) != 0 {
		t.Errorf("disabled snapshotter was called: %v", snap.weeks)
	}
}
