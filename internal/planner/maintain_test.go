package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/christopher-besch/chore-planner/internal/logging"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

func requireEligible(t *testing.T, e *Engine, delta PlanDelta) {
	t.Helper()
	ctx := context.Background()
	for _, a := range delta.Assigned {
		cands, err := e.Available(ctx, a.Week, a.Chore)
		require.NoError(t, err)
		found := false
		for _, c := range cands {
			if c.Name == a.Tenant {
				found = true
			}
		}
		require.True(t, found, "%s assigned %s in %s but not eligible", a.Tenant, a.Chore, a.Week)
	}
}

func TestMaintainFillsHorizon(t *testing.T) {
	e, _ := newFixture(t, 5)
	ctx := context.Background()

	delta, err := e.Maintain(ctx)
	require.NoError(t, err)
	require.Empty(t, delta.Retracted)
	require.Len(t, delta.Assigned, 10)
	requireEligible(t, e, delta)

	for i, a := range delta.Assigned {
		// week-major, then chore id
		require.Equal(t, fixtureWeek.Add(i/2), a.Week)
		require.Greater(t, a.Probability, 0.0)
		require.NotEqual(t, "PigeonFeeder", a.Chore)
	}

	future, err := e.ListFutureAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, future, 10)
}

func TestMaintainIsIdempotent(t *testing.T) {
	e, _ := newFixture(t, 5)
	ctx := context.Background()

	first, err := e.Maintain(ctx)
	require.NoError(t, err)
	require.False(t, first.Empty())

	second, err := e.Maintain(ctx)
	require.NoError(t, err)
	require.True(t, second.Empty(), "second pass changed %+v", second)
}

func TestMaintainZeroHorizon(t *testing.T) {
	e, _ := newFixture(t, 0)

	delta, err := e.Maintain(context.Background())
	require.NoError(t, err)
	require.True(t, delta.Empty())
}

func TestMaintainSameSeedSamePlan(t *testing.T) {
	a, _ := newFixture(t, 5)
	b, _ := newFixture(t, 5)

	da, err := a.Maintain(context.Background())
	require.NoError(t, err)
	db, err := b.Maintain(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(da.Assigned), len(db.Assigned))
	for i := range da.Assigned {
		require.Equal(t, da.Assigned[i].Tenant, db.Assigned[i].Tenant)
	}
}

func TestMaintainMessage(t *testing.T) {
	e, _ := newFixture(t, 2)

	delta, err := e.Maintain(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, delta.Assigned)

	last := delta.Assigned[len(delta.Assigned)-1]
	require.Contains(t, last.Message, "(in 1 week)")
	require.Contains(t, last.Message, last.Tenant+", you have been chosen for the "+last.Chore+" on 34/2024.")
	require.Contains(t, last.Message, "/replan "+last.Tenant+" 34/2024")
}

func TestGrantExemptionRetractsAndRefills(t *testing.T) {
	e, _ := newFixture(t, 5)
	ctx := context.Background()

	_, err := e.Maintain(ctx)
	require.NoError(t, err)
	future, err := e.ListFutureAssignments(ctx)
	require.NoError(t, err)
	victim := future[0].Tenant

	delta, err := e.GrantExemption(ctx, victim, "God", fixtureWeek)
	require.NoError(t, err)
	require.NotEmpty(t, delta.Retracted)
	for _, r := range delta.Retracted {
		require.Equal(t, victim, r.Tenant)
	}
	require.Len(t, delta.Assigned, len(delta.Retracted))
	requireEligible(t, e, delta)

	future, err = e.ListFutureAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, future, 10)
	require.NotContains(t, names(future), victim)
}

func TestMoveOutRetracts(t *testing.T) {
	e, _ := newFixture(t, 5)
	ctx := context.Background()

	_, err := e.Maintain(ctx)
	require.NoError(t, err)

	_, err = e.MoveOut(ctx, "jonas")
	require.NoError(t, err)

	future, err := e.ListFutureAssignments(ctx)
	require.NoError(t, err)
	require.NotContains(t, names(future), "Jonas")

	room, err := e.ResolveRoom(ctx, fixtureWeek, "Jonas")
	require.NoError(t, err)
	require.Nil(t, room)
	room, err = e.ResolveRoom(ctx, fixtureWeek.Add(-1), "Jonas")
	require.NoError(t, err)
	require.Equal(t, "M403", *room)
}

func TestMarkUnwillingRetracts(t *testing.T) {
	e, _ := newFixture(t, 5)
	ctx := context.Background()

	_, err := e.Maintain(ctx)
	require.NoError(t, err)
	target := fixtureWeek.Add(3)
	before, err := e.WeekAssignments(ctx, target)
	require.NoError(t, err)
	require.NotEmpty(t, before)
	victim := before[0].Tenant

	delta, err := e.MarkUnwilling(ctx, victim, target)
	require.NoError(t, err)
	require.NotEmpty(t, delta.Retracted)

	after, err := e.WeekAssignments(ctx, target)
	require.NoError(t, err)
	require.NotContains(t, names(after), victim)
	require.Len(t, after, len(before))
}

func TestDeactivateChoreRetractsFuture(t *testing.T) {
	e, _ := newFixture(t, 5)
	ctx := context.Background()

	_, err := e.Maintain(ctx)
	require.NoError(t, err)

	delta, err := e.SetChoreActive(ctx, "Mülldienst", false)
	require.NoError(t, err)
	require.Len(t, delta.Retracted, 5)
	require.Empty(t, delta.Assigned)

	future, err := e.ListFutureAssignments(ctx)
	require.NoError(t, err)
	for _, a := range future {
		require.Equal(t, "Spüldienst", a.Chore)
	}

	// history survives deactivation
	past, err := e.ListPastAssignments(ctx, fixtureWeek.Add(-3))
	require.NoError(t, err)
	require.Len(t, past, 3)

	delta, err = e.SetChoreActive(ctx, "Mülldienst", true)
	require.NoError(t, err)
	require.Len(t, delta.Assigned, 5)
}

func TestFreshHouseholdIsUniform(t *testing.T) {
	db := openTestDB(t)
	e := newTestEngine(t, db, 3)
	ctx := context.Background()

	for _, room := range []string{"M401", "M402", "M403"} {
		require.NoError(t, e.CreateRoom(ctx, room))
	}
	for i, tenant := range []string{"Alex", "Bob", "Chris"} {
		_, err := e.MoveIn(ctx, tenant, nil, []string{"M401", "M402", "M403"}[i])
		require.NoError(t, err)
	}

	delta, err := e.CreateChore(ctx, "Spüldienst", "")
	require.NoError(t, err)
	require.Len(t, delta.Assigned, 3)

	first := delta.Assigned[0]
	require.InDelta(t, 1.0/3, first.Probability, 1e-9)
	require.InDelta(t, 0, first.Score, 1e-9)
}

func TestSlotWithoutEligibleTenantStaysUnplanned(t *testing.T) {
	db := openTestDB(t)
	e := newTestEngine(t, db, 2)
	ctx := context.Background()

	delta, err := e.CreateChore(ctx, "Spüldienst", "")
	require.NoError(t, err)
	require.True(t, delta.Empty())

	require.NoError(t, e.CreateRoom(ctx, "M401"))
	delta, err = e.MoveIn(ctx, "Alex", nil, "M401")
	require.NoError(t, err)
	require.Len(t, delta.Assigned, 2)
	require.InDelta(t, 1, delta.Assigned[0].Probability, 1e-12)
}

func TestMutateRollsBackInvariantViolation(t *testing.T) {
	e, db := newFixture(t, 0)
	ctx := context.Background()
	q := store.New(db)

	thomas, err := q.Tenants.GetTenantByName(ctx, "Thomas")
	require.NoError(t, err)

	err = e.mutate(ctx, "test", func(q *store.Queries) error {
		// Thomas already lives in M404
		return q.Tenants.InsertTenancy(ctx, thomas.ID, "M411", fixtureWeek.Add(1))
	})
	require.ErrorIs(t, err, store.ErrInvariantViolation)
	require.False(t, IsUserError(err))

	tenancy, err := q.Tenants.ActiveTenancy(ctx, thomas.ID, fixtureWeek.Add(1))
	require.NoError(t, err)
	require.Equal(t, "M404", tenancy.Room)
}

func TestAdvanceWeek(t *testing.T) {
	e, _ := newFixture(t, 1)
	ctx := context.Background()

	changed, err := e.AdvanceWeek(ctx, fixtureWeek)
	require.NoError(t, err)
	require.False(t, changed)

	next := fixtureWeek.Next()
	changed, err = e.AdvanceWeek(ctx, next)
	require.NoError(t, err)
	require.True(t, changed)

	current, err := e.CurrentWeek(ctx)
	require.NoError(t, err)
	require.Equal(t, next, current)
}

func TestAdvanceWeekDebug(t *testing.T) {
	db := openTestDB(t)
	seedHousehold(t, db)
	e := New(db, Config{WeeksToPlan: 1, Gamma: 0.8, Seed: fixtureSeed, Debug: true, Logger: logging.Discard()})
	ctx := context.Background()

	// the supplied week is ignored
	changed, err := e.AdvanceWeek(ctx, week.Week(0))
	require.NoError(t, err)
	require.True(t, changed)

	current, err := e.CurrentWeek(ctx)
	require.NoError(t, err)
	require.Equal(t, fixtureWeek.Next(), current)
}

func TestFallbackWeek(t *testing.T) {
	db := openTestDB(t)
	e := New(db, Config{
		FallbackToLastWeek: true,
		Logger:             logging.Discard(),
		Now:                func() time.Time { return fixtureWeek.Monday() },
	})

	current, err := e.CurrentWeek(context.Background())
	require.NoError(t, err)
	require.Equal(t, fixtureWeek.Add(-1), current)
}
