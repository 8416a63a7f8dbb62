package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/christopher-besch/chore-planner/internal/store"
)

func TestParseRatingOption(t *testing.T) {
	for i, opt := range RatingOptions {
		n, err := ParseRatingOption(opt)
		require.NoError(t, err)
		require.Equal(t, i+1, n)
	}

	for _, bad := range []string{"", "0 nothing", "11 too much", "great"} {
		_, err := ParseRatingOption(bad)
		require.ErrorIs(t, err, ErrInvalidRating, bad)
	}
}

func TestRatingCycle(t *testing.T) {
	e, db := newFixture(t, 0)
	ctx := context.Background()

	due, err := e.RatingsDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 2)
	require.Equal(t, "Spüldienst", due[0].Chore)
	require.Equal(t, "Mülldienst", due[1].Chore)
	require.Equal(t, "How well did Alex do the Mülldienst in 32/2024?", RatingPrompt(due[1]))

	require.NoError(t, e.AttachRatingPoll(ctx, "Mülldienst", fixtureWeek.Add(-1), "poll-1"))
	err = e.AttachRatingPoll(ctx, "Mülldienst", fixtureWeek.Add(-1), "poll-2")
	require.ErrorIs(t, err, ErrPollClosed)
	err = e.AttachRatingPoll(ctx, "Mülldienst", fixtureWeek.Add(5), "poll-3")
	require.ErrorIs(t, err, ErrAssignmentNotFound)
	// one poll rates one assignment
	err = e.AttachRatingPoll(ctx, "Spüldienst", fixtureWeek.Add(-1), "poll-1")
	require.ErrorIs(t, err, ErrPollRefInUse)
	require.True(t, IsUserError(err))

	due, err = e.RatingsDue(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)

	open, err := e.OpenRatingPolls(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "poll-1", *open[0].PollRef)

	err = e.CompleteRatingPoll(ctx, "poll-1", map[int]int{11: 1})
	require.ErrorIs(t, err, ErrInvalidRating)
	err = e.CompleteRatingPoll(ctx, "nope", map[int]int{4: 1})
	require.ErrorIs(t, err, ErrPollNotFound)

	require.NoError(t, e.CompleteRatingPoll(ctx, "poll-1", map[int]int{4: 1, 5: 1}))
	err = e.CompleteRatingPoll(ctx, "poll-1", map[int]int{4: 1})
	require.ErrorIs(t, err, ErrPollClosed)

	open, err = e.OpenRatingPolls(ctx)
	require.NoError(t, err)
	require.Empty(t, open)

	log, err := store.New(db).Plan.GetByPollRef(ctx, "poll-1")
	require.NoError(t, err)
	require.True(t, log.Completed)

	rooms, err := e.RoomOverview(ctx)
	require.NoError(t, err)
	for _, r := range rooms {
		if r.Room == "M402" {
			require.InDelta(t, 4.5, *r.AverageRating, 1e-9)
		}
	}

	past, err := e.ListPastAssignments(ctx, fixtureWeek.Add(-1))
	require.NoError(t, err)
	require.Len(t, past, 2)
	require.InDelta(t, 4.5, *past[1].AverageRating, 1e-9)
}
