package planner

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/christopher-besch/chore-planner/internal/database"
	"github.com/christopher-besch/chore-planner/internal/logging"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

const fixtureSeed = 0x0DDB1A5E5BAD5EED

// 33/2024
const fixtureWeek week.Week = 2850

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestEngine(t *testing.T, db *sql.DB, weeksToPlan int) *Engine {
	t.Helper()
	return New(db, Config{
		WeeksToPlan: weeksToPlan,
		Gamma:       0.8,
		Seed:        fixtureSeed,
		Logger:      logging.Discard(),
		Now:         func() time.Time { return fixtureWeek.Monday() },
		ReplanHint: func(tenant string, w week.Week) string {
			return fmt.Sprintf("/replan %s %s", tenant, w)
		},
	})
}

// seedHousehold writes the shared test household straight through the store:
// ten tenants of whom six live in the house in 33/2024, and two chores with
// three weeks of history.
func seedHousehold(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	q := store.New(db)

	for i := 401; i <= 415; i++ {
		require.NoError(t, q.Tenants.CreateRoom(ctx, fmt.Sprintf("M%d", i)))
	}

	tenants := []struct {
		name string
		tag  string
	}{
		{"Alex", "@alex"}, {"Bob", "@bob"}, {"Chris", "@chris"}, {"Thomas", ""},
		{"Jan", "@jan"}, {"Joachim", "@joachim"}, {"Stefanie", "@stef"},
		{"Jonas", "@jonas"}, {"Olli", "@olli69"}, {"Till", ""},
	}
	ids := make(map[string]int64)
	for _, tt := range tenants {
		var tag *string
		if tt.tag != "" {
			tag = &tt.tag
		}
		created, err := q.Tenants.CreateTenant(ctx, tt.name, tag)
		require.NoError(t, err)
		ids[tt.name] = created.ID
	}

	livesIn := []struct {
		tenant  string
		room    string
		moveIn  week.Week
		moveOut week.Week
	}{
		{"Jonas", "M403", 2837, 0},
		{"Olli", "M407", 2835, 0},
		{"Till", "M408", 2829, 0},
		{"Alex", "M402", 2807, 0},
		{"Bob", "M409", 2714, 2858},
		{"Chris", "M401", 2743, 2829},
		{"Thomas", "M404", 2850, 0},
		{"Jan", "M405", 2850, 2850},
		{"Stefanie", "M410", 2881, 2902},
	}
	for _, l := range livesIn {
		require.NoError(t, q.Tenants.InsertTenancy(ctx, ids[l.tenant], l.room, l.moveIn))
		if l.moveOut != 0 {
			require.NoError(t, q.Tenants.CloseTenancy(ctx, ids[l.tenant], l.room, l.moveIn, l.moveOut))
		}
	}

	require.NoError(t, q.Tenants.MarkUnwilling(ctx, ids["Alex"], 2829))
	require.NoError(t, q.Tenants.MarkUnwilling(ctx, ids["Thomas"], 2850))
	require.NoError(t, q.Tenants.MarkUnwilling(ctx, ids["Bob"], 2852))

	pigeon, err := q.Chores.Create(ctx, "PigeonFeeder", "Feed the pigeons on the roof")
	require.NoError(t, err)
	require.NoError(t, q.Chores.SetActive(ctx, pigeon.ID, false))
	spuel, err := q.Chores.Create(ctx, "Spüldienst", "Clean the kitchen")
	require.NoError(t, err)
	muell, err := q.Chores.Create(ctx, "Mülldienst", "Take out the trash")
	require.NoError(t, err)

	reasons := make(map[string]int64)
	for _, name := range []string{"God", "Getränkeminister", "Bestandsminister"} {
		r, err := q.Exemptions.CreateReason(ctx, name)
		require.NoError(t, err)
		reasons[name] = r.ID
	}

	exemptions := []struct {
		tenant string
		reason string
		start  week.Week
		end    week.Week
	}{
		{"Olli", "Bestandsminister", 2830, 0},
		{"Till", "Bestandsminister", 2848, 0},
		{"Chris", "Bestandsminister", 2829, 0},
		{"Jan", "Getränkeminister", 2714, 2727},
	}
	for _, ex := range exemptions {
		require.NoError(t, q.Exemptions.Insert(ctx, ids[ex.tenant], reasons[ex.reason], ex.start))
		if ex.end != 0 {
			require.NoError(t, q.Exemptions.Close(ctx, ids[ex.tenant], reasons[ex.reason], ex.start, ex.end))
		}
	}

	require.NoError(t, q.Exemptions.AddReasonChore(ctx, reasons["God"], muell.ID))
	require.NoError(t, q.Exemptions.AddReasonChore(ctx, reasons["God"], spuel.ID))
	require.NoError(t, q.Exemptions.AddReasonChore(ctx, reasons["Getränkeminister"], muell.ID))
	require.NoError(t, q.Exemptions.AddReasonChore(ctx, reasons["Bestandsminister"], muell.ID))

	logs := []struct {
		chore  int64
		w      week.Week
		worker string
	}{
		{muell.ID, 2847, "Jonas"},
		{spuel.ID, 2847, "Till"},
		{muell.ID, 2848, "Bob"},
		{spuel.ID, 2848, "Olli"},
		{muell.ID, 2849, "Alex"},
		{spuel.ID, 2849, "Jonas"},
	}
	for _, l := range logs {
		require.NoError(t, q.Plan.Insert(ctx, l.chore, l.w, ids[l.worker]))
	}

	require.NoError(t, q.Settings.SetCurrentWeek(ctx, fixtureWeek))
}

func newFixture(t *testing.T, weeksToPlan int) (*Engine, *sql.DB) {
	t.Helper()
	db := openTestDB(t)
	seedHousehold(t, db)
	return newTestEngine(t, db, weeksToPlan), db
}

func names(as []model.Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Tenant
	}
	return out
}
