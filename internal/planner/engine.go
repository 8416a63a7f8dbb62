// Package planner is the chore assignment engine. It owns the planning
// horizon: every mutation goes through the Engine, which checks the store's
// invariants inside the mutating transaction and then re-plans the horizon.
package planner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/christopher-besch/chore-planner/internal/fairness"
	"github.com/christopher-besch/chore-planner/internal/integrity"
	"github.com/christopher-besch/chore-planner/internal/metrics"
	"github.com/christopher-besch/chore-planner/internal/store"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// ReplanHint returns the instruction a tenant follows to hand an assignment
// in week w to someone else. It is embedded in assignment messages.
type ReplanHint func(tenant string, w week.Week) string

type Config struct {
	// WeeksToPlan is the horizon length, starting at the current week.
	WeeksToPlan int
	Gamma       float64
	// Seed 0 draws a random seed.
	Seed uint64
	// Debug makes AdvanceWeek step exactly one week regardless of input.
	Debug bool
	// FallbackToLastWeek makes the week before today current until the first
	// AdvanceWeek.
	FallbackToLastWeek bool

	ReplanHint ReplanHint
	Logger     *slog.Logger
	Metrics    metrics.Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine serialises all operations; it is safe for concurrent use but runs
// one operation at a time.
type Engine struct {
	db       *sql.DB
	cfg      Config
	selector *fairness.Selector
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time

	mu sync.Mutex
}

func New(db *sql.DB, cfg Config) *Engine {
	drawn := cfg.Seed == 0
	if drawn {
		cfg.Seed = rand.Uint64()
	}
	if cfg.ReplanHint == nil {
		cfg.ReplanHint = func(tenant string, w week.Week) string {
			return fmt.Sprintf("mark %s unwilling for %s", tenant, w)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if drawn {
		cfg.Logger.Info("drew random seed", "seed", cfg.Seed)
	}
	if cfg.Debug {
		cfg.Logger.Warn("debug mode is enabled, every week advance moves exactly one week")
	}

	return &Engine{
		db:       db,
		cfg:      cfg,
		selector: fairness.NewSelector(cfg.Seed, cfg.Gamma),
		logger:   cfg.Logger.With("component", "engine"),
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
}

// mutate runs fn and the integrity check in one transaction. A violated
// invariant rolls everything back and is reported loudly.
func (e *Engine) mutate(ctx context.Context, op string, fn func(q *store.Queries) error) error {
	err := store.InTx(ctx, e.db, func(q *store.Queries) error {
		if err := fn(q); err != nil {
			return err
		}
		return integrity.Check(ctx, q)
	})
	if errors.Is(err, store.ErrInvariantViolation) || errors.Is(err, fairness.ErrMalformedDistribution) {
		e.logger.Error("invariant violated, operation rolled back", "op", op, "error", err)
		e.metrics.IntegrityViolation()
	}
	return err
}

func (e *Engine) queries() *store.Queries {
	return store.New(e.db)
}

func (e *Engine) fallbackWeek() week.Week {
	w := week.Of(e.now())
	if e.cfg.FallbackToLastWeek {
		return w.Add(-1)
	}
	return w
}

func (e *Engine) currentWeek(ctx context.Context, q *store.Queries) (week.Week, error) {
	w, err := q.Settings.CurrentWeek(ctx)
	if err != nil {
		return 0, fmt.Errorf("current week: %w", err)
	}
	if w == nil {
		return e.fallbackWeek(), nil
	}
	return *w, nil
}

// CurrentWeek returns the stored current week, or the fallback week before
// the first AdvanceWeek.
func (e *Engine) CurrentWeek(ctx context.Context) (week.Week, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentWeek(ctx, e.queries())
}

// AdvanceWeek makes w the current week and reports whether the stored week
// changed. In debug mode w is ignored and the week moves forward by one.
// It does not re-plan; callers run Maintain when it returns true.
func (e *Engine) AdvanceWeek(ctx context.Context, w week.Week) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var changed bool
	next := w
	err := e.mutate(ctx, "advance week", func(q *store.Queries) error {
		old, err := e.currentWeek(ctx, q)
		if err != nil {
			return err
		}
		if e.cfg.Debug {
			next = old.Next()
		}
		if next == old {
			stored, err := q.Settings.CurrentWeek(ctx)
			if err != nil || stored != nil {
				return err
			}
		}
		if err := q.Settings.SetCurrentWeek(ctx, next); err != nil {
			return err
		}
		changed = next != old
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		e.logger.Info("advanced week", "week", next.String(), "debug", e.cfg.Debug)
	}
	return changed, nil
}
