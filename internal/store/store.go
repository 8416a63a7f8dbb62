package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/week"
)

// ErrInvariantViolation marks a broken data-model guarantee, such as a point
// query returning several rows. It is never a user error.
var ErrInvariantViolation = errors.New("invariant violation")

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles every store over the same connection or transaction.
type Queries struct {
	db         DBTX
	Tenants    *TenantStore
	Chores     *ChoreStore
	Exemptions *ExemptionStore
	Plan       *PlanStore
	Settings   *SettingsStore
}

func New(db DBTX) *Queries {
	return &Queries{
		db:         db,
		Tenants:    NewTenantStore(db),
		Chores:     NewChoreStore(db),
		Exemptions: NewExemptionStore(db),
		Plan:       NewPlanStore(db),
		Settings:   NewSettingsStore(db),
	}
}

// InTx runs fn inside one transaction. The transaction is committed only when
// fn returns nil.
func InTx(ctx context.Context, db *sql.DB, fn func(q *Queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(New(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IntegrityCheck runs SQLite's own consistency check and returns its report
// lines; a healthy database reports the single line "ok".
func (q *Queries) IntegrityCheck(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, `PRAGMA integrity_check`)
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close()

	var report []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan integrity check: %w", err)
		}
		report = append(report, line)
	}
	return report, rows.Err()
}

// expectRows fails with ErrInvariantViolation unless exactly want rows changed.
func expectRows(res sql.Result, want int64, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", what, err)
	}
	if n != want {
		return fmt.Errorf("%w: %s affected %d rows, want %d", ErrInvariantViolation, what, n, want)
	}
	return nil
}

func nullWeek(w *week.Week) sql.NullInt64 {
	if w == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: w.Epoch(), Valid: true}
}

func weekPtr(n sql.NullInt64) *week.Week {
	if !n.Valid {
		return nil
	}
	w := week.FromEpoch(n.Int64)
	return &w
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
