package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/christopher-besch/chore-planner/internal/week"
)

// KeyCurrentWeek holds the week the planner considers current, as epoch offset.
const KeyCurrentWeek = "current_week"

// SettingsStore is a plain key/value table for process state that must
// survive restarts.
type SettingsStore struct {
	db DBTX
}

func NewSettingsStore(db DBTX) *SettingsStore {
	return &SettingsStore{db: db}
}

// Get returns the value for key and whether it was set.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM key_value WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SettingsStore) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM key_value ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO key_value (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// CurrentWeek returns the stored current week, or nil before the first
// advance.
func (s *SettingsStore) CurrentWeek(ctx context.Context) (*week.Week, error) {
	v, ok, err := s.Get(ctx, KeyCurrentWeek)
	if err != nil || !ok {
		return nil, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s = %q is not a week", ErrInvariantViolation, KeyCurrentWeek, v)
	}
	w := week.FromEpoch(n)
	return &w, nil
}

func (s *SettingsStore) SetCurrentWeek(ctx context.Context, w week.Week) error {
	return s.Set(ctx, KeyCurrentWeek, strconv.FormatInt(w.Epoch(), 10))
}
