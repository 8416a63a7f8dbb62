package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/model"
)

type ChoreStore struct {
	db DBTX
}

func NewChoreStore(db DBTX) *ChoreStore {
	return &ChoreStore{db: db}
}

func scanChore(scanner interface{ Scan(...any) error }) (*model.Chore, error) {
	var c model.Chore
	var active int
	if err := scanner.Scan(&c.ID, &c.Name, &c.Description, &active); err != nil {
		return nil, err
	}
	c.Active = active != 0
	return &c, nil
}

const choreCols = `chores.id, chores.name, chores.description, chores.active`

func (s *ChoreStore) Create(ctx context.Context, name, description string) (*model.Chore, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (name, description, active) VALUES (?, ?, 1)`,
		name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ChoreStore) GetByID(ctx context.Context, id int64) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`, id)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (s *ChoreStore) GetByName(ctx context.Context, name string) (*model.Chore, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+choreCols+` FROM chores WHERE name = ?`, name)
	c, err := scanChore(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore by name: %w", err)
	}
	return c, nil
}

// List returns all chores ordered by id, inactive ones included.
func (s *ChoreStore) List(ctx context.Context) ([]model.Chore, error) {
	return s.list(ctx, `SELECT `+choreCols+` FROM chores ORDER BY chores.id ASC`)
}

func (s *ChoreStore) ListActive(ctx context.Context) ([]model.Chore, error) {
	return s.list(ctx, `SELECT `+choreCols+` FROM chores WHERE chores.active = 1 ORDER BY chores.id ASC`)
}

func (s *ChoreStore) list(ctx context.Context, query string) ([]model.Chore, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	var chores []model.Chore
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

func (s *ChoreStore) SetActive(ctx context.Context, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE chores SET active = ? WHERE id = ?`, v, id)
	if err != nil {
		return fmt.Errorf("set chore active: %w", err)
	}
	return expectRows(res, 1, "set chore active")
}
