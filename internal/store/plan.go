package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// PlanStore persists chore_logs (one assignment per chore and week) and the
// ratings collected for them.
type PlanStore struct {
	db DBTX
}

func NewPlanStore(db DBTX) *PlanStore {
	return &PlanStore{db: db}
}

func scanChoreLog(scanner interface{ Scan(...any) error }) (*model.ChoreLog, error) {
	var l model.ChoreLog
	var w int64
	var completed int
	var ref sql.NullString
	if err := scanner.Scan(&l.ChoreID, &w, &l.WorkerID, &completed, &ref); err != nil {
		return nil, err
	}
	l.Week = week.FromEpoch(w)
	l.Completed = completed != 0
	l.PollRef = stringPtr(ref)
	return &l, nil
}

const choreLogCols = `chore_logs.chore_id, chore_logs.week, chore_logs.worker, chore_logs.completed, chore_logs.rating_poll_ref`

func (s *PlanStore) Insert(ctx context.Context, choreID int64, w week.Week, workerID int64) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_logs (chore_id, week, worker, completed, rating_poll_ref) VALUES (?, ?, ?, 0, NULL)`,
		choreID, w.Epoch(), workerID,
	)
	if err != nil {
		return fmt.Errorf("insert chore log: %w", err)
	}
	return expectRows(res, 1, "insert chore log")
}

func (s *PlanStore) Delete(ctx context.Context, choreID int64, w week.Week) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chore_logs WHERE chore_id = ? AND week = ?`, choreID, w.Epoch())
	if err != nil {
		return fmt.Errorf("delete chore log: %w", err)
	}
	return expectRows(res, 1, "delete chore log")
}

func (s *PlanStore) Get(ctx context.Context, choreID int64, w week.Week) (*model.ChoreLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+choreLogCols+` FROM chore_logs WHERE chore_id = ? AND week = ?`, choreID, w.Epoch())
	l, err := scanChoreLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore log: %w", err)
	}
	return l, nil
}

func (s *PlanStore) GetByPollRef(ctx context.Context, ref string) (*model.ChoreLog, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+choreLogCols+` FROM chore_logs WHERE rating_poll_ref = ?`, ref)
	l, err := scanChoreLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore log by poll: %w", err)
	}
	return l, nil
}

// ListLogs returns every chore log, past and planned.
func (s *PlanStore) ListLogs(ctx context.Context) ([]model.ChoreLog, error) {
	return s.listLogs(ctx, `SELECT `+choreLogCols+` FROM chore_logs ORDER BY chore_logs.week, chore_logs.chore_id`)
}

// ListFrom returns the chore logs of week from and later.
func (s *PlanStore) ListFrom(ctx context.Context, from week.Week) ([]model.ChoreLog, error) {
	return s.listLogs(ctx,
		`SELECT `+choreLogCols+` FROM chore_logs WHERE chore_logs.week >= ? ORDER BY chore_logs.week, chore_logs.chore_id`,
		from.Epoch())
}

func (s *PlanStore) listLogs(ctx context.Context, query string, args ...any) ([]model.ChoreLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chore logs: %w", err)
	}
	defer rows.Close()

	var logs []model.ChoreLog
	for rows.Next() {
		l, err := scanChoreLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore log: %w", err)
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

// --- Assignment views ---

const assignmentSelect = `SELECT chores.name, chore_logs.week, tenants.name, tenants.chat_tag,
	chore_logs.completed, chore_logs.rating_poll_ref, CAST(AVG(ratings.rating) AS REAL)
	FROM chore_logs
	JOIN chores ON chores.id = chore_logs.chore_id
	JOIN tenants ON tenants.id = chore_logs.worker
	LEFT JOIN ratings ON ratings.chore_id = chore_logs.chore_id AND ratings.week = chore_logs.week`

const assignmentGroup = ` GROUP BY chore_logs.chore_id, chore_logs.week`

func scanAssignment(scanner interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var w int64
	var completed int
	var tag, ref sql.NullString
	var avg sql.NullFloat64
	if err := scanner.Scan(&a.Chore, &w, &a.Tenant, &tag, &completed, &ref, &avg); err != nil {
		return nil, err
	}
	a.Week = week.FromEpoch(w)
	a.ChatTag = stringPtr(tag)
	a.Completed = completed != 0
	a.PollRef = stringPtr(ref)
	a.AverageRating = floatPtr(avg)
	return &a, nil
}

// Assignments lists assignments of active chores with from <= week, and
// week < until when until is set. Results are ordered by chore, then week.
func (s *PlanStore) Assignments(ctx context.Context, from week.Week, until *week.Week) ([]model.Assignment, error) {
	return s.listAssignments(ctx,
		assignmentSelect+`
		WHERE chores.active = 1 AND chore_logs.week >= ? AND (? IS NULL OR chore_logs.week < ?)`+
			assignmentGroup+` ORDER BY chore_logs.chore_id, chore_logs.week`,
		from.Epoch(), nullWeek(until), nullWeek(until))
}

// InWeek lists the assignments of one week ordered by chore.
func (s *PlanStore) InWeek(ctx context.Context, w week.Week) ([]model.Assignment, error) {
	return s.listAssignments(ctx,
		assignmentSelect+` WHERE chore_logs.week = ?`+assignmentGroup+` ORDER BY chore_logs.chore_id`,
		w.Epoch())
}

// Unpolled lists the assignments of w that have no rating poll yet.
func (s *PlanStore) Unpolled(ctx context.Context, w week.Week) ([]model.Assignment, error) {
	return s.listAssignments(ctx,
		assignmentSelect+` WHERE chore_logs.week = ? AND chore_logs.rating_poll_ref IS NULL`+
			assignmentGroup+` ORDER BY chore_logs.chore_id`,
		w.Epoch())
}

// OpenPolls lists uncompleted assignments before week that carry a poll.
func (s *PlanStore) OpenPolls(ctx context.Context, before week.Week) ([]model.Assignment, error) {
	return s.listAssignments(ctx,
		assignmentSelect+` WHERE chore_logs.completed = 0 AND chore_logs.rating_poll_ref IS NOT NULL AND chore_logs.week < ?`+
			assignmentGroup+` ORDER BY chore_logs.week, chore_logs.chore_id`,
		before.Epoch())
}

func (s *PlanStore) listAssignments(ctx context.Context, query string, args ...any) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// --- Rating methods ---

func (s *PlanStore) SetPollRef(ctx context.Context, choreID int64, w week.Week, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_logs SET rating_poll_ref = ? WHERE chore_id = ? AND week = ?`,
		ref, choreID, w.Epoch(),
	)
	if err != nil {
		return fmt.Errorf("set poll ref: %w", err)
	}
	return expectRows(res, 1, "set poll ref")
}

func (s *PlanStore) AddRating(ctx context.Context, choreID int64, w week.Week, rating int) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (chore_id, week, rating) VALUES (?, ?, ?)`,
		choreID, w.Epoch(), rating,
	)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	return expectRows(res, 1, "insert rating")
}

func (s *PlanStore) ListRatings(ctx context.Context, choreID int64, w week.Week) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chore_id, week, rating FROM ratings WHERE chore_id = ? AND week = ? ORDER BY id`,
		choreID, w.Epoch())
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		var r model.Rating
		var wk int64
		if err := rows.Scan(&r.ID, &r.ChoreID, &wk, &r.Rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.Week = week.FromEpoch(wk)
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

func (s *PlanStore) MarkCompleted(ctx context.Context, ref string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chore_logs SET completed = 1 WHERE rating_poll_ref = ?`, ref)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return expectRows(res, 1, "mark completed")
}

// AverageRatings returns the average rating over all assignments per worker.
// Workers without any rating are absent.
func (s *PlanStore) AverageRatings(ctx context.Context) (map[int64]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chore_logs.worker, CAST(AVG(ratings.rating) AS REAL)
		 FROM chore_logs
		 JOIN ratings ON ratings.chore_id = chore_logs.chore_id AND ratings.week = chore_logs.week
		 GROUP BY chore_logs.worker`)
	if err != nil {
		return nil, fmt.Errorf("average ratings: %w", err)
	}
	defer rows.Close()

	avg := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var v float64
		if err := rows.Scan(&id, &v); err != nil {
			return nil, fmt.Errorf("scan average rating: %w", err)
		}
		avg[id] = v
	}
	return avg, rows.Err()
}
