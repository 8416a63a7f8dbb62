package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/week"
)

const snapshotColumns = `id, week, object_key, size_bytes, status, error_message, created_at, completed_at`

// SnapshotStore keeps the catalogue of uploaded database snapshots. It lives
// beside the planner tables but is never touched by planner mutations.
type SnapshotStore struct {
	db DBTX
}

func NewSnapshotStore(db DBTX) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) Create(ctx context.Context, w week.Week, objectKey string, now time.Time) (*model.Snapshot, error) {
	now = now.UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (week, object_key, status, created_at) VALUES (?, ?, ?, ?)`,
		w.Epoch(), objectKey, model.SnapshotPending, now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("snapshot id: %w", err)
	}
	return &model.Snapshot{
		ID:        id,
		Week:      w,
		ObjectKey: objectKey,
		Status:    model.SnapshotPending,
		CreatedAt: now,
	}, nil
}

// Get returns nil when no snapshot has the id.
func (s *SnapshotStore) Get(ctx context.Context, id int64) (*model.Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	return snap, nil
}

// List returns up to limit snapshots, newest first.
func (s *SnapshotStore) List(ctx context.Context, limit int) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, rows.Err()
}

func (s *SnapshotStore) UpdateStatus(ctx context.Context, id int64, status model.SnapshotStatus, errorMsg string) error {
	var msg sql.NullString
	if errorMsg != "" {
		msg = sql.NullString{String: errorMsg, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET status = ?, error_message = ? WHERE id = ?`, status, msg, id)
	if err != nil {
		return fmt.Errorf("update snapshot status: %w", err)
	}
	return expectRows(res, 1, "update snapshot status")
}

func (s *SnapshotStore) MarkCompleted(ctx context.Context, id, sizeBytes int64, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE snapshots SET status = ?, size_bytes = ?, error_message = NULL, completed_at = ? WHERE id = ?`,
		model.SnapshotCompleted, sizeBytes, now.UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("complete snapshot: %w", err)
	}
	return expectRows(res, 1, "complete snapshot")
}

// Prune keeps the newest keep completed snapshots and removes every row older
// than the oldest of them. It returns the object keys of removed completed
// snapshots; the caller deletes those objects.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("prune snapshots: keep must be positive, got %d", keep)
	}

	var cutoff int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots WHERE status = ? ORDER BY id DESC LIMIT 1 OFFSET ?`,
		model.SnapshotCompleted, keep-1,
	).Scan(&cutoff)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find prune cutoff: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT object_key FROM snapshots WHERE id < ? AND status = ?`, cutoff, model.SnapshotCompleted)
	if err != nil {
		return nil, fmt.Errorf("select old snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id < ?`, cutoff); err != nil {
		return nil, fmt.Errorf("delete old snapshots: %w", err)
	}
	return keys, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*model.Snapshot, error) {
	var (
		snap        model.Snapshot
		w           int64
		errMsg      sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := row.Scan(&snap.ID, &w, &snap.ObjectKey, &snap.SizeBytes, &snap.Status, &errMsg, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	snap.Week = week.FromEpoch(w)
	snap.ErrorMessage = errMsg.String
	snap.CreatedAt = time.Unix(createdAt, 0).UTC()
	if completedAt.Valid {
		t := time.Unix(completedAt.Int64, 0).UTC()
		snap.CompletedAt = &t
	}
	return &snap, nil
}
