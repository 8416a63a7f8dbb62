package model

import (
	"time"

	"github.com/christopher-besch/chore-planner/internal/week"
)

type SnapshotStatus string

const (
	SnapshotPending   SnapshotStatus = "pending"
	SnapshotUploading SnapshotStatus = "uploading"
	SnapshotCompleted SnapshotStatus = "completed"
	SnapshotFailed    SnapshotStatus = "failed"
)

// Snapshot records one encrypted copy of the planner database in object
// storage, taken when Week became current.
type Snapshot struct {
	ID           int64          `json:"id"`
	Week         week.Week      `json:"week"`
	ObjectKey    string         `json:"object_key"`
	SizeBytes    int64          `json:"size_bytes"`
	Status       SnapshotStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}
