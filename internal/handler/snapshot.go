package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/christopher-besch/chore-planner/internal/backup"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// Snapshots is the backup manager as seen by the API.
type Snapshots interface {
	Status() backup.Status
	List(ctx context.Context, limit int) ([]model.Snapshot, error)
	Snapshot(ctx context.Context, w week.Week) (*model.Snapshot, error)
	Download(ctx context.Context, id int64) (io.ReadCloser, int64, error)
	Verify(ctx context.Context, id int64) (string, error)
}

type SnapshotHandler struct {
	base
	snapshots Snapshots
}

func NewSnapshotHandler(engine *planner.Engine, snapshots Snapshots, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		base:      base{engine: engine, logger: logger},
		snapshots: snapshots,
	}
}

const snapshotListLimit = 50

type snapshotsResponse struct {
	Status    backup.Status    `json:"status"`
	Snapshots []model.Snapshot `json:"snapshots"`
}

func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.snapshots.List(r.Context(), snapshotListLimit)
	if err != nil {
		h.snapshotFail(w, r, "list snapshots", err)
		return
	}
	if list == nil {
		list = []model.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshotsResponse{Status: h.snapshots.Status(), Snapshots: list})
}

// Create snapshots the database labelled with the current week.
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	current, err := h.engine.CurrentWeek(r.Context())
	if err != nil {
		h.fail(w, r, "current week", err)
		return
	}
	snap, err := h.snapshots.Snapshot(r.Context(), current)
	if err != nil {
		h.snapshotFail(w, r, "create snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// Download streams the sealed snapshot; it is only readable with the
// snapshot passphrase.
func (h *SnapshotHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := snapshotID(w, r)
	if !ok {
		return
	}
	body, size, err := h.snapshots.Download(r.Context(), id)
	if err != nil {
		h.snapshotFail(w, r, "download snapshot", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("snapshot-%d.db.enc", id)))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream snapshot", "id", id, "error", err)
	}
}

type verifyResponse struct {
	ID     int64  `json:"id"`
	Report string `json:"report"`
	OK     bool   `json:"ok"`
}

func (h *SnapshotHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := snapshotID(w, r)
	if !ok {
		return
	}
	report, err := h.snapshots.Verify(r.Context(), id)
	if err != nil {
		h.snapshotFail(w, r, "verify snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{ID: id, Report: report, OK: report == "ok"})
}

func snapshotID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid snapshot id"})
		return 0, false
	}
	return id, true
}

func (h *SnapshotHandler) snapshotFail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, backup.ErrDisabled):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrSnapshotNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, backup.ErrNotCompleted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.fail(w, r, op, err)
	}
}
