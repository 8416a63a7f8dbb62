// Package handler exposes the planner as a JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/christopher-besch/chore-planner/internal/middleware"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

// Feed receives every change the API makes to the plan.
type Feed interface {
	PublishDelta(delta planner.PlanDelta)
	PublishWeek(w week.Week, assignments []model.Assignment)
}

// WeekAdvancer moves the planner to a new week and re-plans.
type WeekAdvancer interface {
	Advance(ctx context.Context, w week.Week) (bool, error)
}

type base struct {
	engine *planner.Engine
	feed   Feed
	logger *slog.Logger
	now    func() time.Time
}

func (b *base) publish(delta planner.PlanDelta) {
	if b.feed != nil && !delta.Empty() {
		b.feed.PublishDelta(delta)
	}
}

// weekParam reads the week query parameter, defaulting to the current week.
func (b *base) weekParam(r *http.Request) (week.Week, error) {
	if v := r.URL.Query().Get("week"); v != "" {
		return week.Parse(v)
	}
	return b.engine.CurrentWeek(r.Context())
}

// orCurrent returns *w, or the current week when w is nil.
func (b *base) orCurrent(ctx context.Context, w *week.Week) (week.Week, error) {
	if w != nil {
		return *w, nil
	}
	return b.engine.CurrentWeek(ctx)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, planner.ErrChoreNotFound),
		errors.Is(err, planner.ErrRoomNotFound),
		errors.Is(err, planner.ErrTenantNotFound),
		errors.Is(err, planner.ErrUnknownExemptionReason),
		errors.Is(err, planner.ErrAssignmentNotFound),
		errors.Is(err, planner.ErrPollNotFound):
		return http.StatusNotFound
	case errors.Is(err, planner.ErrRoomOccupied),
		errors.Is(err, planner.ErrTenantAlreadyHoused),
		errors.Is(err, planner.ErrAlreadyExempt),
		errors.Is(err, planner.ErrChoreExists),
		errors.Is(err, planner.ErrRoomExists),
		errors.Is(err, planner.ErrReasonExists),
		errors.Is(err, planner.ErrPollClosed),
		errors.Is(err, planner.ErrPollRefInUse):
		return http.StatusConflict
	case planner.IsUserError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a response. User errors are shown verbatim; anything
// else is logged and hidden behind a generic message.
func (b *base) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		b.logger.Error(op, "error", err, "request_id", middleware.RequestID(r.Context()))
		writeJSON(w, status, map[string]string{"error": op + " failed"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// respondDelta publishes delta and writes it.
func (b *base) respondDelta(w http.ResponseWriter, status int, delta planner.PlanDelta) {
	b.publish(delta)
	if delta.Assigned == nil {
		delta.Assigned = []planner.Assigned{}
	}
	if delta.Retracted == nil {
		delta.Retracted = []planner.Retracted{}
	}
	writeJSON(w, status, delta)
}
