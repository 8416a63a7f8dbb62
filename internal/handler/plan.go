package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/christopher-besch/chore-planner/internal/fairness"
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

type PlanHandler struct {
	base
	advancer WeekAdvancer
}

func NewPlanHandler(engine *planner.Engine, feed Feed, advancer WeekAdvancer, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		base:     base{engine: engine, feed: feed, logger: logger, now: time.Now},
		advancer: advancer,
	}
}

func assignmentsOrEmpty(as []model.Assignment) []model.Assignment {
	if as == nil {
		return []model.Assignment{}
	}
	return as
}

func (h *PlanHandler) Future(w http.ResponseWriter, r *http.Request) {
	as, err := h.engine.ListFutureAssignments(r.Context())
	if err != nil {
		h.fail(w, r, "list plan", err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentsOrEmpty(as))
}

// Past lists assignments since ?since=W/Y, the last four weeks by default.
func (h *PlanHandler) Past(w http.ResponseWriter, r *http.Request) {
	var since week.Week
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := week.Parse(v)
		if err != nil {
			h.fail(w, r, "list past assignments", err)
			return
		}
		since = parsed
	} else {
		current, err := h.engine.CurrentWeek(r.Context())
		if err != nil {
			h.fail(w, r, "list past assignments", err)
			return
		}
		since = current.Add(-4)
	}
	as, err := h.engine.ListPastAssignments(r.Context(), since)
	if err != nil {
		h.fail(w, r, "list past assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentsOrEmpty(as))
}

// Candidates explains who is eligible for ?chore= in ?week= and how likely
// each of them is to be drawn.
func (h *PlanHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	wk, err := h.weekParam(r)
	if err != nil {
		h.fail(w, r, "list candidates", err)
		return
	}
	cands, err := h.engine.Candidates(r.Context(), wk, r.URL.Query().Get("chore"))
	if err != nil {
		h.fail(w, r, "list candidates", err)
		return
	}
	if cands == nil {
		cands = []fairness.Choice{}
	}
	writeJSON(w, http.StatusOK, cands)
}

func (h *PlanHandler) Maintain(w http.ResponseWriter, r *http.Request) {
	delta, err := h.engine.Maintain(r.Context())
	if err != nil {
		h.fail(w, r, "maintain plan", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}

type weekResponse struct {
	Week        week.Week          `json:"week"`
	Assignments []model.Assignment `json:"assignments"`
}

// Week returns who does what in ?week=, the current week by default.
func (h *PlanHandler) Week(w http.ResponseWriter, r *http.Request) {
	wk, err := h.weekParam(r)
	if err != nil {
		h.fail(w, r, "get week", err)
		return
	}
	as, err := h.engine.WeekAssignments(r.Context(), wk)
	if err != nil {
		h.fail(w, r, "get week", err)
		return
	}
	writeJSON(w, http.StatusOK, weekResponse{Week: wk, Assignments: assignmentsOrEmpty(as)})
}

type advanceRequest struct {
	Week *week.Week `json:"week"`
}

// Advance moves to the given week, or to the calendar week of today.
func (h *PlanHandler) Advance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	target := week.Of(h.now())
	if req.Week != nil {
		target = *req.Week
	}
	changed, err := h.advancer.Advance(r.Context(), target)
	if err != nil {
		h.fail(w, r, "advance week", err)
		return
	}
	current, err := h.engine.CurrentWeek(r.Context())
	if err != nil {
		h.fail(w, r, "advance week", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"week": current, "changed": changed})
}
