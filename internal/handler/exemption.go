package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
)

type ExemptionHandler struct {
	base
}

func NewExemptionHandler(engine *planner.Engine, feed Feed, logger *slog.Logger) *ExemptionHandler {
	return &ExemptionHandler{base{engine: engine, feed: feed, logger: logger}}
}

type reasonRequest struct {
	Reason string   `json:"reason"`
	Chores []string `json:"chores"`
}

func (h *ExemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	overview, err := h.engine.ExemptionOverview(r.Context())
	if err != nil {
		h.fail(w, r, "list exemptions", err)
		return
	}
	if overview == nil {
		overview = []model.ExemptionOverview{}
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *ExemptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decode(w, r, &req) {
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}
	delta, err := h.engine.CreateExemptionReason(r.Context(), req.Reason, req.Chores)
	if err != nil {
		h.fail(w, r, "create exemption reason", err)
		return
	}
	h.respondDelta(w, http.StatusCreated, delta)
}

// Update replaces the chores the reason in the path excuses.
func (h *ExemptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if !decode(w, r, &req) {
		return
	}
	delta, err := h.engine.ChangeExemptionReason(r.Context(), r.PathValue("reason"), req.Chores)
	if err != nil {
		h.fail(w, r, "change exemption reason", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}

func (h *ExemptionHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if !decode(w, r, &req) {
		return
	}
	wk, err := h.orCurrent(r.Context(), req.Week)
	if err != nil {
		h.fail(w, r, "grant exemption", err)
		return
	}
	delta, err := h.engine.GrantExemption(r.Context(), strings.TrimSpace(req.Tenant), r.PathValue("reason"), wk)
	if err != nil {
		h.fail(w, r, "grant exemption", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}

func (h *ExemptionHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if !decode(w, r, &req) {
		return
	}
	wk, err := h.orCurrent(r.Context(), req.Week)
	if err != nil {
		h.fail(w, r, "revoke exemption", err)
		return
	}
	delta, err := h.engine.RevokeExemption(r.Context(), strings.TrimSpace(req.Tenant), r.PathValue("reason"), wk)
	if err != nil {
		h.fail(w, r, "revoke exemption", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}
