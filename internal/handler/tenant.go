package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

type TenantHandler struct {
	base
}

func NewTenantHandler(engine *planner.Engine, feed Feed, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{base{engine: engine, feed: feed, logger: logger}}
}

type roomRequest struct {
	Name string `json:"name"`
}

func (h *TenantHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if err := h.engine.CreateRoom(r.Context(), req.Name); err != nil {
		h.fail(w, r, "create room", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (h *TenantHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.engine.RoomOverview(r.Context())
	if err != nil {
		h.fail(w, r, "list rooms", err)
		return
	}
	if rooms == nil {
		rooms = []model.RoomStatus{}
	}
	writeJSON(w, http.StatusOK, rooms)
}

// RoomTenant answers who lives in a room, for ?week= or the current week.
func (h *TenantHandler) RoomTenant(w http.ResponseWriter, r *http.Request) {
	wk, err := h.weekParam(r)
	if err != nil {
		h.fail(w, r, "resolve tenant", err)
		return
	}
	tenant, err := h.engine.ResolveTenant(r.Context(), wk, r.PathValue("name"))
	if err != nil {
		h.fail(w, r, "resolve tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"week": wk, "tenant": tenant})
}

// TenantRoom answers where a tenant lives, for ?week= or the current week.
func (h *TenantHandler) TenantRoom(w http.ResponseWriter, r *http.Request) {
	wk, err := h.weekParam(r)
	if err != nil {
		h.fail(w, r, "resolve room", err)
		return
	}
	room, err := h.engine.ResolveRoom(r.Context(), wk, r.PathValue("name"))
	if err != nil {
		h.fail(w, r, "resolve room", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"week": wk, "room": room})
}

type moveInRequest struct {
	Tenant  string  `json:"tenant"`
	ChatTag *string `json:"chat_tag"`
	Room    string  `json:"room"`
}

func (h *TenantHandler) MoveIn(w http.ResponseWriter, r *http.Request) {
	var req moveInRequest
	if !decode(w, r, &req) {
		return
	}
	req.Tenant = strings.TrimSpace(req.Tenant)
	req.Room = strings.TrimSpace(req.Room)
	if req.Tenant == "" || req.Room == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant and room are required"})
		return
	}
	delta, err := h.engine.MoveIn(r.Context(), req.Tenant, req.ChatTag, req.Room)
	if err != nil {
		h.fail(w, r, "move in", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}

type tenantRequest struct {
	Tenant string     `json:"tenant"`
	Week   *week.Week `json:"week"`
}

type moveOutRequest struct {
	Tenant string `json:"tenant"`
}

// MoveOut ends the tenancy at the current week.
func (h *TenantHandler) MoveOut(w http.ResponseWriter, r *http.Request) {
	var req moveOutRequest
	if !decode(w, r, &req) {
		return
	}
	delta, err := h.engine.MoveOut(r.Context(), strings.TrimSpace(req.Tenant))
	if err != nil {
		h.fail(w, r, "move out", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}

// Unwilling excludes a tenant from one week, the current one by default.
func (h *TenantHandler) Unwilling(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if !decode(w, r, &req) {
		return
	}
	wk, err := h.orCurrent(r.Context(), req.Week)
	if err != nil {
		h.fail(w, r, "mark unwilling", err)
		return
	}
	delta, err := h.engine.MarkUnwilling(r.Context(), strings.TrimSpace(req.Tenant), wk)
	if err != nil {
		h.fail(w, r, "mark unwilling", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}
