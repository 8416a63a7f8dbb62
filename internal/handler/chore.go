package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
)

type ChoreHandler struct {
	base
}

func NewChoreHandler(engine *planner.Engine, feed Feed, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{base{engine: engine, feed: feed, logger: logger}}
}

type choreRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if !decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	delta, err := h.engine.CreateChore(r.Context(), req.Name, strings.TrimSpace(req.Description))
	if err != nil {
		h.fail(w, r, "create chore", err)
		return
	}
	h.respondDelta(w, http.StatusCreated, delta)
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	chores, err := h.engine.ListChores(r.Context())
	if err != nil {
		h.fail(w, r, "list chores", err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

func (h *ChoreHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "active is required"})
		return
	}
	delta, err := h.engine.SetChoreActive(r.Context(), r.PathValue("name"), *req.Active)
	if err != nil {
		h.fail(w, r, "set chore active", err)
		return
	}
	h.respondDelta(w, http.StatusOK, delta)
}
