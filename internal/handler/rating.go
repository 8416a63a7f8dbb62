package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

type RatingHandler struct {
	base
}

func NewRatingHandler(engine *planner.Engine, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{base{engine: engine, logger: logger}}
}

type dueRating struct {
	Chore   string    `json:"chore"`
	Week    week.Week `json:"week"`
	Tenant  string    `json:"tenant"`
	Prompt  string    `json:"prompt"`
	Options []string  `json:"options"`
}

// Due lists last week's assignments that still need a rating poll, with the
// question and answers to post.
func (h *RatingHandler) Due(w http.ResponseWriter, r *http.Request) {
	as, err := h.engine.RatingsDue(r.Context())
	if err != nil {
		h.fail(w, r, "list due ratings", err)
		return
	}
	due := make([]dueRating, 0, len(as))
	for _, a := range as {
		due = append(due, dueRating{
			Chore:   a.Chore,
			Week:    a.Week,
			Tenant:  a.Tenant,
			Prompt:  planner.RatingPrompt(a),
			Options: planner.RatingOptions,
		})
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *RatingHandler) OpenPolls(w http.ResponseWriter, r *http.Request) {
	as, err := h.engine.OpenRatingPolls(r.Context())
	if err != nil {
		h.fail(w, r, "list open polls", err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentsOrEmpty(as))
}

type pollRequest struct {
	Chore string     `json:"chore"`
	Week  *week.Week `json:"week"`
	Ref   string     `json:"ref"`
}

func (h *RatingHandler) AttachPoll(w http.ResponseWriter, r *http.Request) {
	var req pollRequest
	if !decode(w, r, &req) {
		return
	}
	req.Ref = strings.TrimSpace(req.Ref)
	if req.Chore == "" || req.Week == nil || req.Ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chore, week and ref are required"})
		return
	}
	if err := h.engine.AttachRatingPoll(r.Context(), req.Chore, *req.Week, req.Ref); err != nil {
		h.fail(w, r, "attach rating poll", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

type completeRequest struct {
	// Votes maps a rating, or an option label, to its vote count.
	Votes map[string]int `json:"votes"`
}

func (h *RatingHandler) CompletePoll(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if !decode(w, r, &req) {
		return
	}
	votes := make(map[int]int, len(req.Votes))
	for label, count := range req.Votes {
		rating, err := planner.ParseRatingOption(label)
		if err != nil {
			h.fail(w, r, "complete rating poll", err)
			return
		}
		votes[rating] += count
	}
	if err := h.engine.CompleteRatingPoll(r.Context(), r.PathValue("ref"), votes); err != nil {
		h.fail(w, r, "complete rating poll", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
