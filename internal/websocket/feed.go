package websocket

import (
	"github.com/christopher-besch/chore-planner/internal/model"
	"github.com/christopher-besch/chore-planner/internal/planner"
	"github.com/christopher-besch/chore-planner/internal/week"
)

const (
	TypeAssignmentCreated   = "assignment_created"
	TypeAssignmentRetracted = "assignment_retracted"
	TypeWeekStarted         = "week_started"
)

// PublishDelta broadcasts every retraction, then every new assignment.
func (h *Hub) PublishDelta(delta planner.PlanDelta) {
	for _, r := range delta.Retracted {
		h.Broadcast(NewMessage("assignment", "retracted", r.Week, r))
	}
	for _, a := range delta.Assigned {
		h.Broadcast(NewMessage("assignment", "created", a.Week, a))
	}
}

// PublishWeek announces the start of w with who does what.
func (h *Hub) PublishWeek(w week.Week, assignments []model.Assignment) {
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	h.Broadcast(NewMessage("week", "started", w, assignments))
}
