// Package metrics records planner activity. The engine depends only on the
// Recorder interface; NewNop discards everything and NewPrometheus exports
// to a Prometheus registry.
package metrics

import "time"

// Recorder receives planner events.
type Recorder interface {
	// ObserveMaintain records the duration of one Maintain pass.
	ObserveMaintain(d time.Duration)
	AssignmentCreated(chore string)
	AssignmentRetracted(chore string)
	// SlotUnplanned counts a slot left empty because no tenant was eligible.
	SlotUnplanned(chore string)
	IntegrityViolation()
}

// Nop implements Recorder and discards every event.
type Nop struct{}

var _ Recorder = Nop{}

func NewNop() Nop { return Nop{} }

func (Nop) ObserveMaintain(time.Duration) {}
func (Nop) AssignmentCreated(string)      {}
func (Nop) AssignmentRetracted(string)    {}
func (Nop) SlotUnplanned(string)          {}
func (Nop) IntegrityViolation()           {}
