package planner

import (
	"errors"

	"github.com/christopher-besch/chore-planner/internal/week"
)

// User-actionable errors. Callers may show them verbatim.
var (
	ErrRoomOccupied           = errors.New("room is occupied")
	ErrTenantAlreadyHoused    = errors.New("tenant already lives somewhere")
	ErrNotResident            = errors.New("tenant does not live anywhere")
	ErrUnknownExemptionReason = errors.New("unknown exemption reason")
	ErrAlreadyExempt          = errors.New("tenant is already exempt")
	ErrNotExempt              = errors.New("tenant is not exempt")
	ErrChoreNotFound          = errors.New("chore not found")
	ErrChoreExists            = errors.New("chore already exists")
	ErrRoomNotFound           = errors.New("room not found")
	ErrRoomExists             = errors.New("room already exists")
	ErrTenantNotFound         = errors.New("tenant not found")
	ErrReasonExists           = errors.New("exemption reason already exists")
	ErrAssignmentNotFound     = errors.New("no assignment for chore and week")
	ErrInvalidRating          = errors.New("invalid rating")
	ErrPollNotFound           = errors.New("rating poll not found")
	ErrPollClosed             = errors.New("rating poll already completed")
	ErrPollRefInUse           = errors.New("rating poll already attached to another assignment")
)

var userErrors = []error{
	ErrRoomOccupied,
	ErrTenantAlreadyHoused,
	ErrNotResident,
	ErrUnknownExemptionReason,
	ErrAlreadyExempt,
	ErrNotExempt,
	ErrChoreNotFound,
	ErrChoreExists,
	ErrRoomNotFound,
	ErrRoomExists,
	ErrTenantNotFound,
	ErrReasonExists,
	ErrAssignmentNotFound,
	ErrInvalidRating,
	ErrPollNotFound,
	ErrPollClosed,
	ErrPollRefInUse,
	week.ErrInvalidCalendarDate,
}

// IsUserError reports whether err was caused by the request rather than by a
// defect. Everything else, invariant violations in particular, is internal.
func IsUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
