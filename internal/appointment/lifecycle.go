package appointment

import (
	"fmt"

	"github.com/hackgods/vetcare-appointments/internal/identity"
)

// reachable is the role-independent status graph. Terminal statuses have no
// outgoing edges.
var reachable = map[Status][]Status{
	StatusScheduled:   {StatusAccepted, StatusRescheduled, StatusCancelled},
	StatusRescheduled: {StatusAccepted, StatusCancelled},
	StatusAccepted:    {StatusCompleted, StatusCancelled},
}

// roleEdges narrows reachable to the edges each role may drive.
var roleEdges = map[identity.Role]map[Status][]Status{
	identity.RoleDoctor: {
		StatusScheduled:   {StatusAccepted, StatusRescheduled, StatusCancelled},
		StatusRescheduled: {StatusCancelled},
		StatusAccepted:    {StatusCompleted, StatusCancelled},
	},
	identity.RoleOwner: {
		StatusScheduled:   {StatusAccepted, StatusCancelled},
		StatusRescheduled: {StatusAccepted, StatusCancelled},
		StatusAccepted:    {StatusCancelled},
	},
}

var (
	doctorRequestable = []Status{StatusAccepted, StatusRescheduled, StatusCancelled}
	ownerRequestable  = []Status{StatusScheduled, StatusAccepted, StatusCancelled}
)

// CheckTransition reports whether role may move an appointment from one
// status to another. Unreachable targets yield ErrInvalidTransition;
// reachable targets outside the role's edges yield ErrForbidden.
func CheckTransition(role identity.Role, from, to Status) error {
	if !to.Valid() {
		return invalidField("status", fmt.Sprintf("unknown status %q", to))
	}
	if from.Terminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, from)
	}
	if !containsStatus(reachable[from], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !containsStatus(roleEdges[role][from], to) {
		return fmt.Errorf("%w: %s may not move %s -> %s", ErrForbidden, role, from, to)
	}
	return nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
