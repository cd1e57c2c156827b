package appointment

import (
	"fmt"

	"github.com/hackgods/vetcare-appointments/internal/identity"
)

func isOwner(c identity.Caller, a *Appointment) bool {
	return c.CanRespondAsOwner() && c.UserID() == a.OwnerID
}

func isDoctor(c identity.Caller, a *Appointment) bool {
	return c.CanRespondAsDoctor() && c.UserID() == a.DoctorID
}

// CanRead allows auditors and the appointment's own owner and doctor.
func CanRead(c identity.Caller, a *Appointment) error {
	if c.CanAudit() || isOwner(c, a) || isDoctor(c, a) {
		return nil
	}
	return ErrForbidden
}

// CanSetPaid allows the participants and auditors confirming payment.
// Payment does not change status.
func CanSetPaid(c identity.Caller, a *Appointment) error {
	if c.CanAudit() || isOwner(c, a) || isDoctor(c, a) {
		return nil
	}
	return ErrForbidden
}

// CanAct decides whether c may move a to requested. Identity is checked
// before the transition table so that outsiders learn nothing about state.
func CanAct(c identity.Caller, a *Appointment, requested Status) error {
	switch {
	case c.CanRespondAsDoctor():
		if !isDoctor(c, a) {
			return fmt.Errorf("%w: not the assigned doctor", ErrForbidden)
		}
	case c.CanRespondAsOwner():
		if !isOwner(c, a) {
			return fmt.Errorf("%w: not the appointment owner", ErrForbidden)
		}
	default:
		return fmt.Errorf("%w: %s has no lifecycle rights", ErrForbidden, c.Role())
	}
	return CheckTransition(c.Role(), a.Status, requested)
}
