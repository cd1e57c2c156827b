package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleDoctor Role = "doctor"
	RoleAdmin  Role = "admin"
)

var (
	ErrUnknownRole     = errors.New("unknown role")
	ErrMissingIdentity = errors.New("caller identity missing")
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Caller is the authenticated party behind a request. The set of
// implementations is closed to this package.
type Caller interface {
	UserID() uuid.UUID
	Role() Role

	CanRespondAsOwner() bool
	CanRespondAsDoctor() bool
	CanAudit() bool

	sealed()
}

type base struct {
	id uuid.UUID
}

func (b base) UserID() uuid.UUID { return b.id }
func (base) sealed()             {}

type owner struct{ base }

func (owner) Role() Role               { return RoleOwner }
func (owner) CanRespondAsOwner() bool  { return true }
func (owner) CanRespondAsDoctor() bool { return false }
func (owner) CanAudit() bool           { return false }

type doctor struct{ base }

func (doctor) Role() Role               { return RoleDoctor }
func (doctor) CanRespondAsOwner() bool  { return false }
func (doctor) CanRespondAsDoctor() bool { return true }
func (doctor) CanAudit() bool           { return false }

type admin struct{ base }

func (admin) Role() Role               { return RoleAdmin }
func (admin) CanRespondAsOwner() bool  { return false }
func (admin) CanRespondAsDoctor() bool { return false }
func (admin) CanAudit() bool           { return true }

// NewCaller builds the caller variant for role.
func NewCaller(id uuid.UUID, role Role) (Caller, error) {
	if id == uuid.Nil {
		return nil, ErrMissingIdentity
	}
	b := base{id: id}
	switch role {
	case RoleOwner:
		return owner{b}, nil
	case RoleDoctor:
		return doctor{b}, nil
	case RoleAdmin:
		return admin{b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

type contextKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the caller stored by WithCaller.
func FromContext(ctx context.Context) (Caller, error) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	if !ok || c == nil {
		return nil, ErrMissingIdentity
	}
	return c, nil
}
