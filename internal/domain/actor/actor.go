// Package actor models the authenticated identity performing an operation.
// Authorization throughout the domain is expressed as explicit predicates
// over (actor, resource) so the rules can be tested without storage.
package actor

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the coarse permission level attached to an actor.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSeller   Role = "SELLER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// Actor is an authenticated identity.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// ErrUnknownKey is returned when API credentials do not resolve to an actor.
var ErrUnknownKey = errors.New("unknown api key")

// Repository resolves hashed API credentials to actors.
type Repository interface {
	FindByKeyHash(ctx context.Context, hash string) (*Actor, error)
}
