// Package session owns the authenticated identity lifecycle: restoring a
// persisted session, signing in through the identity provider, and signing
// out. At most one identity is current per Manager.
package session

import (
	"errors"

	"github.com/atriumhq/atrium/internal/policy"
)

var (
	// ErrSignInFailed is returned when the identity provider rejects a
	// sign-in attempt. Recoverable; the caller decides whether to retry.
	ErrSignInFailed = errors.New("sign-in failed")
	// ErrNotAuthenticated is returned for operations that need a current
	// identity when the session is anonymous.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Status is the lifecycle status carried on an identity record.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

// Identity represents an authenticated principal. HomeTenantID never
// changes for the lifetime of an Identity; a role change requires a new
// sign-in.
type Identity struct {
	ID           string      `json:"id"`
	DisplayName  string      `json:"display_name"`
	Email        string      `json:"email"`
	Role         policy.Role `json:"role"`
	HomeTenantID string      `json:"home_tenant_id"`
	Status       Status      `json:"status"`
}

// State is the Manager's position in the session lifecycle.
type State string

const (
	StateUninitialized  State = "uninitialized"
	StateRestoring      State = "restoring"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateSigningOut     State = "signing_out"
	StateAnonymous      State = "anonymous"
)

// Loading reports whether the state is transitional: callers must neither
// render protected content nor redirect while a transition is in flight.
func (s State) Loading() bool {
	switch s {
	case StateUninitialized, StateRestoring, StateAuthenticating, StateSigningOut:
		return true
	}
	return false
}

// Snapshot is a point-in-time view of a Manager, safe to pass to the
// access guard without holding any lock.
type Snapshot struct {
	State    State
	Identity *Identity
}
