// Package guard decides whether a navigation or render request may
// proceed. Evaluate is a pure function of its snapshots: no side effects,
// no memoization, safe to call on every request.
package guard

import (
	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/scope"
	"github.com/atriumhq/atrium/internal/session"
)

// Effect is the guard's verdict for a request.
type Effect string

const (
	// Allow permits rendering the requested target.
	Allow Effect = "allow"
	// Deny blocks the target; Decision.Reason distinguishes a missing
	// session from an authorization refusal.
	Deny Effect = "deny"
	// Await means session or scope resolution is still in flight. The
	// caller must neither render protected content nor redirect yet.
	Await Effect = "await"
)

// Deny reasons.
const (
	ReasonSignInRequired = "sign-in required"
	ReasonUnauthorized   = "unauthorized"
)

// Decision is the result of one access evaluation.
type Decision struct {
	Effect Effect `json:"effect"`
	Reason string `json:"reason,omitempty"`
}

// Evaluate decides access to routePath for the given session and scope
// snapshots. requiredRoles, when non-empty, further restricts the target
// beyond the navigation catalog. Authorization refusals are always
// surfaced as Deny; they are never converted into an Allow or a default.
func Evaluate(sess session.Snapshot, sc scope.Snapshot, routePath string, requiredRoles []policy.Role) Decision {
	if sess.State.Loading() || sc.Loading {
		return Decision{Effect: Await}
	}

	if sess.State != session.StateAuthenticated || sess.Identity == nil {
		return Decision{Effect: Deny, Reason: ReasonSignInRequired}
	}

	role := sess.Identity.Role
	if len(requiredRoles) > 0 && !roleIn(requiredRoles, role) {
		return Decision{Effect: Deny, Reason: ReasonUnauthorized}
	}

	if !policy.IsRouteAccessible(role, routePath) {
		return Decision{Effect: Deny, Reason: ReasonUnauthorized}
	}

	return Decision{Effect: Allow}
}

func roleIn(roles []policy.Role, role policy.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
