// Package console is the surface the View Layer talks to. A Console is an
// explicit per-session context object — there is no ambient global — that
// composes the identity session, the tenant scope, and the access guard.
package console

import (
	"context"

	"github.com/atriumhq/atrium/internal/directory"
	"github.com/atriumhq/atrium/internal/guard"
	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/scope"
	"github.com/atriumhq/atrium/internal/session"
)

// Console holds one session's authorization state. The identity session is
// constructed before the tenant scope; the scope is recomputed from the
// session's identity after every sign-in, sign-out, and restore.
type Console struct {
	sess   *session.Manager
	scope  *scope.Scope
	events *Broadcaster
}

// New wires a Console for one session. The provider and directory are the
// external collaborators; store is the session's namespaced key-value
// store shared by the identity session and the tenant scope.
func New(provider session.Provider, dir directory.Directory, store session.Store) *Console {
	return &Console{
		sess:   session.NewManager(provider, store),
		scope:  scope.New(dir, store),
		events: NewBroadcaster(),
	}
}

// Restore initializes the session from the store and resolves the tenant
// scope for whatever identity was restored.
func (c *Console) Restore(ctx context.Context) {
	c.sess.Restore(ctx)
	if err := c.scope.Recompute(ctx, c.sess.CurrentIdentity()); err != nil {
		// The scope already fell back to "no tenant resolved".
		return
	}
}

// SignIn authenticates and re-resolves the tenant scope. A provider
// rejection surfaces as session.ErrSignInFailed and leaves the session
// anonymous with an empty scope.
func (c *Console) SignIn(ctx context.Context, role policy.Role, tenantID string) (*session.Identity, error) {
	identity, err := c.sess.SignIn(ctx, role, tenantID)
	if err != nil {
		_ = c.scope.Recompute(ctx, nil)
		return nil, err
	}
	if err := c.scope.Recompute(ctx, identity); err != nil {
		return identity, err
	}
	return identity, nil
}

// SignOut clears the session and resets the scope unconditionally.
func (c *Console) SignOut(ctx context.Context) {
	c.sess.SignOut(ctx)
	_ = c.scope.Recompute(ctx, nil)
	c.events.Publish(Event{Type: EventSignedOut})
}

// SwitchTenant changes the active tenant. scope.ErrUnauthorized and
// directory.ErrTenantNotFound propagate untouched.
func (c *Console) SwitchTenant(ctx context.Context, tenantID string) (*directory.Tenant, error) {
	t, err := c.scope.Switch(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	c.events.Publish(Event{Type: EventTenantSwitched, TenantID: t.ID})
	return t, nil
}

// RefreshTenants re-fetches the tenant catalog.
func (c *Console) RefreshTenants(ctx context.Context) error {
	if err := c.scope.Refresh(ctx); err != nil {
		return err
	}
	c.events.Publish(Event{Type: EventCatalogRefreshed})
	return nil
}

// CurrentIdentity returns the signed-in identity, or nil.
func (c *Console) CurrentIdentity() *session.Identity {
	return c.sess.CurrentIdentity()
}

// IsAuthenticated reports whether an identity is current.
func (c *Console) IsAuthenticated() bool {
	return c.sess.IsAuthenticated()
}

// IsSessionLoading reports whether a session transition is in flight.
func (c *Console) IsSessionLoading() bool {
	return c.sess.Loading()
}

// CurrentTenant returns the active tenant, or nil when none resolved.
func (c *Console) CurrentTenant() *directory.Tenant {
	return c.scope.Current()
}

// AvailableTenants returns the switchable tenant set in catalog order.
func (c *Console) AvailableTenants() []directory.Tenant {
	return c.scope.Available()
}

// IsTenantLoading reports whether a scope recompute is in flight.
func (c *Console) IsTenantLoading() bool {
	return c.scope.Loading()
}

// Navigation returns the navigation entries for the current role, or nil
// when the session is anonymous.
func (c *Console) Navigation() []policy.NavigationEntry {
	identity := c.sess.CurrentIdentity()
	if identity == nil {
		return nil
	}
	return policy.NavigationFor(identity.Role)
}

// EvaluateAccess runs the access guard against the current session and
// scope snapshots for the requested route.
func (c *Console) EvaluateAccess(routePath string, requiredRoles []policy.Role) guard.Decision {
	return guard.Evaluate(c.sess.Snapshot(), c.scope.Snapshot(), routePath, requiredRoles)
}

// Events exposes the scope-change broadcaster for the events stream.
func (c *Console) Events() *Broadcaster {
	return c.events
}
