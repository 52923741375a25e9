// Package scope tracks which tenant's data is currently visible to a
// session: the active tenant, the set of tenants the identity may choose
// among, and the switching rules.
package scope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atriumhq/atrium/internal/directory"
	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/session"
)

// ErrUnauthorized is returned when a session without the switch permission
// attempts to change tenants. Never downgraded to a default tenant.
var ErrUnauthorized = errors.New("unauthorized")

// tenantKey is the session store key holding the last-chosen tenant id.
const tenantKey = "tenant"

// Snapshot is a point-in-time view of the scope, safe to pass to the
// access guard without holding any lock.
type Snapshot struct {
	Current   *directory.Tenant
	Available []directory.Tenant
	Loading   bool
}

// Scope resolves and holds the active tenant for one session. It is fully
// recomputed whenever the session's identity changes; after resolution,
// Switch is the only mutation path for the current tenant.
type Scope struct {
	dir   directory.Directory
	store session.Store

	mu        sync.Mutex
	current   *directory.Tenant
	available []directory.Tenant
	loading   bool
	perms     policy.PermissionSet
	home      string
	bound     bool
	gen       uint64
}

func New(dir directory.Directory, store session.Store) *Scope {
	return &Scope{dir: dir, store: store}
}

// Recompute re-resolves the scope for identity. A nil identity resets the
// scope to empty. Each call supersedes any recompute still in flight: a
// stale catalog fetch never lands after a newer trigger.
//
// For identities allowed to switch tenants, the available set is the full
// catalog and the current tenant is the previously persisted choice when it
// still exists, else the first catalog entry, else nil; the resolved id is
// persisted back so a stale stored choice heals itself. For all other
// identities the available set is empty and the current tenant is pinned to
// the identity's home tenant — or nil when the catalog does not contain it,
// which is a display state, not an error.
func (s *Scope) Recompute(ctx context.Context, identity *session.Identity) error {
	if identity == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.gen++
		s.current = nil
		s.available = nil
		s.loading = false
		s.perms = policy.PermissionSet{}
		s.home = ""
		s.bound = false
		return nil
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	s.perms = policy.PermissionsFor(identity.Role)
	s.home = identity.HomeTenantID
	s.bound = true
	s.mu.Unlock()

	catalog, err := s.dir.ListTenants(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return nil
		}
		s.loading = false
		s.current = nil
		s.available = nil
		return fmt.Errorf("fetching tenant catalog: %w", err)
	}

	var chosen string
	if s.perms.CanSwitchTenants {
		if v, ok, getErr := s.store.Get(ctx, tenantKey); getErr == nil && ok {
			chosen = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.loading = false

	if !s.perms.CanSwitchTenants {
		s.available = nil
		s.current = findTenant(catalog, s.home)
		return nil
	}

	s.available = catalog
	s.current = findTenant(catalog, chosen)
	if s.current == nil && len(catalog) > 0 {
		s.current = &catalog[0]
	}
	if s.current != nil && s.current.ID != chosen {
		if err := s.store.Set(ctx, tenantKey, s.current.ID); err != nil {
			slog.Warn("persisting tenant choice failed", "error", err)
		}
	}
	return nil
}

// Switch changes the current tenant. It fails with ErrUnauthorized when
// the identity lacks the switch permission and with
// directory.ErrTenantNotFound when tenantID is not in the available set;
// in both cases the scope is left unchanged. Calls are serialized: no
// network round-trip happens here beyond persisting the choice.
func (s *Scope) Switch(ctx context.Context, tenantID string) (*directory.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bound || !s.perms.CanSwitchTenants {
		return nil, fmt.Errorf("%w: tenant switching requires global tenant visibility", ErrUnauthorized)
	}

	target := findTenant(s.available, tenantID)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", directory.ErrTenantNotFound, tenantID)
	}

	if err := s.store.Set(ctx, tenantKey, target.ID); err != nil {
		slog.Warn("persisting tenant choice failed", "error", err)
	}
	s.current = target
	cp := *target
	return &cp, nil
}

// Refresh re-fetches the tenant catalog and replaces the available set.
// The current tenant is kept unless it vanished from the refreshed
// catalog, in which case it falls back to the first entry (or nil).
// Refreshing against an unchanged catalog is a no-op for both fields.
func (s *Scope) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if !s.bound {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	gen := s.gen
	s.loading = true
	canSwitch := s.perms.CanSwitchTenants
	home := s.home
	s.mu.Unlock()

	catalog, err := s.dir.ListTenants(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}
	s.loading = false
	if err != nil {
		return fmt.Errorf("refreshing tenant catalog: %w", err)
	}

	if !canSwitch {
		s.available = nil
		s.current = findTenant(catalog, home)
		return nil
	}

	s.available = catalog
	if s.current != nil {
		if kept := findTenant(catalog, s.current.ID); kept != nil {
			s.current = kept
			return nil
		}
	}
	s.current = nil
	if len(catalog) > 0 {
		s.current = &catalog[0]
	}
	if s.current != nil {
		if err := s.store.Set(ctx, tenantKey, s.current.ID); err != nil {
			slog.Warn("persisting tenant choice failed", "error", err)
		}
	}
	return nil
}

// Current returns a copy of the active tenant, or nil when none resolved.
func (s *Scope) Current() *directory.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Available returns a copy of the switchable tenant set, in catalog order.
func (s *Scope) Available() []directory.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]directory.Tenant, len(s.available))
	copy(out, s.available)
	return out
}

// Loading reports whether a recompute or refresh is in flight.
func (s *Scope) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Snapshot returns a point-in-time view for the access guard.
func (s *Scope) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{Loading: s.loading}
	if s.current != nil {
		cp := *s.current
		snap.Current = &cp
	}
	snap.Available = make([]directory.Tenant, len(s.available))
	copy(snap.Available, s.available)
	return snap
}

func findTenant(tenants []directory.Tenant, id string) *directory.Tenant {
	if id == "" {
		return nil
	}
	for i := range tenants {
		if tenants[i].ID == id {
			return &tenants[i]
		}
	}
	return nil
}
