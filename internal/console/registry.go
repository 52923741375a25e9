package console

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/directory"
	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/session"
)

// Registry manages the per-session Console instances. Each console gets a
// namespace of the shared session store keyed by its session id, so a
// console dropped from memory (for example across a restart) can be
// rebuilt and restored from persistence.
type Registry struct {
	provider session.Provider
	dir      directory.Directory
	store    session.Store

	mu       sync.RWMutex
	consoles map[string]*Console
}

func NewRegistry(provider session.Provider, dir directory.Directory, store session.Store) *Registry {
	return &Registry{
		provider: provider,
		dir:      dir,
		store:    store,
		consoles: make(map[string]*Console),
	}
}

// SignIn creates a console session: a fresh session id, a namespaced
// store, and a Console signed in through the provider. On rejection
// nothing is registered and the error propagates.
func (r *Registry) SignIn(ctx context.Context, role policy.Role, tenantID string) (string, *Console, error) {
	sid := uuid.NewString()
	c := New(r.provider, r.dir, session.Namespaced(r.store, sid))

	if _, err := c.SignIn(ctx, role, tenantID); err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	r.consoles[sid] = c
	r.mu.Unlock()
	return sid, c, nil
}

// Resolve returns the console for sid. When the console is not in memory
// it is rebuilt from the persisted session; a session that restores to
// anonymous resolves to nothing.
func (r *Registry) Resolve(ctx context.Context, sid string) (*Console, bool) {
	r.mu.RLock()
	c, ok := r.consoles[sid]
	r.mu.RUnlock()
	if ok {
		return c, true
	}

	c = New(r.provider, r.dir, session.Namespaced(r.store, sid))
	c.Restore(ctx)
	if !c.IsAuthenticated() {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.consoles[sid]; ok {
		return existing, true
	}
	r.consoles[sid] = c
	return c, true
}

// Drop signs the console out and removes it from the registry.
func (r *Registry) Drop(ctx context.Context, sid string) {
	r.mu.Lock()
	c, ok := r.consoles[sid]
	delete(r.consoles, sid)
	r.mu.Unlock()
	if ok {
		c.SignOut(ctx)
	}
}

// RefreshAll re-fetches the tenant catalog for every live console. Used
// by the background catalog refresher.
func (r *Registry) RefreshAll(ctx context.Context) {
	r.mu.RLock()
	consoles := make([]*Console, 0, len(r.consoles))
	for _, c := range r.consoles {
		consoles = append(consoles, c)
	}
	r.mu.RUnlock()

	for _, c := range consoles {
		_ = c.RefreshTenants(ctx)
	}
}

// Len returns the number of live console sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consoles)
}
