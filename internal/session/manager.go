package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/atriumhq/atrium/internal/policy"
)

// identityKey is the session store key holding the serialized identity.
const identityKey = "identity"

// Manager is the identity session state machine:
//
//	Uninitialized → Restoring → {Authenticated, Anonymous}
//	SignIn:  Authenticating → {Authenticated, Anonymous}
//	SignOut: SigningOut → Anonymous (unconditionally)
//
// A new trigger supersedes any in-flight transition: when sign-in and
// sign-out race, only the latest trigger's result lands.
type Manager struct {
	provider Provider
	store    Store

	mu       sync.Mutex
	state    State
	identity *Identity
	gen      uint64
}

func NewManager(provider Provider, store Store) *Manager {
	return &Manager{
		provider: provider,
		store:    store,
		state:    StateUninitialized,
	}
}

// Restore initializes the session from the store. An absent entry resolves
// to Anonymous. A corrupt entry is discarded, the store cleared, and the
// session resolves to Anonymous — parse failures never propagate.
func (m *Manager) Restore(ctx context.Context) State {
	gen := m.begin(StateRestoring)

	raw, ok, err := m.store.Get(ctx, identityKey)
	if err != nil {
		slog.Warn("session restore failed, treating as no session", "error", err)
		return m.finish(gen, StateAnonymous, nil)
	}
	if !ok {
		return m.finish(gen, StateAnonymous, nil)
	}

	identity, err := decodeIdentity(raw)
	if err != nil {
		slog.Warn("discarding corrupt session", "error", err)
		if rmErr := m.store.Remove(ctx, identityKey); rmErr != nil {
			slog.Warn("clearing corrupt session failed", "error", rmErr)
		}
		return m.finish(gen, StateAnonymous, nil)
	}

	return m.finish(gen, StateAuthenticated, identity)
}

// SignIn delegates to the identity provider and, on success, persists the
// returned identity and becomes Authenticated. On rejection the session
// returns to Anonymous and the error is surfaced; there is no retry here.
func (m *Manager) SignIn(ctx context.Context, role policy.Role, tenantID string) (*Identity, error) {
	gen := m.begin(StateAuthenticating)

	identity, err := m.provider.SignIn(ctx, role, tenantID)
	if err != nil {
		m.finish(gen, StateAnonymous, nil)
		return nil, fmt.Errorf("%w: %v", ErrSignInFailed, err)
	}

	raw, err := encodeIdentity(identity)
	if err != nil {
		m.finish(gen, StateAnonymous, nil)
		return nil, fmt.Errorf("%w: %v", ErrSignInFailed, err)
	}
	if err := m.store.Set(ctx, identityKey, raw); err != nil {
		// The session is valid even if persistence failed; it just will
		// not survive a restart.
		slog.Warn("persisting session failed", "error", err)
	}

	if m.finish(gen, StateAuthenticated, identity) != StateAuthenticated {
		// A newer trigger superseded this sign-in.
		return nil, fmt.Errorf("%w: superseded", ErrSignInFailed)
	}
	cp := *identity
	return &cp, nil
}

// SignOut notifies the provider (best-effort), clears the persisted
// session, and becomes Anonymous unconditionally.
func (m *Manager) SignOut(ctx context.Context) {
	gen := m.begin(StateSigningOut)

	if err := m.provider.SignOut(ctx); err != nil {
		slog.Warn("provider sign-out failed", "error", err)
	}
	if err := m.store.Remove(ctx, identityKey); err != nil {
		slog.Warn("clearing persisted session failed", "error", err)
	}

	m.finish(gen, StateAnonymous, nil)
}

// CurrentIdentity returns a copy of the current identity, or nil.
func (m *Manager) CurrentIdentity() *Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	cp := *m.identity
	return &cp
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAuthenticated reports whether an identity is current.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// Loading reports whether a lifecycle transition is in flight.
func (m *Manager) Loading() bool {
	return m.State().Loading()
}

// Snapshot returns a point-in-time view for the access guard.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{State: m.state}
	if m.identity != nil {
		cp := *m.identity
		snap.Identity = &cp
	}
	return snap
}

// begin enters a transitional state and returns the trigger generation.
func (m *Manager) begin(transitional State) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.state = transitional
	m.identity = nil
	return m.gen
}

// finish applies a transition result unless a newer trigger superseded it.
// It returns the state actually current after the call.
func (m *Manager) finish(gen uint64, state State, identity *Identity) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return m.state
	}
	m.state = state
	m.identity = identity
	return m.state
}
