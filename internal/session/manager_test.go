package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/session"
)

// fakeProvider resolves sign-ins to a fixed identity or error and records
// sign-out notifications.
type fakeProvider struct {
	identity    *session.Identity
	signInErr   error
	signOutErr  error
	signOutSeen int
}

func (p *fakeProvider) SignIn(ctx context.Context, role policy.Role, tenantID string) (*session.Identity, error) {
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	cp := *p.identity
	return &cp, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.signOutSeen++
	return p.signOutErr
}

func orgAdminIdentity() *session.Identity {
	return &session.Identity{
		ID:           "user-7",
		DisplayName:  "Avery Quinn",
		Email:        "avery@acme.example",
		Role:         policy.RoleOrgAdmin,
		HomeTenantID: "tenant-2",
		Status:       session.StatusActive,
	}
}

func TestManager_RestoreEmptyStore(t *testing.T) {
	m := session.NewManager(&fakeProvider{}, session.NewMemoryStore())

	state := m.Restore(context.Background())

	assert.Equal(t, session.StateAnonymous, state)
	assert.False(t, m.IsAuthenticated())
	assert.Nil(t, m.CurrentIdentity())
}

func TestManager_SignInThenRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	provider := &fakeProvider{identity: orgAdminIdentity()}

	m1 := session.NewManager(provider, store)
	signedIn, err := m1.SignIn(ctx, policy.RoleOrgAdmin, "tenant-2")
	require.NoError(t, err)

	// A second manager over the same store restores field-for-field.
	m2 := session.NewManager(provider, store)
	state := m2.Restore(ctx)

	require.Equal(t, session.StateAuthenticated, state)
	assert.Equal(t, signedIn, m2.CurrentIdentity())
}

func TestManager_RestoreCorruptSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "identity", "%%% not a session %%%"))

	m := session.NewManager(&fakeProvider{}, store)
	state := m.Restore(ctx)

	assert.Equal(t, session.StateAnonymous, state)

	// The corrupt entry is cleared: a subsequent read finds nothing.
	_, ok, err := store.Get(ctx, "identity")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_RestoreSchemaDrift(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	// Valid JSON, wrong envelope version.
	require.NoError(t, store.Set(ctx, "identity",
		`{"version":2,"identity":{"id":"u","role":"member","home_tenant_id":"t1","status":"active"}}`))

	m := session.NewManager(&fakeProvider{}, store)
	state := m.Restore(ctx)

	assert.Equal(t, session.StateAnonymous, state)
	_, ok, _ := store.Get(ctx, "identity")
	assert.False(t, ok)
}

func TestManager_SignInFailure(t *testing.T) {
	provider := &fakeProvider{signInErr: errors.New("bad role/tenant combination")}
	m := session.NewManager(provider, session.NewMemoryStore())
	m.Restore(context.Background())

	_, err := m.SignIn(context.Background(), policy.RoleMember, "tenant-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrSignInFailed)
	assert.Equal(t, session.StateAnonymous, m.State())
	assert.Nil(t, m.CurrentIdentity())
}

func TestManager_SignInOverwritesPriorSession(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	provider := &fakeProvider{identity: orgAdminIdentity()}
	m := session.NewManager(provider, store)

	_, err := m.SignIn(ctx, policy.RoleOrgAdmin, "tenant-2")
	require.NoError(t, err)

	second := orgAdminIdentity()
	second.ID = "user-8"
	second.Role = policy.RoleMember
	provider.identity = second

	got, err := m.SignIn(ctx, policy.RoleMember, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, "user-8", got.ID)

	m2 := session.NewManager(provider, store)
	m2.Restore(ctx)
	assert.Equal(t, "user-8", m2.CurrentIdentity().ID)
}

func TestManager_SignOut(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	provider := &fakeProvider{identity: orgAdminIdentity()}
	m := session.NewManager(provider, store)

	_, err := m.SignIn(ctx, policy.RoleOrgAdmin, "tenant-2")
	require.NoError(t, err)
	require.True(t, m.IsAuthenticated())

	m.SignOut(ctx)

	assert.Equal(t, session.StateAnonymous, m.State())
	assert.Nil(t, m.CurrentIdentity())
	assert.Equal(t, 1, provider.signOutSeen)

	// The sign-out write is visible to any subsequent restore.
	m2 := session.NewManager(provider, store)
	assert.Equal(t, session.StateAnonymous, m2.Restore(ctx))
}

func TestManager_SignOutProviderFailureStillClears(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	provider := &fakeProvider{identity: orgAdminIdentity(), signOutErr: errors.New("provider unreachable")}
	m := session.NewManager(provider, store)

	_, err := m.SignIn(ctx, policy.RoleOrgAdmin, "tenant-2")
	require.NoError(t, err)

	m.SignOut(ctx)

	assert.Equal(t, session.StateAnonymous, m.State())
	_, ok, _ := store.Get(ctx, "identity")
	assert.False(t, ok)
}

func TestNamespaced_IsolatesKeys(t *testing.T) {
	ctx := context.Background()
	backing := session.NewMemoryStore()
	a := session.Namespaced(backing, "sid-a")
	b := session.Namespaced(backing, "sid-b")

	require.NoError(t, a.Set(ctx, "identity", "payload-a"))

	_, ok, err := b.Get(ctx, "identity")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := a.Get(ctx, "identity")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload-a", v)
}

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	p := session.NewMockProvider("tenant-1", "tenant-2")

	id, err := p.SignIn(ctx, policy.RoleSuperAdmin, "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, policy.RoleSuperAdmin, id.Role)
	assert.Equal(t, "tenant-1", id.HomeTenantID)
	assert.Equal(t, session.StatusActive, id.Status)
	assert.NotEmpty(t, id.ID)

	_, err = p.SignIn(ctx, policy.RoleMember, "tenant-9")
	assert.ErrorIs(t, err, session.ErrSignInFailed)

	_, err = p.SignIn(ctx, policy.Role("overlord"), "tenant-1")
	assert.ErrorIs(t, err, session.ErrSignInFailed)
}
