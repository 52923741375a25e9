package scope_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/internal/directory"
	"github.com/atriumhq/atrium/internal/policy"
	"github.com/atriumhq/atrium/internal/scope"
	"github.com/atriumhq/atrium/internal/session"
)

func identityWithRole(role policy.Role, homeTenantID string) *session.Identity {
	return &session.Identity{
		ID:           "user-1",
		DisplayName:  "Avery Quinn",
		Email:        "avery@acme.example",
		Role:         role,
		HomeTenantID: homeTenantID,
		Status:       session.StatusActive,
	}
}

func seedTenantIDs(t *testing.T, dir directory.Directory) []string {
	t.Helper()
	tenants, err := dir.ListTenants(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(tenants))
	for i, tn := range tenants {
		ids[i] = tn.ID
	}
	return ids
}

func TestRecompute_PinnedRole(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())

	err := sc.Recompute(ctx, identityWithRole(policy.RoleOrgAdmin, "tenant-1"))
	require.NoError(t, err)

	require.NotNil(t, sc.Current())
	assert.Equal(t, "tenant-1", sc.Current().ID)
	assert.Empty(t, sc.Available())
	assert.False(t, sc.Loading())
}

func TestRecompute_PinnedRole_HomeTenantMissing(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())

	// Home tenant absent from the catalog: no tenant resolved, no error.
	err := sc.Recompute(ctx, identityWithRole(policy.RoleMember, "tenant-gone"))
	require.NoError(t, err)

	assert.Nil(t, sc.Current())
	assert.Empty(t, sc.Available())
}

func TestRecompute_SwitchingRole_DefaultsToFirst(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	ids := seedTenantIDs(t, dir)
	sc := scope.New(dir, session.NewMemoryStore())

	err := sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1"))
	require.NoError(t, err)

	require.NotNil(t, sc.Current())
	assert.Equal(t, ids[0], sc.Current().ID)
	assert.Len(t, sc.Available(), len(ids))
}

func TestRecompute_SwitchingRole_HonorsPersistedChoice(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "tenant", "tenant-3"))

	sc := scope.New(dir, store)
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))

	require.NotNil(t, sc.Current())
	assert.Equal(t, "tenant-3", sc.Current().ID)
}

func TestRecompute_SwitchingRole_StaleChoiceSelfHeals(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	ids := seedTenantIDs(t, dir)
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "tenant", "tenant-withdrawn"))

	sc := scope.New(dir, store)
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))

	require.NotNil(t, sc.Current())
	assert.Equal(t, ids[0], sc.Current().ID)

	// The stale stored id was overwritten with the resolved one.
	v, ok, err := store.Get(ctx, "tenant")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ids[0], v)
}

func TestRecompute_NilIdentityResets(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())

	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))
	require.NotNil(t, sc.Current())

	require.NoError(t, sc.Recompute(ctx, nil))

	assert.Nil(t, sc.Current())
	assert.Empty(t, sc.Available())
	assert.False(t, sc.Loading())
}

func TestSwitch_SuperAdmin(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))
	require.Equal(t, "tenant-1", sc.Current().ID)

	got, err := sc.Switch(ctx, "tenant-2")
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", got.ID)
	assert.Equal(t, "tenant-2", sc.Current().ID)

	// Absent target: surfaced, state unchanged.
	_, err = sc.Switch(ctx, "tenant-9")
	require.Error(t, err)
	assert.ErrorIs(t, err, directory.ErrTenantNotFound)
	assert.Equal(t, "tenant-2", sc.Current().ID)
}

func TestSwitch_NonPrivilegedRoleDenied(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleOrgAdmin, "tenant-1")))

	for _, target := range []string{"tenant-1", "tenant-2", "tenant-9", ""} {
		_, err := sc.Switch(ctx, target)
		require.Error(t, err, "target %q", target)
		assert.ErrorIs(t, err, scope.ErrUnauthorized)
	}
	assert.Equal(t, "tenant-1", sc.Current().ID)
}

func TestSwitch_PersistsChoice(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	store := session.NewMemoryStore()
	sc := scope.New(dir, store)
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))

	_, err := sc.Switch(ctx, "tenant-3")
	require.NoError(t, err)

	// A fresh scope over the same store resolves to the switched tenant.
	sc2 := scope.New(dir, store)
	require.NoError(t, sc2.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))
	assert.Equal(t, "tenant-3", sc2.Current().ID)
}

func TestRefresh_Idempotent(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))

	before := sc.Snapshot()
	require.NoError(t, sc.Refresh(ctx))
	require.NoError(t, sc.Refresh(ctx))
	after := sc.Snapshot()

	assert.Equal(t, before.Current, after.Current)
	assert.Equal(t, before.Available, after.Available)
}

func TestRefresh_PicksUpNewTenants(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	sc := scope.New(dir, session.NewMemoryStore())
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))
	require.Len(t, sc.Available(), 3)

	dir.AddTenant(directory.Tenant{ID: "tenant-4", Name: "Umbrella Holdings", Slug: "umbrella", Status: "active", CreatedAt: time.Now()})
	require.NoError(t, sc.Refresh(ctx))

	assert.Len(t, sc.Available(), 4)
	assert.Equal(t, "tenant-1", sc.Current().ID, "current tenant is kept across refresh")
}

func TestRefresh_CurrentVanishes_FallsBack(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewSeed()
	ids := seedTenantIDs(t, dir)
	sc := scope.New(dir, session.NewMemoryStore())
	require.NoError(t, sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1")))

	_, err := sc.Switch(ctx, ids[2])
	require.NoError(t, err)

	dir.RemoveTenant(ids[2])
	require.NoError(t, sc.Refresh(ctx))

	require.NotNil(t, sc.Current())
	assert.Equal(t, ids[0], sc.Current().ID)
	assert.Len(t, sc.Available(), 2)
}

// gatedDirectory blocks ListTenants until released, to exercise
// supersession of in-flight recomputes.
type gatedDirectory struct {
	inner   directory.Directory
	release chan struct{}
}

func (g *gatedDirectory) ListTenants(ctx context.Context) ([]directory.Tenant, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.ListTenants(ctx)
}

func (g *gatedDirectory) GetTenant(ctx context.Context, id string) (*directory.Tenant, error) {
	return g.inner.GetTenant(ctx, id)
}

func (g *gatedDirectory) ListUsers(ctx context.Context, tenantID string) ([]directory.User, error) {
	return g.inner.ListUsers(ctx, tenantID)
}

func (g *gatedDirectory) Metrics(ctx context.Context, tenantID string) ([]directory.Metric, error) {
	return g.inner.Metrics(ctx, tenantID)
}

func (g *gatedDirectory) GetSettings(ctx context.Context, tenantID string) (*directory.Settings, error) {
	return g.inner.GetSettings(ctx, tenantID)
}

func (g *gatedDirectory) UpdateSettings(ctx context.Context, s directory.Settings) (*directory.Settings, error) {
	return g.inner.UpdateSettings(ctx, s)
}

func TestRecompute_SupersededResultNeverLands(t *testing.T) {
	ctx := context.Background()
	gated := &gatedDirectory{inner: directory.NewSeed(), release: make(chan struct{})}
	sc := scope.New(gated, session.NewMemoryStore())

	done := make(chan error, 1)
	go func() {
		done <- sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1"))
	}()

	// Wait until the first recompute is in flight.
	require.Eventually(t, sc.Loading, time.Second, time.Millisecond)

	// A newer trigger arrives: the session went anonymous.
	require.NoError(t, sc.Recompute(ctx, nil))

	// Release the stale fetch; its result must be discarded.
	close(gated.release)
	require.NoError(t, <-done)

	assert.Nil(t, sc.Current())
	assert.Empty(t, sc.Available())
	assert.False(t, sc.Loading())
}

type failingDirectory struct {
	directory.Directory
}

func (f *failingDirectory) ListTenants(ctx context.Context) ([]directory.Tenant, error) {
	return nil, errors.New("catalog unavailable")
}

func TestRecompute_CatalogFetchFailure(t *testing.T) {
	ctx := context.Background()
	sc := scope.New(&failingDirectory{}, session.NewMemoryStore())

	err := sc.Recompute(ctx, identityWithRole(policy.RoleSuperAdmin, "tenant-1"))

	require.Error(t, err)
	assert.Nil(t, sc.Current())
	assert.Empty(t, sc.Available())
	assert.False(t, sc.Loading())
}
