package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atriumhq/atrium/internal/policy"
)

// Provider is the external identity provider collaborator. Credential
// verification mechanics live behind this interface; the session layer only
// sees a resolved identity or a failure.
type Provider interface {
	// SignIn resolves a sign-in attempt to an identity. A rejection is
	// reported as an error wrapping ErrSignInFailed.
	SignIn(ctx context.Context, role policy.Role, tenantID string) (*Identity, error)
	// SignOut notifies the provider that the session ended. Best-effort:
	// callers proceed with local clearing regardless of the result.
	SignOut(ctx context.Context) error
}

// MockProvider fabricates identities for the console's demo sign-in. When
// KnownTenants is non-empty, sign-in attempts against other tenants are
// rejected the way a real provider rejects a bad role/tenant combination.
type MockProvider struct {
	KnownTenants map[string]bool
}

func NewMockProvider(tenantIDs ...string) *MockProvider {
	known := make(map[string]bool, len(tenantIDs))
	for _, id := range tenantIDs {
		known[id] = true
	}
	return &MockProvider{KnownTenants: known}
}

func (p *MockProvider) SignIn(ctx context.Context, role policy.Role, tenantID string) (*Identity, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrSignInFailed, string(role))
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrSignInFailed)
	}
	if len(p.KnownTenants) > 0 && !p.KnownTenants[tenantID] {
		return nil, fmt.Errorf("%w: unknown tenant %q", ErrSignInFailed, tenantID)
	}

	return &Identity{
		ID:           uuid.NewString(),
		DisplayName:  fmt.Sprintf("Demo %s", role.DisplayName()),
		Email:        fmt.Sprintf("%s@demo.example", string(role)),
		Role:         role,
		HomeTenantID: tenantID,
		Status:       StatusActive,
	}, nil
}

func (p *MockProvider) SignOut(ctx context.Context) error {
	return nil
}
