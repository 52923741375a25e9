package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atriumhq/atrium/internal/policy"
)

// Seed is an in-memory Directory with deterministic fixture data. It backs
// the console in dev mode, when no database is configured, and in unit tests.
type Seed struct {
	mu       sync.RWMutex
	tenants  []Tenant
	users    map[string][]User
	metrics  map[string][]Metric
	settings map[string]Settings
}

// NewSeed builds a Seed populated with three demo organizations.
func NewSeed() *Seed {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	tenants := []Tenant{
		{ID: "tenant-1", Name: "Acme Corporation", Slug: "acme", Status: "active", CreatedAt: base, UpdatedAt: base},
		{ID: "tenant-2", Name: "Globex Industries", Slug: "globex", Status: "active", CreatedAt: base.Add(24 * time.Hour), UpdatedAt: base.Add(24 * time.Hour)},
		{ID: "tenant-3", Name: "Initech Partners", Slug: "initech", Status: "active", CreatedAt: base.Add(48 * time.Hour), UpdatedAt: base.Add(48 * time.Hour)},
	}

	s := &Seed{
		tenants:  tenants,
		users:    make(map[string][]User),
		metrics:  make(map[string][]Metric),
		settings: make(map[string]Settings),
	}

	for i, t := range tenants {
		s.users[t.ID] = []User{
			{
				ID:          fmt.Sprintf("user-%d-1", i+1),
				TenantID:    t.ID,
				Email:       fmt.Sprintf("admin@%s.example", t.Slug),
				DisplayName: "Avery Quinn",
				Role:        policy.RoleOrgAdmin,
				Status:      "active",
				CreatedAt:   t.CreatedAt,
			},
			{
				ID:          fmt.Sprintf("user-%d-2", i+1),
				TenantID:    t.ID,
				Email:       fmt.Sprintf("morgan@%s.example", t.Slug),
				DisplayName: "Morgan Reyes",
				Role:        policy.RoleMember,
				Status:      "active",
				CreatedAt:   t.CreatedAt.Add(time.Hour),
			},
			{
				ID:          fmt.Sprintf("user-%d-3", i+1),
				TenantID:    t.ID,
				Email:       fmt.Sprintf("jamie@%s.example", t.Slug),
				DisplayName: "Jamie Park",
				Role:        policy.RoleMember,
				Status:      "pending",
				CreatedAt:   t.CreatedAt.Add(2 * time.Hour),
			},
		}
		s.metrics[t.ID] = []Metric{
			{Key: "active_users", Label: "Active Users", Value: float64(120 + 37*i), Delta: 4.2},
			{Key: "monthly_revenue", Label: "Monthly Revenue", Value: float64(15400 + 2100*i), Delta: 1.8},
			{Key: "open_tickets", Label: "Open Tickets", Value: float64(7 + i), Delta: -12.5},
			{Key: "api_requests", Label: "API Requests", Value: float64(88000 + 9000*i), Delta: 6.1},
		}
		s.settings[t.ID] = Settings{
			TenantID:        t.ID,
			CompanyName:     t.Name,
			SupportEmail:    fmt.Sprintf("support@%s.example", t.Slug),
			Locale:          "en-US",
			NotificationsOn: true,
			UpdatedAt:       t.CreatedAt,
		}
	}

	return s
}

func (s *Seed) ListTenants(ctx context.Context) ([]Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Tenant, len(s.tenants))
	copy(out, s.tenants)
	return out, nil
}

func (s *Seed) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.ID == id {
			cp := t
			return &cp, nil
		}
	}
	return nil, ErrTenantNotFound
}

func (s *Seed) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := s.users[tenantID]
	out := make([]User, len(users))
	copy(out, users)
	return out, nil
}

func (s *Seed) Metrics(ctx context.Context, tenantID string) ([]Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	metrics := s.metrics[tenantID]
	out := make([]Metric, len(metrics))
	copy(out, metrics)
	return out, nil
}

func (s *Seed) GetSettings(ctx context.Context, tenantID string) (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.settings[tenantID]
	if !ok {
		return nil, ErrSettingsNotFound
	}
	return &cfg, nil
}

func (s *Seed) UpdateSettings(ctx context.Context, in Settings) (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settings[in.TenantID]; !ok {
		return nil, ErrSettingsNotFound
	}
	in.UpdatedAt = time.Now().UTC()
	s.settings[in.TenantID] = in
	cp := in
	return &cp, nil
}

// AddTenant appends a tenant to the catalog. Test hook for exercising
// catalog refresh behavior.
func (s *Seed) AddTenant(t Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = append(s.tenants, t)
}

// RemoveTenant deletes a tenant from the catalog. Test hook.
func (s *Seed) RemoveTenant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tenants[:0]
	for _, t := range s.tenants {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.tenants = kept
}
