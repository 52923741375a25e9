package directory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/atriumhq/atrium/internal/policy"
)

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrSettingsNotFound = errors.New("settings not found")
	ErrInvalidSlug      = errors.New("invalid tenant slug")
)

// Tenant represents an organization whose data is isolated from other
// organizations'. Tenants are reference data from the console's point of
// view: fetched, never mutated.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is a tenant-scoped member account shown on the console's user pages.
type User struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        policy.Role `json:"role"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Metric is a single KPI card value for a tenant's overview page.
// Delta is the change against the previous period, in percent.
type Metric struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

// Settings holds a tenant's editable console preferences.
type Settings struct {
	TenantID        string    `json:"tenant_id"`
	CompanyName     string    `json:"company_name"`
	SupportEmail    string    `json:"support_email"`
	Locale          string    `json:"locale"`
	NotificationsOn bool      `json:"notifications_on"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Directory is the backing data service the console reads from. All
// tenant-scoped reads take an explicit tenant id; implementations must
// never return rows belonging to another tenant.
type Directory interface {
	// ListTenants returns the full tenant catalog in a stable order.
	ListTenants(ctx context.Context) ([]Tenant, error)
	// GetTenant returns the tenant with the given id, or ErrTenantNotFound.
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	// ListUsers returns the users belonging to tenantID.
	ListUsers(ctx context.Context, tenantID string) ([]User, error)
	// Metrics returns the KPI values for tenantID.
	Metrics(ctx context.Context, tenantID string) ([]Metric, error)
	// GetSettings returns tenantID's settings, or ErrSettingsNotFound.
	GetSettings(ctx context.Context, tenantID string) (*Settings, error)
	// UpdateSettings replaces tenantID's settings.
	UpdateSettings(ctx context.Context, s Settings) (*Settings, error)
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

var reservedSlugs = map[string]bool{
	"api": true, "app": true, "www": true, "admin": true,
	"console": true, "auth": true, "static": true, "assets": true,
}

// ValidateSlug checks that a slug conforms to DNS label rules and is not
// reserved for the console's own surfaces.
func ValidateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: must be 3-63 lowercase alphanumeric characters or hyphens, cannot start/end with hyphen", ErrInvalidSlug)
	}
	if reservedSlugs[slug] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSlug, slug)
	}
	return nil
}
