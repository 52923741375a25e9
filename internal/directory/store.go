package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atriumhq/atrium/internal/platform/database"
)

// Store is the Postgres-backed Directory. Tenant-scoped reads go through
// a connection with the tenant RLS variable set, so a query can never see
// another organization's rows even if a WHERE clause is wrong.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Postgres-backed directory.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListTenants returns the full catalog ordered by creation time. Catalog
// order must be stable: the scope layer defaults to the first entry.
func (s *Store) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, slug, status, created_at, updated_at
		 FROM tenants ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	var t Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, status, created_at, updated_at
		 FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("getting tenant: %w", err)
	}
	return &t, nil
}

func (s *Store) ListUsers(ctx context.Context, tenantID string) ([]User, error) {
	var users []User
	err := database.WithTenantConnection(ctx, s.pool, tenantID, func(ctx context.Context, q database.Querier) error {
		rows, err := q.Query(ctx,
			`SELECT id, tenant_id, email, COALESCE(display_name, ''), role, status, created_at
			 FROM users WHERE tenant_id = $1 ORDER BY created_at, id`,
			tenantID,
		)
		if err != nil {
			return fmt.Errorf("listing users: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u User
			if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.DisplayName, &u.Role, &u.Status, &u.CreatedAt); err != nil {
				return fmt.Errorf("scanning user: %w", err)
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) Metrics(ctx context.Context, tenantID string) ([]Metric, error) {
	var metrics []Metric
	err := database.WithTenantConnection(ctx, s.pool, tenantID, func(ctx context.Context, q database.Querier) error {
		rows, err := q.Query(ctx,
			`SELECT key, label, value, delta
			 FROM tenant_metrics WHERE tenant_id = $1 ORDER BY position`,
			tenantID,
		)
		if err != nil {
			return fmt.Errorf("listing metrics: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m Metric
			if err := rows.Scan(&m.Key, &m.Label, &m.Value, &m.Delta); err != nil {
				return fmt.Errorf("scanning metric: %w", err)
			}
			metrics = append(metrics, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return metrics, nil
}

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*Settings, error) {
	var cfg Settings
	err := database.WithTenantConnection(ctx, s.pool, tenantID, func(ctx context.Context, q database.Querier) error {
		err := q.QueryRow(ctx,
			`SELECT tenant_id, company_name, support_email, locale, notifications_on, updated_at
			 FROM tenant_settings WHERE tenant_id = $1`,
			tenantID,
		).Scan(&cfg.TenantID, &cfg.CompanyName, &cfg.SupportEmail, &cfg.Locale, &cfg.NotificationsOn, &cfg.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSettingsNotFound
		}
		if err != nil {
			return fmt.Errorf("getting settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) UpdateSettings(ctx context.Context, in Settings) (*Settings, error) {
	var out Settings
	err := database.WithTenantConnection(ctx, s.pool, in.TenantID, func(ctx context.Context, q database.Querier) error {
		err := q.QueryRow(ctx,
			`UPDATE tenant_settings
			 SET company_name = $2, support_email = $3, locale = $4, notifications_on = $5, updated_at = now()
			 WHERE tenant_id = $1
			 RETURNING tenant_id, company_name, support_email, locale, notifications_on, updated_at`,
			in.TenantID, in.CompanyName, in.SupportEmail, in.Locale, in.NotificationsOn,
		).Scan(&out.TenantID, &out.CompanyName, &out.SupportEmail, &out.Locale, &out.NotificationsOn, &out.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSettingsNotFound
		}
		if err != nil {
			return fmt.Errorf("updating settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
