package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/randevuhq/randevu/internal/model"
)

func (s *Store) CreateTenant(ctx context.Context, tx pgx.Tx, t *model.Tenant) error {
	return tx.QueryRow(ctx, `
		INSERT INTO tenants (id, name, tenant_key)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, t.ID, t.Name, t.TenantKey).Scan(&t.CreatedAt)
}

func (s *Store) FindTenantByKey(ctx context.Context, key string) (model.Tenant, error) {
	var t model.Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, tenant_key, created_at
		FROM tenants
		WHERE tenant_key = $1
	`, key).Scan(&t.ID, &t.Name, &t.TenantKey, &t.CreatedAt)
	if err != nil {
		return model.Tenant{}, err
	}
	return t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (model.Tenant, error) {
	var t model.Tenant
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, tenant_key, created_at
		FROM tenants
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.TenantKey, &t.CreatedAt)
	if err != nil {
		return model.Tenant{}, err
	}
	return t, nil
}
