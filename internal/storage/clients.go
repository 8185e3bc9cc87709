package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/randevuhq/randevu/internal/model"
)

// EnsureClient returns the tenant's client with the given phone,
// creating one on first contact. Concurrent first contacts race on the
// (tenant_id, phone) unique constraint; the loser re-reads.
func (s *Store) EnsureClient(ctx context.Context, tenantID, phone, name string) (model.Client, error) {
	c, err := s.findClientByPhone(ctx, tenantID, phone)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Client{}, err
	}

	c = model.Client{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Phone:    phone,
		Name:     name,
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO clients (id, tenant_id, phone, name)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, c.ID, c.TenantID, c.Phone, c.Name).Scan(&c.CreatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return s.findClientByPhone(ctx, tenantID, phone)
		}
		return model.Client{}, err
	}
	return c, nil
}

// FindClientByPhone looks up an existing client without creating one.
func (s *Store) FindClientByPhone(ctx context.Context, tenantID, phone string) (model.Client, error) {
	return s.findClientByPhone(ctx, tenantID, phone)
}

func (s *Store) GetClient(ctx context.Context, id string) (model.Client, error) {
	var c model.Client
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, phone, name, created_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.TenantID, &c.Phone, &c.Name, &c.CreatedAt)
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}

func (s *Store) findClientByPhone(ctx context.Context, tenantID, phone string) (model.Client, error) {
	var c model.Client
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, phone, name, created_at
		FROM clients
		WHERE tenant_id = $1 AND phone = $2
	`, tenantID, phone).Scan(&c.ID, &c.TenantID, &c.Phone, &c.Name, &c.CreatedAt)
	if err != nil {
		return model.Client{}, err
	}
	return c, nil
}
