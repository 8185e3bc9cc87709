package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/randevuhq/randevu/internal/model"
)

func (s *Store) CreateUser(ctx context.Context, tx pgx.Tx, u *model.User) error {
	return tx.QueryRow(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, u.ID, u.TenantID, u.Email, u.PasswordHash, u.Role).Scan(&u.CreatedAt)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, email, password_hash, role, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, email, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}
