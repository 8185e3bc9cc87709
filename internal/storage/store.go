package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/randevuhq/randevu/libs/db"
)

// Store is the Postgres persistence layer. Methods live in per-table
// files alongside this one.
type Store struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}
