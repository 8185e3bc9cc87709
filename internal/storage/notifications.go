package storage

import (
	"context"

	"github.com/randevuhq/randevu/internal/notify"
)

// InsertNotification records one delivery attempt. Implements
// notify.RecordStore.
func (s *Store) InsertNotification(ctx context.Context, rec notify.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (tenant_id, recipient, body, provider, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.TenantID, rec.Recipient, rec.Body, rec.Provider, rec.Status, rec.Error)
	return err
}
