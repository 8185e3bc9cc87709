// Package booking composes appointment writes with their outbox events
// so both the HTTP API and the messaging flow share one transaction
// shape.
package booking

import (
	"context"
	"fmt"

	"github.com/randevuhq/randevu/internal/model"
	"github.com/randevuhq/randevu/internal/outbox"
	"github.com/randevuhq/randevu/internal/storage"
)

type Service struct {
	store *storage.Store
	box   *outbox.Repository
}

func NewService(store *storage.Store, box *outbox.Repository) *Service {
	return &Service{store: store, box: box}
}

// Book inserts the appointment and its booked event atomically. The
// exclusion constraint fires inside the insert; callers match it with
// storage.IsConflict.
func (s *Service) Book(ctx context.Context, appt *model.Appointment) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.store.CreateAppointment(ctx, tx, appt); err != nil {
		return err
	}
	if err := s.box.Insert(ctx, tx, outbox.AppointmentBooked(*appt)); err != nil {
		return fmt.Errorf("outbox insert: %w", err)
	}
	return tx.Commit(ctx)
}

// Cancel marks the appointment cancelled and emits the cancelled event.
// storage.IsNotFound matches an unknown or already cancelled id.
func (s *Service) Cancel(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.CancelAppointment(ctx, tx, tenantID, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := s.box.Insert(ctx, tx, outbox.AppointmentCancelled(appt)); err != nil {
		return model.Appointment{}, fmt.Errorf("outbox insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}
