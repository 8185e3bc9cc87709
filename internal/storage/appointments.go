package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/randevuhq/randevu/internal/model"
)

const appointmentColumns = `id::text, tenant_id::text, client_id::text, start_time, end_time, status, source, created_at`

// CreateAppointment inserts inside the caller's transaction so the
// outbox row commits atomically with it. A double booking surfaces as
// an error matched by IsConflict.
func (s *Store) CreateAppointment(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments (id, tenant_id, client_id, start_time, end_time, status, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, appt.ID, appt.TenantID, appt.ClientID, appt.StartTime, appt.EndTime, appt.Status, appt.Source).
		Scan(&appt.CreatedAt)
}

// CancelAppointment marks a confirmed appointment cancelled. IsNotFound
// matches both an unknown id and one that is already cancelled.
func (s *Store) CancelAppointment(ctx context.Context, tx pgx.Tx, tenantID, appointmentID string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled'
		WHERE id = $1 AND tenant_id = $2 AND status = 'confirmed'
		RETURNING `+appointmentColumns+`
	`, appointmentID, tenantID)
	return scanAppointment(row)
}

func (s *Store) GetAppointment(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND tenant_id = $2
	`, appointmentID, tenantID)
	return scanAppointment(row)
}

func (s *Store) ListByTenant(ctx context.Context, tenantID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *Store) ListUpcoming(ctx context.Context, tenantID string, after time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND status = 'confirmed' AND start_time > $2
		ORDER BY start_time ASC
		LIMIT $3
	`, tenantID, after, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// ListBusyIntervals returns the tenant's confirmed appointments that
// overlap [start, end).
func (s *Store) ListBusyIntervals(ctx context.Context, tenantID string, start, end time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
			AND status = 'confirmed'
			AND start_time < $3
			AND end_time > $2
		ORDER BY start_time ASC
	`, tenantID, start, end)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *Store) ListConfirmedFuture(ctx context.Context, after time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed' AND start_time > $1
		ORDER BY start_time ASC
	`, after)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *Store) ListConfirmedFutureByTenant(ctx context.Context, tenantID string, after time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND status = 'confirmed' AND start_time > $2
		ORDER BY start_time ASC
	`, tenantID, after)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// FindNextByClient returns the client's earliest confirmed appointment
// after the given instant.
func (s *Store) FindNextByClient(ctx context.Context, tenantID, clientID string, after time.Time) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND client_id = $2 AND status = 'confirmed' AND start_time > $3
		ORDER BY start_time ASC
		LIMIT 1
	`, tenantID, clientID, after)
	return scanAppointment(row)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.ClientID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Source,
		&a.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
