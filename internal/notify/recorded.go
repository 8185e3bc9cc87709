package notify

import (
	"context"
	"log/slog"

	"github.com/randevuhq/randevu/internal/tenancy"
)

// Record is one delivery attempt, persisted for operational visibility.
type Record struct {
	TenantID  string
	Recipient string
	Body      string
	Provider  string
	Status    string
	Error     string
}

// RecordStore persists delivery attempts.
type RecordStore interface {
	InsertNotification(ctx context.Context, rec Record) error
}

// RecordedSender wraps a Sender and writes every attempt to storage.
// Recording failures are logged and ignored; the wrapped result is returned
// unchanged so caller-visible delivery semantics stay intact.
type RecordedSender struct {
	next   Sender
	store  RecordStore
	logger *slog.Logger
}

func NewRecordedSender(next Sender, store RecordStore, logger *slog.Logger) *RecordedSender {
	return &RecordedSender{next: next, store: store, logger: logger}
}

func (s *RecordedSender) ProviderID() string {
	return s.next.ProviderID()
}

func (s *RecordedSender) Send(ctx context.Context, phone string, text string) error {
	sendErr := s.next.Send(ctx, phone, text)

	rec := Record{
		Recipient: phone,
		Body:      text,
		Provider:  s.next.ProviderID(),
		Status:    "sent",
	}
	if tenantID, ok := tenancy.TenantIDFromContext(ctx); ok {
		rec.TenantID = tenantID
	}
	if sendErr != nil {
		rec.Status = "failed"
		rec.Error = sendErr.Error()
	}
	if err := s.store.InsertNotification(ctx, rec); err != nil {
		s.logger.Error("failed to persist notification record", "err", err)
	}
	return sendErr
}
