package notify

import "context"

// Sender delivers a text message to a phone number. Delivery is best-effort
// at-most-once: callers treat a returned error as an operational signal only
// and never let it affect booking state.
type Sender interface {
	Send(ctx context.Context, phone string, text string) error
	ProviderID() string
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "whatsapp-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
