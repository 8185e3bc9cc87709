// Package intent turns inbound WhatsApp text into booking actions.
//
// Every message goes through two passes. The first classifies it by
// keyword and answers (availability listing, cancellation, usage hint).
// The second tries to read a concrete date and time out of the raw text
// and, when one parses, books it directly. A message can trigger both.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/randevuhq/randevu/internal/availability"
	"github.com/randevuhq/randevu/internal/model"
	"github.com/randevuhq/randevu/internal/notify"
	"github.com/randevuhq/randevu/internal/reminder"
	"github.com/randevuhq/randevu/internal/storage"
	"github.com/randevuhq/randevu/internal/timeparse"
)

type Store interface {
	EnsureClient(ctx context.Context, tenantID, phone, name string) (model.Client, error)
	FindClientByPhone(ctx context.Context, tenantID, phone string) (model.Client, error)
	ListBusyIntervals(ctx context.Context, tenantID string, start, end time.Time) ([]model.Appointment, error)
	FindNextByClient(ctx context.Context, tenantID, clientID string, after time.Time) (model.Appointment, error)
}

type Booker interface {
	Book(ctx context.Context, appt *model.Appointment) error
	Cancel(ctx context.Context, tenantID, appointmentID string) (model.Appointment, error)
}

type Reconciler interface {
	ReconcileTenant(ctx context.Context, tenantID string) error
}

type Config struct {
	WorkStart   availability.ClockTime
	WorkEnd     availability.ClockTime
	SlotMinutes int
	Location    *time.Location
	MeetingLink string
	MaxListed   int
}

type Router struct {
	store      Store
	booker     Booker
	sender     notify.Sender
	reconciler Reconciler
	parser     *timeparse.Parser
	clock      reminder.Clock
	logger     *slog.Logger
	cfg        Config
}

func NewRouter(store Store, booker Booker, sender notify.Sender, reconciler Reconciler, clock reminder.Clock, logger *slog.Logger, cfg Config) *Router {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 60
	}
	if cfg.MaxListed <= 0 {
		cfg.MaxListed = 10
	}
	return &Router{
		store:      store,
		booker:     booker,
		sender:     sender,
		reconciler: reconciler,
		parser:     timeparse.New(),
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
	}
}

type kind int

const (
	kindBook kind = iota
	kindCancel
	kindAvailability
	kindHelp
)

var bookWords = []string{"book", "reserve", "appointment"}
var cancelWords = []string{"cancel"}
var availabilityWords = []string{"today", "tomorrow", "week", "available", "hour"}

func classify(text string) kind {
	lower := strings.ToLower(text)
	for _, w := range bookWords {
		if strings.Contains(lower, w) {
			return kindBook
		}
	}
	for _, w := range cancelWords {
		if strings.Contains(lower, w) {
			return kindCancel
		}
	}
	for _, w := range availabilityWords {
		if strings.Contains(lower, w) {
			return kindAvailability
		}
	}
	return kindHelp
}

// Handle processes one inbound message for a resolved tenant. Reply
// delivery failures are logged and do not fail the message.
func (r *Router) Handle(ctx context.Context, tenantID, phone, name, text string) error {
	switch classify(text) {
	case kindBook, kindAvailability:
		if err := r.replyAvailability(ctx, tenantID, phone); err != nil {
			return err
		}
	case kindCancel:
		if err := r.cancelNext(ctx, tenantID, phone); err != nil {
			return err
		}
	case kindHelp:
		r.reply(ctx, phone,
			"Hi! Send \"availability\" to see today's free slots, a date and time like \"tomorrow 14:00\" to book, or \"cancel\" to drop your next appointment.")
	}

	return r.tryBookFromText(ctx, tenantID, phone, name, text)
}

func (r *Router) replyAvailability(ctx context.Context, tenantID, phone string) error {
	now := r.clock.Now()
	dayStart, dayEnd := availability.DayWindow(now, r.cfg.Location)

	busyAppts, err := r.store.ListBusyIntervals(ctx, tenantID, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("list busy: %w", err)
	}
	busy := make([]availability.Interval, 0, len(busyAppts))
	for _, a := range busyAppts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}

	slots := availability.ComputeSlots(now.In(r.cfg.Location), r.cfg.WorkStart, r.cfg.WorkEnd, r.cfg.SlotMinutes, r.cfg.Location)
	free := availability.FreeSlots(slots, busy)

	// Past slots are not offerable.
	var upcoming []availability.Interval
	for _, s := range free {
		if s.Start.After(now) {
			upcoming = append(upcoming, s)
		}
	}

	if len(upcoming) == 0 {
		r.reply(ctx, phone, "No availability left today. Send a date and time like \"tomorrow 14:00\" to book another day.")
		return nil
	}

	var b strings.Builder
	b.WriteString("Free slots today:\n")
	for i, s := range upcoming {
		if i == r.cfg.MaxListed {
			break
		}
		fmt.Fprintf(&b, "- %s–%s\n",
			s.Start.In(r.cfg.Location).Format("15:04"),
			s.End.In(r.cfg.Location).Format("15:04"))
	}
	b.WriteString("Reply with a time like \"today 14:00\" to book.")
	r.reply(ctx, phone, b.String())
	return nil
}

func (r *Router) cancelNext(ctx context.Context, tenantID, phone string) error {
	client, err := r.store.FindClientByPhone(ctx, tenantID, phone)
	if err != nil {
		if storage.IsNotFound(err) {
			r.reply(ctx, phone, "You have no upcoming appointment to cancel.")
			return nil
		}
		return fmt.Errorf("find client: %w", err)
	}

	now := r.clock.Now()
	appt, err := r.store.FindNextByClient(ctx, tenantID, client.ID, now)
	if err != nil {
		if storage.IsNotFound(err) {
			r.reply(ctx, phone, "You have no upcoming appointment to cancel.")
			return nil
		}
		return fmt.Errorf("find next: %w", err)
	}

	cancelled, err := r.booker.Cancel(ctx, tenantID, appt.ID)
	if err != nil {
		if storage.IsNotFound(err) {
			r.reply(ctx, phone, "You have no upcoming appointment to cancel.")
			return nil
		}
		return fmt.Errorf("cancel: %w", err)
	}

	r.reply(ctx, phone, fmt.Sprintf("Your appointment on %s has been cancelled.",
		cancelled.StartTime.In(r.cfg.Location).Format("02.01.2006 15:04")))
	r.reconcile(ctx, tenantID)
	return nil
}

// tryBookFromText is the second pass: a best-effort date parse of the
// raw message. No parse means no-op, never an error reply.
func (r *Router) tryBookFromText(ctx context.Context, tenantID, phone, name, text string) error {
	now := r.clock.Now()
	start, ok := r.parser.Parse(text, now, r.cfg.Location)
	if !ok || !start.After(now) {
		return nil
	}
	end := start.Add(time.Duration(r.cfg.SlotMinutes) * time.Minute)

	busyAppts, err := r.store.ListBusyIntervals(ctx, tenantID, start, end)
	if err != nil {
		return fmt.Errorf("list busy: %w", err)
	}
	busy := make([]availability.Interval, 0, len(busyAppts))
	for _, a := range busyAppts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}
	if availability.HasConflict(start, end, busy) {
		r.reply(ctx, phone, "That time is taken. Send \"availability\" to see free slots.")
		return nil
	}

	client, err := r.store.EnsureClient(ctx, tenantID, phone, name)
	if err != nil {
		return fmt.Errorf("ensure client: %w", err)
	}

	appt := model.Appointment{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ClientID:  client.ID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusConfirmed,
		Source:    model.SourceWhatsApp,
	}
	if err := r.booker.Book(ctx, &appt); err != nil {
		if storage.IsConflict(err) {
			r.reply(ctx, phone, "That time is taken. Send \"availability\" to see free slots.")
			return nil
		}
		return fmt.Errorf("book: %w", err)
	}

	msg := fmt.Sprintf("Booked! Your appointment is on %s.",
		start.In(r.cfg.Location).Format("02.01.2006 15:04"))
	if r.cfg.MeetingLink != "" {
		msg += "\nJoin: " + r.cfg.MeetingLink
	}
	r.reply(ctx, phone, msg)
	r.reconcile(ctx, tenantID)
	return nil
}

func (r *Router) reply(ctx context.Context, phone, text string) {
	if err := r.sender.Send(ctx, phone, text); err != nil {
		r.logger.Error("reply delivery failed", "phone", phone, "error", err)
	}
}

func (r *Router) reconcile(ctx context.Context, tenantID string) {
	if err := r.reconciler.ReconcileTenant(ctx, tenantID); err != nil {
		r.logger.Error("reminder reconcile failed", "tenant_id", tenantID, "error", err)
	}
}
