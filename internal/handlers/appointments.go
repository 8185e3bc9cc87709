package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/randevuhq/randevu/internal/availability"
	"github.com/randevuhq/randevu/internal/booking"
	"github.com/randevuhq/randevu/internal/model"
	"github.com/randevuhq/randevu/internal/notify"
	"github.com/randevuhq/randevu/internal/storage"
	"github.com/randevuhq/randevu/internal/tenancy"
)

type ScheduleConfig struct {
	WorkStart   availability.ClockTime
	WorkEnd     availability.ClockTime
	SlotMinutes int
	Location    *time.Location
	MeetingLink string
}

type AppointmentHandler struct {
	store  *storage.Store
	booker *booking.Service
	sched  Reconciler
	sender notify.Sender
	logger *slog.Logger
	cfg    ScheduleConfig
}

func NewAppointmentHandler(store *storage.Store, booker *booking.Service, sched Reconciler, sender notify.Sender, logger *slog.Logger, cfg ScheduleConfig) *AppointmentHandler {
	if cfg.SlotMinutes <= 0 {
		cfg.SlotMinutes = 60
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &AppointmentHandler{
		store:  store,
		booker: booker,
		sched:  sched,
		sender: sender,
		logger: logger,
		cfg:    cfg,
	}
}

type createAppointmentRequest struct {
	ClientPhone string `json:"client_phone"`
	ClientName  string `json:"client_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

type appointmentResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ClientID  string    `json:"client_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func toResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse(a)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	appts, err := h.store.ListByTenant(r.Context(), tenantID, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeAppointments(w, appts)
}

func (h *AppointmentHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	appts, err := h.store.ListUpcoming(r.Context(), tenantID, time.Now().UTC(), 50)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeAppointments(w, appts)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	if req.ClientPhone == "" || strings.TrimSpace(req.StartTime) == "" {
		http.Error(w, "client_phone and start_time required", http.StatusBadRequest)
		return
	}

	start, err := h.parseTime(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	end := start.Add(time.Duration(h.cfg.SlotMinutes) * time.Minute)
	if strings.TrimSpace(req.EndTime) != "" {
		end, err = h.parseTime(req.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
	}
	if !start.Before(end) {
		http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	busyAppts, err := h.store.ListBusyIntervals(ctx, tenantID, start, end)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	busy := make([]availability.Interval, 0, len(busyAppts))
	for _, a := range busyAppts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}
	if availability.HasConflict(start, end, busy) {
		http.Error(w, "time slot is already booked", http.StatusConflict)
		return
	}

	client, err := h.store.EnsureClient(ctx, tenantID, req.ClientPhone, strings.TrimSpace(req.ClientName))
	if err != nil {
		http.Error(w, "failed to resolve client", http.StatusInternalServerError)
		return
	}

	appt := model.Appointment{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ClientID:  client.ID,
		StartTime: start,
		EndTime:   end,
		Status:    model.StatusConfirmed,
		Source:    model.SourceManual,
	}
	if err := h.booker.Book(ctx, &appt); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot is already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	confirmation := fmt.Sprintf("Your appointment is confirmed for %s.",
		start.In(h.cfg.Location).Format("02.01.2006 15:04"))
	if h.cfg.MeetingLink != "" {
		confirmation += "\nJoin: " + h.cfg.MeetingLink
	}
	h.notifyClient(r, client.Phone, confirmation)

	if err := h.sched.ReconcileTenant(ctx, tenantID); err != nil {
		h.logger.Error("reminder reconcile after booking failed", "tenant_id", tenantID, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "appointment id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	appt, err := h.booker.Cancel(ctx, tenantID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	if client, err := h.store.GetClient(ctx, appt.ClientID); err == nil {
		h.notifyClient(r, client.Phone, fmt.Sprintf("Your appointment on %s has been cancelled.",
			appt.StartTime.In(h.cfg.Location).Format("02.01.2006 15:04")))
	}

	if err := h.sched.ReconcileTenant(ctx, tenantID); err != nil {
		h.logger.Error("reminder reconcile after cancel failed", "tenant_id", tenantID, "err", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(toResponse(appt))
}

// Slots returns the free slots for a date (default today, tenant zone).
func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	day := time.Now().In(h.cfg.Location)
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.cfg.Location)
		if err != nil {
			http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	dayStart, dayEnd := availability.DayWindow(day, h.cfg.Location)
	busyAppts, err := h.store.ListBusyIntervals(r.Context(), tenantID, dayStart, dayEnd)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	busy := make([]availability.Interval, 0, len(busyAppts))
	for _, a := range busyAppts {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.EndTime})
	}

	slots := availability.ComputeSlots(day, h.cfg.WorkStart, h.cfg.WorkEnd, h.cfg.SlotMinutes, h.cfg.Location)
	free := availability.FreeSlots(slots, busy)

	out := make([]slotResponse, 0, len(free))
	for _, s := range free {
		out = append(out, slotResponse{Start: s.Start, End: s.End})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}

// parseTime accepts RFC3339 or a local wall-clock timestamp in the
// tenant's zone.
func (h *AppointmentHandler) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, h.cfg.Location); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func (h *AppointmentHandler) notifyClient(r *http.Request, phone, text string) {
	if err := h.sender.Send(r.Context(), phone, text); err != nil {
		h.logger.Error("client notification failed", "phone", phone, "err", err)
	}
}

func writeAppointments(w http.ResponseWriter, appts []model.Appointment) {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toResponse(a))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}
