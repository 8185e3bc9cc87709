package reminder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/randevuhq/randevu/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	appts   []model.Appointment
	clients map[string]model.Client
	listErr error
}

func (s *fakeStore) ListConfirmedFuture(_ context.Context, after time.Time) ([]model.Appointment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Appointment
	for _, a := range s.appts {
		if a.Status == model.StatusConfirmed && a.StartTime.After(after) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListConfirmedFutureByTenant(ctx context.Context, tenantID string, after time.Time) ([]model.Appointment, error) {
	all, err := s.ListConfirmedFuture(ctx, after)
	if err != nil {
		return nil, err
	}
	var out []model.Appointment
	for _, a := range all {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetClient(_ context.Context, id string) (model.Client, error) {
	c, ok := s.clients[id]
	if !ok {
		return model.Client{}, errors.New("client not found")
	}
	return c, nil
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	phone []string
	err   error
}

func (s *fakeSender) Send(_ context.Context, phone, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.phone = append(s.phone, phone)
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSender) ProviderID() string { return "fake" }

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var testLogger = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestScheduler(store Store, sender *fakeSender, clock Clock) *Scheduler {
	return NewScheduler(store, sender, clock, testLogger, Config{
		Offsets: []Offset{
			{Label: "24h", Before: 24 * time.Hour},
			{Label: "1h", Before: time.Hour},
		},
	})
}

func confirmedAt(id, tenant, client string, start time.Time) model.Appointment {
	return model.Appointment{
		ID:        id,
		TenantID:  tenant,
		ClientID:  client,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		Status:    model.StatusConfirmed,
	}
}

func TestReconcileSkipsPastFireTimes(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	store := &fakeStore{
		// Starts in 90 minutes: the 24h fire time is long past, only
		// the 1h job should be scheduled.
		appts:   []model.Appointment{confirmedAt("a1", "t1", "c1", now.Add(90*time.Minute))},
		clients: map[string]model.Client{"c1": {ID: "c1", Phone: "+905551112233"}},
	}
	s := newTestScheduler(store, &fakeSender{}, clock)

	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}

	fires := s.FireTimes()
	if len(fires) != 1 {
		t.Fatalf("expected 1 job, got %d: %v", len(fires), fires)
	}
	at, ok := fires[JobKey{AppointmentID: "a1", OffsetLabel: "1h"}]
	if !ok {
		t.Fatalf("missing 1h job: %v", fires)
	}
	if want := now.Add(30 * time.Minute); !at.Equal(want) {
		t.Fatalf("fire time = %v, want %v", at, want)
	}
}

func TestReconcileDropsImminentAppointment(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	store := &fakeStore{
		appts:   []model.Appointment{confirmedAt("a1", "t1", "c1", now.Add(30*time.Minute))},
		clients: map[string]model.Client{"c1": {ID: "c1", Phone: "+905551112233"}},
	}
	s := newTestScheduler(store, &fakeSender{}, clock)

	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if fires := s.FireTimes(); len(fires) != 0 {
		t.Fatalf("expected no jobs, got %v", fires)
	}
}

func TestReconcileAllIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	store := &fakeStore{
		appts: []model.Appointment{
			confirmedAt("a1", "t1", "c1", now.Add(48*time.Hour)),
			confirmedAt("a2", "t2", "c2", now.Add(26*time.Hour)),
		},
		clients: map[string]model.Client{
			"c1": {ID: "c1", Phone: "+905551110001"},
			"c2": {ID: "c2", Phone: "+905551110002"},
		},
	}
	s := newTestScheduler(store, &fakeSender{}, clock)

	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	first := s.FireTimes()
	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	second := s.FireTimes()

	if len(first) != 4 || len(second) != len(first) {
		t.Fatalf("job counts differ: first=%d second=%d", len(first), len(second))
	}
	for key, at := range first {
		if got, ok := second[key]; !ok || !got.Equal(at) {
			t.Fatalf("job %v changed: %v -> %v", key, at, got)
		}
	}
}

func TestReconcileTenantRemovesCancelled(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	store := &fakeStore{
		appts: []model.Appointment{
			confirmedAt("a1", "t1", "c1", now.Add(48*time.Hour)),
			confirmedAt("a2", "t2", "c2", now.Add(48*time.Hour)),
		},
		clients: map[string]model.Client{
			"c1": {ID: "c1", Phone: "+905551110001"},
			"c2": {ID: "c2", Phone: "+905551110002"},
		},
	}
	s := newTestScheduler(store, &fakeSender{}, clock)
	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}

	store.appts[0].Status = model.StatusCancelled
	if err := s.ReconcileTenant(context.Background(), "t1"); err != nil {
		t.Fatalf("ReconcileTenant: %v", err)
	}

	fires := s.FireTimes()
	for key := range fires {
		if key.AppointmentID == "a1" {
			t.Fatalf("cancelled appointment still has job %v", key)
		}
	}
	// The other tenant's jobs must be untouched.
	if _, ok := fires[JobKey{AppointmentID: "a2", OffsetLabel: "24h"}]; !ok {
		t.Fatalf("tenant t2 job lost during t1 reconcile: %v", fires)
	}
}

// gatedStore lets a test pause ReconcileAll between its storage read and
// the job table install.
type gatedStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedStore) ListConfirmedFuture(ctx context.Context, after time.Time) ([]model.Appointment, error) {
	out, err := s.fakeStore.ListConfirmedFuture(ctx, after)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return out, err
}

func TestReconcileAllDoesNotResurrectConcurrentCancel(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	inner := &fakeStore{
		appts:   []model.Appointment{confirmedAt("a1", "t1", "c1", now.Add(48*time.Hour))},
		clients: map[string]model.Client{"c1": {ID: "c1", Phone: "+905551112233"}},
	}
	store := &gatedStore{
		fakeStore: inner,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	s := newTestScheduler(store, &fakeSender{}, clock)

	allDone := make(chan struct{})
	go func() {
		defer close(allDone)
		if err := s.ReconcileAll(context.Background()); err != nil {
			t.Errorf("ReconcileAll: %v", err)
		}
	}()

	// The full rebuild has read its snapshot and is now paused. Cancel
	// the appointment and reconcile the tenant while it is in flight.
	<-store.entered
	inner.appts[0].Status = model.StatusCancelled

	tenantDone := make(chan struct{})
	go func() {
		defer close(tenantDone)
		if err := s.ReconcileTenant(context.Background(), "t1"); err != nil {
			t.Errorf("ReconcileTenant: %v", err)
		}
	}()

	// The tenant reconcile must wait for the paused full rebuild rather
	// than finish and have its result overwritten by the stale snapshot.
	select {
	case <-tenantDone:
		t.Fatal("ReconcileTenant finished while ReconcileAll was mid-rebuild")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-allDone
	<-tenantDone

	for key := range s.FireTimes() {
		if key.AppointmentID == "a1" {
			t.Fatalf("cancelled appointment resurrected with job %v", key)
		}
	}
}

func TestFireDueDeliversAndRemoves(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	sender := &fakeSender{}
	store := &fakeStore{
		appts:   []model.Appointment{confirmedAt("a1", "t1", "c1", now.Add(2*time.Hour))},
		clients: map[string]model.Client{"c1": {ID: "c1", Phone: "+905551112233"}},
	}
	s := newTestScheduler(store, sender, clock)
	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}

	clock.advance(65 * time.Minute)
	s.fireDue(context.Background())

	if sender.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.count())
	}
	if sender.phone[0] != "+905551112233" {
		t.Fatalf("delivered to %s", sender.phone[0])
	}
	if fires := s.FireTimes(); len(fires) != 0 {
		t.Fatalf("fired job not removed: %v", fires)
	}
}

func TestFireDueSwallowsSendFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	sender := &fakeSender{err: errors.New("provider down")}
	store := &fakeStore{
		appts:   []model.Appointment{confirmedAt("a1", "t1", "c1", now.Add(90*time.Minute))},
		clients: map[string]model.Client{"c1": {ID: "c1", Phone: "+905551112233"}},
	}
	s := newTestScheduler(store, sender, clock)
	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}

	clock.advance(45 * time.Minute)
	// Must not panic or retry; the job is consumed either way.
	s.fireDue(context.Background())

	if fires := s.FireTimes(); len(fires) != 0 {
		t.Fatalf("failed job left in table: %v", fires)
	}
}

func TestReminderMessageIncludesLocalTimeAndLink(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Istanbul")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	sender := &fakeSender{}
	start := time.Date(2026, 3, 11, 11, 0, 0, 0, time.UTC) // 14:00 Istanbul
	store := &fakeStore{
		appts:   []model.Appointment{confirmedAt("a1", "t1", "c1", start)},
		clients: map[string]model.Client{"c1": {ID: "c1", Phone: "+905551112233"}},
	}
	s := NewScheduler(store, sender, clock, testLogger, Config{
		Offsets:     []Offset{{Label: "24h", Before: 24 * time.Hour}},
		Location:    loc,
		MeetingLink: "https://meet.example.com/room",
	})
	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}

	clock.advance(3 * time.Hour)
	s.fireDue(context.Background())

	if sender.count() != 1 {
		t.Fatalf("expected 1 delivery, got %d", sender.count())
	}
	msg := sender.sent[0]
	if want := "11.03.2026 14:00"; !strings.Contains(msg, want) {
		t.Fatalf("message %q missing local time %q", msg, want)
	}
	if !strings.Contains(msg, "https://meet.example.com/room") {
		t.Fatalf("message %q missing meeting link", msg)
	}
}

func TestBuildJobsSkipsMissingClient(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	store := &fakeStore{
		appts:   []model.Appointment{confirmedAt("a1", "t1", "ghost", now.Add(48*time.Hour))},
		clients: map[string]model.Client{},
	}
	s := newTestScheduler(store, &fakeSender{}, clock)
	if err := s.ReconcileAll(context.Background()); err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if fires := s.FireTimes(); len(fires) != 0 {
		t.Fatalf("expected no jobs for missing client, got %v", fires)
	}
}
