package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/randevuhq/randevu/internal/model"
	"github.com/randevuhq/randevu/internal/notify"
	"github.com/randevuhq/randevu/internal/tenancy"
)

// Store is the slice of the persistence layer the scheduler reads from.
type Store interface {
	ListConfirmedFuture(ctx context.Context, after time.Time) ([]model.Appointment, error)
	ListConfirmedFutureByTenant(ctx context.Context, tenantID string, after time.Time) ([]model.Appointment, error)
	GetClient(ctx context.Context, id string) (model.Client, error)
}

// JobKey identifies one pending reminder. An appointment carries one
// job per configured offset.
type JobKey struct {
	AppointmentID string
	OffsetLabel   string
}

type job struct {
	key      JobKey
	tenantID string
	phone    string
	fireAt   time.Time
	message  string
}

type Config struct {
	Offsets     []Offset
	Location    *time.Location
	MeetingLink string
	SendTimeout time.Duration
}

// Scheduler keeps the reminder job table in memory and delivers
// messages when their fire times arrive. The job table is never
// persisted; a reconcile rebuilds it from storage.
type Scheduler struct {
	store  Store
	sender notify.Sender
	clock  Clock
	logger *slog.Logger
	cfg    Config

	mu   sync.Mutex
	jobs map[JobKey]job
	wake chan struct{}

	// reconcileMu orders full rebuilds against tenant rebuilds. A full
	// rebuild reads storage and then replaces the whole job table; if a
	// tenant rebuild ran between those two steps its fresher state would
	// be overwritten by the stale snapshot. The write lock spans the full
	// rebuild; tenant rebuilds share the read lock so distinct tenants
	// still reconcile in parallel.
	reconcileMu sync.RWMutex

	tenantMu sync.Mutex
	tenants  map[string]*sync.Mutex
}

func NewScheduler(store Store, sender notify.Sender, clock Clock, logger *slog.Logger, cfg Config) *Scheduler {
	if len(cfg.Offsets) == 0 {
		cfg.Offsets = DefaultOffsets()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Scheduler{
		store:   store,
		sender:  sender,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
		jobs:    make(map[JobKey]job),
		wake:    make(chan struct{}, 1),
		tenants: make(map[string]*sync.Mutex),
	}
}

// Run blocks until ctx is cancelled, sleeping until the earliest
// pending fire time and delivering everything that came due. A wake
// signal from a reconcile re-reads the job table.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		var timerC <-chan time.Time
		var timer *time.Timer
		if next, ok := s.nextFireTime(); ok {
			d := next.Sub(s.clock.Now())
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.mu.Lock()
			n := len(s.jobs)
			s.jobs = make(map[JobKey]job)
			s.mu.Unlock()
			s.logger.Info("reminder scheduler stopped", "dropped_jobs", n)
			return
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			s.fireDue(ctx)
		}
	}
}

// ReconcileAll drops the whole job table and rebuilds it from every
// confirmed future appointment across all tenants.
func (s *Scheduler) ReconcileAll(ctx context.Context) error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	now := s.clock.Now()
	appts, err := s.store.ListConfirmedFuture(ctx, now)
	if err != nil {
		return fmt.Errorf("reconcile all: %w", err)
	}
	jobs := s.buildJobs(ctx, appts, now)

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	s.kick()

	s.logger.Info("reminders reconciled", "scope", "all", "jobs", len(jobs))
	return nil
}

// ReconcileTenant rebuilds only one tenant's jobs. Concurrent calls
// for the same tenant are serialized; other tenants' jobs stay put.
func (s *Scheduler) ReconcileTenant(ctx context.Context, tenantID string) error {
	s.reconcileMu.RLock()
	defer s.reconcileMu.RUnlock()

	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	now := s.clock.Now()
	appts, err := s.store.ListConfirmedFutureByTenant(ctx, tenantID, now)
	if err != nil {
		return fmt.Errorf("reconcile tenant %s: %w", tenantID, err)
	}
	jobs := s.buildJobs(ctx, appts, now)

	s.mu.Lock()
	for key, j := range s.jobs {
		if j.tenantID == tenantID {
			delete(s.jobs, key)
		}
	}
	for key, j := range jobs {
		s.jobs[key] = j
	}
	s.mu.Unlock()
	s.kick()

	s.logger.Info("reminders reconciled", "scope", "tenant", "tenant_id", tenantID, "jobs", len(jobs))
	return nil
}

// FireTimes returns a snapshot of the pending job table.
func (s *Scheduler) FireTimes() map[JobKey]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[JobKey]time.Time, len(s.jobs))
	for key, j := range s.jobs {
		out[key] = j.fireAt
	}
	return out
}

func (s *Scheduler) buildJobs(ctx context.Context, appts []model.Appointment, now time.Time) map[JobKey]job {
	jobs := make(map[JobKey]job)
	for _, a := range appts {
		client, err := s.store.GetClient(ctx, a.ClientID)
		if err != nil {
			s.logger.Warn("skipping reminder, client lookup failed",
				"appointment_id", a.ID, "client_id", a.ClientID, "error", err)
			continue
		}
		for _, j := range s.deriveJobs(a, client, now) {
			jobs[j.key] = j
		}
	}
	return jobs
}

func (s *Scheduler) deriveJobs(a model.Appointment, client model.Client, now time.Time) []job {
	var out []job
	for _, off := range s.cfg.Offsets {
		fireAt := a.StartTime.Add(-off.Before)
		if !fireAt.After(now) {
			continue
		}
		out = append(out, job{
			key:      JobKey{AppointmentID: a.ID, OffsetLabel: off.Label},
			tenantID: a.TenantID,
			phone:    client.Phone,
			fireAt:   fireAt,
			message:  s.message(a, off),
		})
	}
	return out
}

func (s *Scheduler) message(a model.Appointment, off Offset) string {
	when := a.StartTime.In(s.cfg.Location).Format("02.01.2006 15:04")
	msg := fmt.Sprintf("Reminder (%s): your appointment is on %s.", off.Label, when)
	if s.cfg.MeetingLink != "" {
		msg += "\nJoin: " + s.cfg.MeetingLink
	}
	return msg
}

func (s *Scheduler) fireDue(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var due []job
	for key, j := range s.jobs {
		if !j.fireAt.After(now) {
			due = append(due, j)
			delete(s.jobs, key)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		s.deliver(ctx, j)
	}
}

func (s *Scheduler) deliver(ctx context.Context, j job) {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	sendCtx = tenancy.WithTenantID(sendCtx, j.tenantID)

	if err := s.sender.Send(sendCtx, j.phone, j.message); err != nil {
		s.logger.Error("reminder delivery failed",
			"appointment_id", j.key.AppointmentID, "offset", j.key.OffsetLabel, "error", err)
		return
	}
	s.logger.Info("reminder delivered",
		"appointment_id", j.key.AppointmentID, "offset", j.key.OffsetLabel)
}

func (s *Scheduler) nextFireTime() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next time.Time
	for _, j := range s.jobs {
		if next.IsZero() || j.fireAt.Before(next) {
			next = j.fireAt
		}
	}
	return next, !next.IsZero()
}

func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) tenantLock(tenantID string) *sync.Mutex {
	s.tenantMu.Lock()
	defer s.tenantMu.Unlock()
	lock, ok := s.tenants[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.tenants[tenantID] = lock
	}
	return lock
}
