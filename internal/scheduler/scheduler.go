package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is the work run when a delayed job fires.
type Task func(ctx context.Context)

// Handle identifies a scheduled job so it can be cancelled.
type Handle struct {
	ID   cron.EntryID
	Name string
	At   time.Time
}

// Scheduler runs one-shot delayed tasks on a cron runner.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	jobs   map[cron.EntryID]string // entry → name
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		ctx:    context.Background(),
		jobs:   make(map[cron.EntryID]string),
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
}

// Start begins the cron scheduler. Blocks until context is cancelled.
// Jobs still pending at shutdown are dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped", "dropped", s.Pending())
	return ctx.Err()
}

// After runs task once after delay. A non-positive delay runs it right
// away on its own goroutine. After never blocks on the task.
func (s *Scheduler) After(delay time.Duration, name string, task Task) Handle {
	if delay <= 0 {
		go s.run(name, task)
		return Handle{Name: name, At: s.now()}
	}

	at := s.now().Add(delay)
	s.mu.Lock()
	defer s.mu.Unlock()

	var id cron.EntryID
	id = s.cron.Schedule(once{at: at}, cron.FuncJob(func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		s.cron.Remove(id)
		s.run(name, task)
	}))
	s.jobs[id] = name
	s.logger.Info("job scheduled", "job", name, "at", at.Format(time.RFC3339))
	return Handle{ID: id, Name: name, At: at}
}

// Cancel removes a pending job. Cancelling a fired or unknown job is a no-op.
func (s *Scheduler) Cancel(h Handle) {
	if h.ID == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[h.ID]; !ok {
		return
	}
	delete(s.jobs, h.ID)
	s.cron.Remove(h.ID)
	s.logger.Info("job cancelled", "job", h.Name)
}

// Pending returns the number of jobs that have not fired yet.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) run(name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job", name, "panic", r)
		}
	}()
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Info("job fired", "job", name)
	task(ctx)
}

// once is a cron.Schedule that fires a single time.
type once struct {
	at time.Time
}

func (o once) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}
