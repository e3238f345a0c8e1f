package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrBusy is returned by RunNow while another run is in progress.
var ErrBusy = errors.New("schedule: a run is already in progress")

// Job is the work run on every tick.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron schedule. At most one run is in progress
// at a time: a tick that fires while a run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Job
	timeout time.Duration
	running atomic.Bool

	mu    sync.Mutex
	entry cron.EntryID
	spec  string
	ctx   context.Context
}

// New returns a Scheduler running job on spec, a standard five-field cron
// expression evaluated in loc. timeout bounds a single run; zero means no
// bound.
func New(spec string, loc *time.Location, timeout time.Duration, job Job) (*Scheduler, error) {
	logger := slogLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		job:     job,
		timeout: timeout,
		ctx:     context.Background(),
	}
	if err := s.Reschedule(spec, loc); err != nil {
		return nil, err
	}
	return s, nil
}

// Reschedule replaces the schedule. Runs already in progress are not
// interrupted.
func (s *Scheduler) Reschedule(spec string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	full := fmt.Sprintf("CRON_TZ=%s %s", loc.String(), spec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if full == s.spec {
		return nil
	}
	id, err := s.cron.AddFunc(full, s.tick)
	if err != nil {
		return fmt.Errorf("schedule: parse %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry, s.spec = id, full
	slog.Info("schedule: job scheduled", "spec", spec, "tz", loc.String(), "next", s.cron.Entry(id).Schedule.Next(time.Now()))
	return nil
}

// Next returns the next time the job is due.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.entry).Schedule.Next(time.Now())
}

// Run starts the scheduler and blocks until ctx is cancelled. Job contexts
// derive from ctx. Run waits for an in-flight job to return before
// returning itself.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	<-ctx.Done()
	slog.Info("schedule: stopping")
	<-s.cron.Stop().Done()
}

// RunNow runs the job synchronously outside the schedule. It returns
// ErrBusy without running the job when a scheduled or manual run is
// already in progress.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.running.Store(false)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.job(ctx)
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	started := time.Now()
	slog.Info("schedule: job started")
	err := s.RunNow(ctx)
	if errors.Is(err, ErrBusy) {
		slog.Info("schedule: tick skipped, previous run still in progress")
		return
	}
	if err != nil {
		slog.Error("schedule: job failed", "err", err, "elapsed", time.Since(started))
		return
	}
	slog.Info("schedule: job finished", "elapsed", time.Since(started))
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("schedule: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("schedule: "+msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
