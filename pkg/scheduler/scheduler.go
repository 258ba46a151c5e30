package scheduler

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (f JobFunc) Name() string                  { return f.JobName }
func (f JobFunc) Run(ctx context.Context) error { return f.Fn(ctx) }

// Scheduler runs jobs on standard five-field cron expressions. Overlapping
// runs of the same job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	l       *logger.Logger
	timeout time.Duration
	loc     *time.Location
	ctx     context.Context
	cancel  context.CancelFunc
}

type Option func(*Scheduler)

// WithJobTimeout bounds each job run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// WithLocation evaluates schedules in loc instead of UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

func New(l *logger.Logger, opts ...Option) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		l:      l.With(logger.String("component", "scheduler")),
		loc:    time.UTC,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return s
}

// AddJob registers job under schedule and returns its entry id.
func (s *Scheduler) AddJob(schedule string, job Job) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(schedule, func() { s.run(job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s %q: %w", job.Name(), schedule, err)
	}
	s.l.Info("job registered", logger.String("job", job.Name()), logger.String("schedule", schedule))
	return id, nil
}

// Next returns the next activation of an entry.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

// RunNow executes job outside its schedule.
func (s *Scheduler) RunNow(job Job) {
	s.run(job)
}

func (s *Scheduler) run(job Job) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.l.Debug("job running", logger.String("job", job.Name()))
	if err := job.Run(ctx); err != nil {
		s.l.Error("job failed",
			logger.String("job", job.Name()),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return
	}
	s.l.Debug("job completed", logger.String("job", job.Name()), logger.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started")
}

// Stop prevents new runs, cancels running jobs and waits for them to return
// or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
