package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/cache"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/queue"
)

const scheduleLockKey = "scheduler:weekly-reports"

// Locker is the distributed lock the scheduler takes before enqueueing.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

var _ Locker = (cache.Service)(nil)

// ReportScheduler turns active subscriptions into one queued report job per
// asset. Only the replica holding the lock enqueues.
type ReportScheduler struct {
	dir     repository.Directory
	queue   queue.QueueService
	lock    Locker
	lockTTL time.Duration
	l       *applogger.Logger
}

func NewReportScheduler(dir repository.Directory, q queue.QueueService, lock Locker, lockTTL time.Duration, l *applogger.Logger) *ReportScheduler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ReportScheduler{dir: dir, queue: q, lock: lock, lockTTL: lockTTL, l: l}
}

func (s *ReportScheduler) Name() string { return "weekly_reports" }

// Run enqueues the scheduled reports. The lock is left to expire so a
// replica firing slightly later in the same window does not enqueue again.
func (s *ReportScheduler) Run(ctx context.Context) error {
	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, scheduleLockKey, s.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire schedule lock: %w", err)
		}
		if !ok {
			s.l.Info("scheduled reports already claimed by another replica")
			return nil
		}
	}

	subs, err := s.dir.ActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	jobs := groupByAsset(subs)
	var queued int
	for _, job := range jobs {
		id, err := s.queue.EnqueueWithID(ctx, JobTypeReport, job)
		if err != nil {
			s.l.Error("enqueue scheduled report failed",
				applogger.String("asset", job.Asset.Slug),
				applogger.Error(err))
			continue
		}
		queued++
		s.l.Debug("scheduled report queued",
			applogger.String("asset", job.Asset.Slug),
			applogger.String("job_id", id),
			applogger.Int("recipients", len(job.Recipients)))
	}

	s.l.Info("scheduled reports enqueued",
		applogger.Int("subscriptions", len(subs)),
		applogger.Int("queued", queued))
	if queued < len(jobs) {
		return fmt.Errorf("enqueued %d of %d scheduled reports", queued, len(jobs))
	}
	return nil
}

// groupByAsset merges subscriptions of the same asset, keeping first-seen
// order and dropping duplicate or empty recipients.
func groupByAsset(subs []models.Subscription) []ReportJobPayload {
	index := make(map[string]int)
	seen := make(map[string]map[string]bool)
	var out []ReportJobPayload
	for _, sub := range subs {
		slug := sub.Asset.Slug
		if slug == "" {
			continue
		}
		i, ok := index[slug]
		if !ok {
			i = len(out)
			index[slug] = i
			seen[slug] = make(map[string]bool)
			out = append(out, ReportJobPayload{Asset: sub.Asset})
		}
		for _, r := range sub.Recipients {
			if r == "" || seen[slug][r] {
				continue
			}
			seen[slug][r] = true
			out[i].Recipients = append(out[i].Recipients, r)
		}
	}

	kept := out[:0]
	for _, job := range out {
		if len(job.Recipients) > 0 {
			kept = append(kept, job)
		}
	}
	return kept
}
