package usecase

import (
	"context"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptions() []models.Subscription {
	return []models.Subscription{
		{Asset: bitcoin, Recipients: []string{"ana@example.com", "ben@example.com"}},
		{Asset: ethereum, Recipients: []string{"ana@example.com"}},
		{Asset: bitcoin, Recipients: []string{"ben@example.com", "cy@example.com"}},
		{Asset: models.Asset{Slug: "solana"}, Recipients: nil},
	}
}

func TestReportScheduler_OneJobPerAsset(t *testing.T) {
	q := &fakeQueue{}
	dir := &fakeDirectory{subs: subscriptions()}
	s := NewReportScheduler(dir, q, cache.NewMemoryCache(), time.Minute, nil)

	require.NoError(t, s.Run(context.Background()))

	require.Len(t, q.jobs, 2)
	assert.Equal(t, JobTypeReport, q.jobs[0].msgType)
	assert.Equal(t, ReportJobPayload{
		Asset:      bitcoin,
		Recipients: []string{"ana@example.com", "ben@example.com", "cy@example.com"},
	}, q.jobs[0].payload)
	assert.Equal(t, ReportJobPayload{Asset: ethereum, Recipients: []string{"ana@example.com"}}, q.jobs[1].payload)
}

func TestReportScheduler_LockHeldElsewhere(t *testing.T) {
	lock := cache.NewMemoryCache()
	ok, err := lock.TryLock(context.Background(), scheduleLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	q := &fakeQueue{}
	s := NewReportScheduler(&fakeDirectory{subs: subscriptions()}, q, lock, time.Minute, nil)

	require.NoError(t, s.Run(context.Background()))
	assert.Empty(t, q.jobs)
}

func TestReportScheduler_SecondFireInWindowIsSkipped(t *testing.T) {
	q := &fakeQueue{}
	lock := cache.NewMemoryCache()
	dir := &fakeDirectory{subs: subscriptions()}

	require.NoError(t, NewReportScheduler(dir, q, lock, time.Minute, nil).Run(context.Background()))
	require.NoError(t, NewReportScheduler(dir, q, lock, time.Minute, nil).Run(context.Background()))

	assert.Len(t, q.jobs, 2)
}

func TestReportScheduler_Errors(t *testing.T) {
	t.Run("subscriptions", func(t *testing.T) {
		s := NewReportScheduler(&fakeDirectory{err: errBoom}, &fakeQueue{}, nil, 0, nil)
		assert.ErrorIs(t, s.Run(context.Background()), errBoom)
	})

	t.Run("enqueue", func(t *testing.T) {
		s := NewReportScheduler(&fakeDirectory{subs: subscriptions()}, &fakeQueue{err: errBoom}, nil, 0, nil)
		err := s.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "0 of 2")
	})
}

func TestGroupByAsset_Empty(t *testing.T) {
	assert.Empty(t, groupByAsset(nil))
}
