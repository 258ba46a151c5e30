package usecase

import (
	"context"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ethereum = models.Asset{Slug: "ethereum", Name: "Ethereum", Symbol: "ETH"}

func newWelcomeFixture(q *fakeQueue) (*pipelineFixture, *WelcomeReport) {
	fx := newPipelineFixture()
	fx.store.records["ethereum"] = append(
		seriesFor("ethereum", "price_usd", testNow, 3500, -4),
		seriesFor("ethereum", "marketcap_usd", testNow, 4.2e11, -4)...)
	dir := &fakeDirectory{
		assets:     map[string]models.Asset{"bitcoin": bitcoin, "ethereum": ethereum},
		recipients: map[string]string{"u-1": "new@example.com"},
	}
	var qs *WelcomeReport
	if q != nil {
		qs = NewWelcomeReport(fx.pipeline, dir, q, 365*24*time.Hour, time.Minute, nil)
	} else {
		qs = NewWelcomeReport(fx.pipeline, dir, nil, 365*24*time.Hour, time.Minute, nil)
	}
	return fx, qs
}

func TestWelcomeReport_AllAssetsInOneDocument(t *testing.T) {
	fx, w := newWelcomeFixture(nil)

	res, err := w.Run(context.Background(), "u-1", []string{"bitcoin", "ethereum"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.Partial)
	assert.Equal(t, models.StageDone, res.Debug.Stage)
	require.NotNil(t, res.Score)
	assert.Equal(t, "bitcoin", res.Score.AssetSlug)
	assert.Equal(t, testNow.Add(-365*24*time.Hour), fx.store.from)

	require.Len(t, fx.composer.welcomes, 1)
	doc := fx.composer.welcomes[0]
	assert.Equal(t, "new@example.com", doc.Recipient)
	require.Len(t, doc.Assets, 2)
	assert.Equal(t, "Bitcoin", doc.Assets[0].Asset.Name)
	assert.Len(t, doc.Assets[1].Sections, 2)

	assert.Len(t, fx.mailer.welcomes, 1)
	assert.Empty(t, fx.scores.appended, "welcome runs leave the history alone")
	assert.Len(t, fx.events.events, 2)
	assert.Equal(t, 1, fx.metrics.runs["welcome/success"])
}

func TestWelcomeReport_SkipsFailedAsset(t *testing.T) {
	fx, w := newWelcomeFixture(nil)
	fx.store.err = map[string]error{"ethereum": errBoom}

	res, err := w.Run(context.Background(), "u-1", []string{"bitcoin", "ethereum"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.Partial)
	assert.Contains(t, res.Debug.Error, "boom")
	require.Len(t, fx.composer.welcomes, 1)
	assert.Len(t, fx.composer.welcomes[0].Assets, 1)
	assert.Len(t, fx.mailer.welcomes, 1)
}

func TestWelcomeReport_AllAssetsFail(t *testing.T) {
	fx, w := newWelcomeFixture(nil)
	fx.store.err = map[string]error{"bitcoin": errBoom, "ethereum": errBoom}

	res, err := w.Run(context.Background(), "u-1", []string{"bitcoin", "ethereum"})

	require.ErrorIs(t, err, errBoom)
	assert.False(t, res.Success)
	assert.Empty(t, fx.composer.welcomes)
	assert.Equal(t, 1, fx.metrics.runs["welcome/failed"])
}

func TestWelcomeReport_UnknownRecipientOrAssets(t *testing.T) {
	_, w := newWelcomeFixture(nil)

	_, err := w.Run(context.Background(), "u-404", []string{"bitcoin"})
	assert.ErrorIs(t, err, errRecipientNotFound)
	assert.True(t, IsClientError(err))

	_, err = w.Run(context.Background(), "u-1", []string{"dogecoin"})
	assert.ErrorIs(t, err, errAssetNotFound)
	assert.True(t, IsClientError(err))
}

func TestWelcomeReport_EnqueueUsesQueue(t *testing.T) {
	q := &fakeQueue{}
	fx, w := newWelcomeFixture(q)

	id, err := w.Enqueue(context.Background(), "u-1", []string{"bitcoin", "ethereum"})
	require.NoError(t, err)

	assert.Equal(t, "job-1", id)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, JobTypeWelcome, q.jobs[0].msgType)
	assert.Equal(t, WelcomeJobPayload{UserID: "u-1", AssetSlugs: []string{"bitcoin", "ethereum"}}, q.jobs[0].payload)
	require.Len(t, fx.mailer.notices, 1)
	assert.Len(t, fx.mailer.notices[0], 2)
	assert.Empty(t, fx.composer.welcomes, "the run itself happens in a worker")
}

func TestWelcomeReport_EnqueueRejectsUnknownRecipient(t *testing.T) {
	q := &fakeQueue{}
	fx, w := newWelcomeFixture(q)

	_, err := w.Enqueue(context.Background(), "u-404", []string{"bitcoin"})

	assert.ErrorIs(t, err, errRecipientNotFound)
	assert.Empty(t, q.jobs)
	assert.Empty(t, fx.mailer.notices)
}

func TestWelcomeReport_EnqueueWithoutQueueRunsInBackground(t *testing.T) {
	fx, w := newWelcomeFixture(nil)

	id, err := w.Enqueue(context.Background(), "u-1", []string{"bitcoin"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Eventually(t, func() bool { return fx.mailer.welcomeCount() == 1 }, time.Second, 10*time.Millisecond)
}
