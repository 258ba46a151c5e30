package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/cache"
	applogger "CoinPulse/pkg/logger"
)

// historyDepth is how many rows are cached per asset; smaller limits are
// served from the same entry.
const historyDepth = 365

// ScoreHistory serves an asset's score history through a short-lived cache.
// It also implements repository.ScoreRepository so the pipeline can append
// through it and keep the cache consistent.
type ScoreHistory struct {
	repo  repository.ScoreRepository
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

var _ repository.ScoreRepository = (*ScoreHistory)(nil)

// NewScoreHistory wraps repo. A nil cache reads straight from repo.
func NewScoreHistory(repo repository.ScoreRepository, c cache.Service, ttl time.Duration, l *applogger.Logger) *ScoreHistory {
	if l == nil {
		l = applogger.Nop()
	}
	return &ScoreHistory{repo: repo, cache: c, ttl: ttl, l: l}
}

// Latest returns up to limit rows newest first, plus the change between the
// two most recent rows when there are at least two.
func (h *ScoreHistory) Latest(ctx context.Context, assetSlug string, limit int) (models.ScoreHistory, error) {
	if limit <= 0 || limit > historyDepth {
		limit = historyDepth
	}
	entries, err := h.load(ctx, assetSlug)
	if err != nil {
		return models.ScoreHistory{}, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := models.ScoreHistory{AssetSlug: assetSlug, Entries: entries}
	if len(entries) >= 2 {
		d := entries[0].AggregateScore - entries[1].AggregateScore
		nd := entries[0].NormalizedScore - entries[1].NormalizedScore
		out.Delta, out.NormalizedDelta = &d, &nd
	}
	return out, nil
}

func (h *ScoreHistory) load(ctx context.Context, assetSlug string) ([]models.AggregateScore, error) {
	read := func(ctx context.Context) ([]models.AggregateScore, error) {
		rows, err := h.repo.History(ctx, assetSlug, historyDepth)
		if err != nil {
			return nil, fmt.Errorf("load score history for %s: %w", assetSlug, err)
		}
		if rows == nil {
			rows = []models.AggregateScore{}
		}
		return rows, nil
	}
	if h.cache == nil {
		return read(ctx)
	}
	return cache.GetOrLoad(ctx, h.cache, historyKey(assetSlug), h.ttl, read)
}

// Append writes through to the repository and drops the cached history.
func (h *ScoreHistory) Append(ctx context.Context, score *models.AggregateScore) error {
	if err := h.repo.Append(ctx, score); err != nil {
		return err
	}
	h.invalidate(ctx, score.AssetSlug)
	return nil
}

func (h *ScoreHistory) History(ctx context.Context, assetSlug string, limit int) ([]models.AggregateScore, error) {
	res, err := h.Latest(ctx, assetSlug, limit)
	if err != nil {
		return nil, err
	}
	return res.Entries, nil
}

func (h *ScoreHistory) invalidate(ctx context.Context, assetSlug string) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(ctx, historyKey(assetSlug)); err != nil {
		h.l.Warn("invalidate score history cache failed",
			applogger.String("asset", assetSlug),
			applogger.Error(err))
	}
}

func historyKey(assetSlug string) string {
	return cache.GenerateKeyWithParams("scores", "history", assetSlug)
}
