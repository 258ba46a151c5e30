package repository

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"

	"gorm.io/gorm"
)

// ScoreModel is one row of the append-only score history.
type ScoreModel struct {
	ID               uint                          `gorm:"primaryKey"`
	AssetSlug        string                        `gorm:"size:64;not null;index:idx_scores_asset_date,priority:1"`
	AggregateScore   int                           `gorm:"not null"`
	NormalizedScore  int                           `gorm:"not null"`
	MetricCount      int                           `gorm:"not null"`
	IndividualScores map[string]models.MetricScore `gorm:"type:text;serializer:json"`
	AnalysisDate     time.Time                     `gorm:"not null;index:idx_scores_asset_date,priority:2"`
	CreatedAt        time.Time
}

func (ScoreModel) TableName() string {
	return "aggregate_scores"
}

type scoreRepository struct {
	db *gorm.DB
}

var _ repository.ScoreRepository = (*scoreRepository)(nil)

func NewScoreRepository(db *gorm.DB) *scoreRepository {
	return &scoreRepository{db: db}
}

// Append inserts a new history row. Existing rows are never updated.
func (r *scoreRepository) Append(ctx context.Context, s *models.AggregateScore) error {
	m := ScoreModel{
		AssetSlug:        s.AssetSlug,
		AggregateScore:   s.AggregateScore,
		NormalizedScore:  s.NormalizedScore,
		MetricCount:      s.MetricCount,
		IndividualScores: s.IndividualScores,
		AnalysisDate:     s.AnalysisDate,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("append score: %w", err)
	}
	return nil
}

// History returns up to limit rows, newest first.
func (r *scoreRepository) History(ctx context.Context, assetSlug string, limit int) ([]models.AggregateScore, error) {
	var rows []ScoreModel
	err := r.db.WithContext(ctx).
		Where("asset_slug = ?", assetSlug).
		Order("analysis_date DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}

	out := make([]models.AggregateScore, 0, len(rows))
	for _, m := range rows {
		out = append(out, models.AggregateScore{
			AssetSlug:        m.AssetSlug,
			AggregateScore:   m.AggregateScore,
			NormalizedScore:  m.NormalizedScore,
			MetricCount:      m.MetricCount,
			IndividualScores: m.IndividualScores,
			AnalysisDate:     m.AnalysisDate.UTC(),
		})
	}
	return out, nil
}
