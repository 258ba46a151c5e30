package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"

	"gorm.io/gorm"
)

type AssetModel struct {
	Slug      string `gorm:"primaryKey;size:64"`
	Name      string `gorm:"size:128;not null"`
	Symbol    string `gorm:"size:32;not null"`
	CreatedAt time.Time
}

func (AssetModel) TableName() string { return "assets" }

type SubscriberModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Email     string `gorm:"size:255;not null;uniqueIndex"`
	CreatedAt time.Time
}

func (SubscriberModel) TableName() string { return "subscribers" }

type SubscriptionModel struct {
	ID           uint   `gorm:"primaryKey"`
	SubscriberID string `gorm:"size:64;not null;uniqueIndex:idx_sub_asset,priority:1"`
	AssetSlug    string `gorm:"size:64;not null;uniqueIndex:idx_sub_asset,priority:2"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
}

func (SubscriptionModel) TableName() string { return "subscriptions" }

// Models lists every gorm model owned by this package, for migrations.
func Models() []interface{} {
	return []interface{}{&ScoreModel{}, &AssetModel{}, &SubscriberModel{}, &SubscriptionModel{}}
}

type directoryRepository struct {
	db *gorm.DB
}

var _ repository.Directory = (*directoryRepository)(nil)

func NewDirectoryRepository(db *gorm.DB) *directoryRepository {
	return &directoryRepository{db: db}
}

// FindAssets returns the known assets among slugs, in the order requested.
// Unknown slugs are skipped; if none are known ErrAssetNotFound is returned.
func (r *directoryRepository) FindAssets(ctx context.Context, slugs []string) ([]models.Asset, error) {
	var rows []AssetModel
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find assets: %w", err)
	}
	bySlug := make(map[string]AssetModel, len(rows))
	for _, a := range rows {
		bySlug[a.Slug] = a
	}

	out := make([]models.Asset, 0, len(rows))
	for _, s := range slugs {
		if a, ok := bySlug[s]; ok {
			out = append(out, models.Asset{Slug: a.Slug, Name: a.Name, Symbol: a.Symbol})
			delete(bySlug, s)
		}
	}
	if len(out) == 0 {
		return nil, repository.ErrAssetNotFound
	}
	return out, nil
}

func (r *directoryRepository) FindRecipient(ctx context.Context, userID string) (string, error) {
	var sub SubscriberModel
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", repository.ErrRecipientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find recipient: %w", err)
	}
	return sub.Email, nil
}

type subscriptionRow struct {
	AssetSlug string
	Name      string
	Symbol    string
	Email     string
}

// ActiveSubscriptions groups active subscriptions by asset, ordered by slug.
func (r *directoryRepository) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var rows []subscriptionRow
	err := r.db.WithContext(ctx).
		Table("subscriptions").
		Select("subscriptions.asset_slug, assets.name, assets.symbol, subscribers.email").
		Joins("JOIN assets ON assets.slug = subscriptions.asset_slug").
		Joins("JOIN subscribers ON subscribers.id = subscriptions.subscriber_id").
		Where("subscriptions.active = ?", true).
		Order("subscriptions.asset_slug, subscribers.email").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("active subscriptions: %w", err)
	}

	byAsset := make(map[string]*models.Subscription)
	for _, row := range rows {
		s, ok := byAsset[row.AssetSlug]
		if !ok {
			s = &models.Subscription{Asset: models.Asset{Slug: row.AssetSlug, Name: row.Name, Symbol: row.Symbol}}
			byAsset[row.AssetSlug] = s
		}
		s.Recipients = append(s.Recipients, row.Email)
	}

	out := make([]models.Subscription, 0, len(byAsset))
	for _, s := range byAsset {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset.Slug < out[j].Asset.Slug })
	return out, nil
}
