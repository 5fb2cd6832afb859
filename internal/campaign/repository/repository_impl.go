package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/campaign/domain"
	"github.com/smallbiznis/studioledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, campaign *domain.Campaign) error {
	return conn.WithContext(ctx).Create(campaign).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Campaign, error) {
	return r.find(conn.WithContext(ctx).Where("studio_id = ? AND id = ?", studioID, id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Campaign, error) {
	return r.find(db.ForUpdate(conn.WithContext(ctx)).Where("studio_id = ? AND id = ?", studioID, id))
}

func (r *repo) find(q *gorm.DB) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := q.Take(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, studioID snowflake.ID) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	err := conn.WithContext(ctx).
		Where("studio_id = ?", studioID).
		Order("created_at DESC, id DESC").
		Find(&campaigns).Error
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *repo) UpdateStatus(ctx context.Context, conn *gorm.DB, campaign *domain.Campaign, now time.Time) error {
	campaign.UpdatedAt = now
	return conn.WithContext(ctx).
		Model(&domain.Campaign{}).
		Where("studio_id = ? AND id = ?", campaign.StudioID, campaign.ID).
		Updates(map[string]any{
			"status":          campaign.Status,
			"recipient_count": campaign.RecipientCount,
			"sent_count":      campaign.SentCount,
			"failed_count":    campaign.FailedCount,
			"sent_at":         campaign.SentAt,
			"updated_at":      now,
		}).Error
}
