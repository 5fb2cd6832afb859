package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListConfigs(ctx context.Context, db *gorm.DB, studioID snowflake.ID) ([]domain.GatewayConfig, error) {
	var configs []domain.GatewayConfig
	err := db.WithContext(ctx).
		Where("studio_id = ?", studioID).
		Order("gateway ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repo) ListActiveByGateway(ctx context.Context, db *gorm.DB, gateway string) ([]domain.GatewayConfig, error) {
	var configs []domain.GatewayConfig
	err := db.WithContext(ctx).
		Where("gateway = ? AND is_active = ?", gateway, true).
		Order("studio_id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repo) FindConfig(ctx context.Context, db *gorm.DB, studioID snowflake.ID, gateway string) (*domain.GatewayConfig, error) {
	var item domain.GatewayConfig
	err := db.WithContext(ctx).
		Where("studio_id = ? AND gateway = ?", studioID, gateway).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) UpsertConfig(ctx context.Context, db *gorm.DB, config *domain.GatewayConfig) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "studio_id"}, {Name: "gateway"}},
			DoUpdates: clause.AssignmentColumns([]string{"config", "is_active", "updated_at"}),
		}).
		Create(config).Error
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, studioID snowflake.ID, gateway string, isActive bool, updatedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Model(&domain.GatewayConfig{}).
		Where("studio_id = ? AND gateway = ?", studioID, gateway).
		Updates(map[string]any{
			"is_active":  isActive,
			"updated_at": updatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
