package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"gorm.io/gorm"
)

type Service interface {
	CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error)
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
	ListCampaigns(ctx context.Context) ([]Campaign, error)
	// SendCampaign delivers a DRAFT campaign and returns it in SENT state
	// with the delivery counts filled in.
	SendCampaign(ctx context.Context, id string) (*Campaign, error)
}

type CreateCampaignRequest struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	FindByID(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Campaign, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Campaign, error)
	List(ctx context.Context, db *gorm.DB, studioID snowflake.ID) ([]Campaign, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, campaign *Campaign, now time.Time) error
}

var (
	ErrInvalidCampaignID = apperr.New(apperr.ErrValidation, "invalid_campaign_id")
	ErrInvalidName       = apperr.New(apperr.ErrValidation, "invalid_campaign_name")
	ErrInvalidSubject    = apperr.New(apperr.ErrValidation, "invalid_campaign_subject")
	ErrInvalidBody       = apperr.New(apperr.ErrValidation, "invalid_campaign_body")
	ErrCampaignNotFound  = apperr.New(apperr.ErrNotFound, "campaign_not_found")
	ErrAlreadySent       = apperr.New(apperr.ErrConflict, "campaign_already_sent")
)
