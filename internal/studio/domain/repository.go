package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"gorm.io/gorm"
)

// Repository reads return (nil, nil) when the row does not exist.
type Repository interface {
	FindStudio(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Studio, error)
	ListStudioIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
	NextInvoiceNumber(ctx context.Context, tx *gorm.DB, studioID snowflake.ID) (int64, error)

	FindClient(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Client, error)
	ListMarketingClients(ctx context.Context, db *gorm.DB, studioID snowflake.ID) ([]Client, error)
	SetStripeCustomerID(ctx context.Context, db *gorm.DB, studioID, clientID snowflake.ID, customerID string) error
	RecalculateLifetimeSpend(ctx context.Context, db *gorm.DB, studioID, clientID snowflake.ID) error
}

var (
	ErrStudioRequired = apperr.New(apperr.ErrValidation, "studio_required")
	ErrStudioNotFound = apperr.New(apperr.ErrNotFound, "studio_not_found")
	ErrClientNotFound = apperr.New(apperr.ErrNotFound, "client_not_found")
	ErrInvalidClient  = apperr.New(apperr.ErrValidation, "invalid_client_id")
)
