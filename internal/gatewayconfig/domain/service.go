package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"gorm.io/gorm"
)

type Service interface {
	ListConfigs(ctx context.Context) ([]ConfigSummary, error)
	UpsertConfig(ctx context.Context, req UpsertRequest) (*ConfigSummary, error)
	SetActive(ctx context.Context, gateway string, isActive bool) (*ConfigSummary, error)
	// Resolve returns the decrypted credentials of an active gateway.
	Resolve(ctx context.Context, studioID snowflake.ID, gateway string) (map[string]any, error)
	// ListActive returns decrypted credentials of every studio with the
	// gateway enabled. Webhook ingestion uses it to find the signing secret.
	ListActive(ctx context.Context, gateway string) ([]ResolvedConfig, error)
}

// Catalog reports which gateways the payment layer can drive.
type Catalog interface {
	Supports(gateway string) bool
}

type Repository interface {
	ListConfigs(ctx context.Context, db *gorm.DB, studioID snowflake.ID) ([]GatewayConfig, error)
	ListActiveByGateway(ctx context.Context, db *gorm.DB, gateway string) ([]GatewayConfig, error)
	FindConfig(ctx context.Context, db *gorm.DB, studioID snowflake.ID, gateway string) (*GatewayConfig, error)
	UpsertConfig(ctx context.Context, db *gorm.DB, config *GatewayConfig) error
	UpdateStatus(ctx context.Context, db *gorm.DB, studioID snowflake.ID, gateway string, isActive bool, updatedAt time.Time) (bool, error)
}

type ConfigSummary struct {
	Gateway    string `json:"gateway"`
	IsActive   bool   `json:"is_active"`
	Configured bool   `json:"configured"`
}

type UpsertRequest struct {
	Gateway string         `json:"-"`
	Config  map[string]any `json:"config"`
}

type ResolvedConfig struct {
	StudioID snowflake.ID
	Config   map[string]any
}

var (
	ErrInvalidStudio        = apperr.New(apperr.ErrValidation, "invalid_studio")
	ErrInvalidConfig        = apperr.New(apperr.ErrValidation, "invalid_gateway_config")
	ErrUnsupportedGateway   = apperr.New(apperr.ErrNotSupported, "gateway_not_supported")
	ErrNotFound             = apperr.New(apperr.ErrNotFound, "gateway_config_not_found")
	ErrNotConfigured        = apperr.New(apperr.ErrConfiguration, "gateway_not_configured")
	ErrEncryptionKeyMissing = apperr.New(apperr.ErrConfiguration, "encryption_key_missing")
	ErrDecryptFailed        = apperr.New(apperr.ErrConfiguration, "gateway_config_unreadable")
)
