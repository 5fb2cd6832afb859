package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// GatewayConfig holds one studio's credentials for one payment gateway.
// Config is an AES-GCM envelope, never plaintext.
type GatewayConfig struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	StudioID  snowflake.ID   `json:"studio_id" gorm:"not null;uniqueIndex:ux_gateway_configs_studio_gateway,priority:1"`
	Gateway   string         `json:"gateway" gorm:"type:text;not null;uniqueIndex:ux_gateway_configs_studio_gateway,priority:2"`
	Config    datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`
	IsActive  bool           `json:"is_active" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (GatewayConfig) TableName() string { return "gateway_configs" }
