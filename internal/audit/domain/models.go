package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeSystem ActorType = "system"
)

// AuditLog records one mutation of a financial record. Rows are append-only.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	StudioID   snowflake.ID      `gorm:"not null;index:idx_audit_logs_studio_created,priority:1" json:"studio_id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	UserID     *string           `gorm:"type:text" json:"user_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	EntityType string            `gorm:"type:text;not null" json:"entity_type"`
	EntityID   *string           `gorm:"type:text;index" json:"entity_id,omitempty"`
	OldValues  datatypes.JSONMap `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues  datatypes.JSONMap `gorm:"type:jsonb" json:"new_values,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	IPAddress  *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index:idx_audit_logs_studio_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	StudioID   snowflake.ID
	Action     string
	EntityType string
	EntityID   string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
