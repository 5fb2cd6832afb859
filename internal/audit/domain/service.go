package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one auditable change. StudioID falls back to the request
// context when zero.
type Entry struct {
	StudioID   snowflake.ID
	Action     string
	EntityType string
	EntityID   string
	OldValues  map[string]any
	NewValues  map[string]any
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	EntityType string
	EntityID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

var (
	ErrInvalidStudio    = apperr.New(apperr.ErrValidation, "invalid_studio")
	ErrInvalidPageToken = apperr.New(apperr.ErrValidation, "invalid_page_token")
	ErrInvalidTimeRange = apperr.New(apperr.ErrValidation, "invalid_time_range")
	ErrInvalidAction    = apperr.New(apperr.ErrValidation, "invalid_action")
)
