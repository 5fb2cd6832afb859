package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/smallbiznis/studioledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	studioID := entry.StudioID
	if studioID == 0 {
		resolved, ok := studiocontext.StudioIDFromContext(ctx)
		if !ok {
			return auditdomain.ErrInvalidStudio
		}
		studioID = resolved
	}

	entityType := strings.TrimSpace(entry.EntityType)
	if entityType == "" {
		entityType = "unknown"
	}

	metadata := copyValues(entry.Metadata)
	if requestID := studiocontext.RequestIDFromContext(ctx); requestID != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["request_id"] = requestID
	}

	log := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		StudioID:   studioID,
		ActorType:  studiocontext.ActorFromContext(ctx),
		UserID:     optionalString(studiocontext.UserIDFromContext(ctx)),
		Action:     action,
		EntityType: entityType,
		EntityID:   optionalString(entry.EntityID),
		OldValues:  toJSONMap(entry.OldValues),
		NewValues:  toJSONMap(entry.NewValues),
		Metadata:   toJSONMap(metadata),
		IPAddress:  optionalString(studiocontext.IPAddressFromContext(ctx)),
		UserAgent:  optionalString(studiocontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.now(),
	}

	if err := s.repo.Insert(ctx, s.db, &log); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_id", entry.EntityID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidStudio
	}

	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.AuditCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := pagination.ClampPageSize(req.PageSize, 50)
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		StudioID:   studioID,
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *auditdomain.AuditLog) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		logs = append(logs, *item)
	}
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now().UTC()
}

func copyValues(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for key, value := range values {
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func toJSONMap(values map[string]any) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	return datatypes.JSONMap(copyValues(values))
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
