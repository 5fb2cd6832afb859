package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	auditmasking "github.com/smallbiznis/studioledger/internal/audit/masking"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Cfg      config.Config
	Catalog  domain.Catalog      `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	encKey   []byte
	catalog  domain.Catalog
	auditSvc auditdomain.Service
}

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// plainKeys are config fields safe to show unmasked in audit entries.
var plainKeys = []string{"mode", "return_url", "cancel_url"}

func New(p Params) domain.Service {
	secret := strings.TrimSpace(p.Cfg.GatewayConfigSecret)
	var key []byte
	if secret != "" {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}

	return &Service{
		db:       p.DB,
		log:      p.Log.Named("gatewayconfig.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		encKey:   key,
		catalog:  p.Catalog,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) ListConfigs(ctx context.Context) ([]domain.ConfigSummary, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidStudio
	}

	items, err := s.repo.ListConfigs(ctx, s.db, studioID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.ConfigSummary, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.ConfigSummary{
			Gateway:    item.Gateway,
			IsActive:   item.IsActive,
			Configured: true,
		})
	}
	return resp, nil
}

func (s *Service) UpsertConfig(ctx context.Context, req domain.UpsertRequest) (*domain.ConfigSummary, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidStudio
	}

	gateway, err := s.normalizeGateway(req.Gateway)
	if err != nil {
		return nil, err
	}

	cfg := normalizeConfig(req.Config)
	if len(cfg) == 0 {
		return nil, domain.ErrInvalidConfig
	}

	encrypted, err := s.encryptConfig(cfg)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindConfig(ctx, s.db, studioID, gateway)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	record := domain.GatewayConfig{
		ID:        s.genID.Generate(),
		StudioID:  studioID,
		Gateway:   gateway,
		Config:    encrypted,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		record.ID = existing.ID
		record.IsActive = existing.IsActive
		record.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.UpsertConfig(ctx, s.db, &record); err != nil {
		return nil, err
	}

	action := "gateway.rotate_secret"
	if existing == nil {
		action = "gateway.enable"
	}
	s.audit(ctx, studioID, action, gateway, map[string]any{
		"masked_fields": auditmasking.MaskValues(cfg, plainKeys...),
	})

	return &domain.ConfigSummary{
		Gateway:    gateway,
		IsActive:   record.IsActive,
		Configured: true,
	}, nil
}

func (s *Service) SetActive(ctx context.Context, gateway string, isActive bool) (*domain.ConfigSummary, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidStudio
	}

	gateway, err := s.normalizeGateway(gateway)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, s.db, studioID, gateway, isActive, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrNotFound
	}

	action := "gateway.disable"
	if isActive {
		action = "gateway.enable"
	}
	s.audit(ctx, studioID, action, gateway, map[string]any{"is_active": isActive})

	return &domain.ConfigSummary{
		Gateway:    gateway,
		IsActive:   isActive,
		Configured: true,
	}, nil
}

func (s *Service) Resolve(ctx context.Context, studioID snowflake.ID, gateway string) (map[string]any, error) {
	gateway = strings.ToUpper(strings.TrimSpace(gateway))
	item, err := s.repo.FindConfig(ctx, s.db, studioID, gateway)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsActive {
		return nil, domain.ErrNotConfigured
	}
	return s.decryptConfig(item.Config)
}

func (s *Service) ListActive(ctx context.Context, gateway string) ([]domain.ResolvedConfig, error) {
	gateway = strings.ToUpper(strings.TrimSpace(gateway))
	items, err := s.repo.ListActiveByGateway(ctx, s.db, gateway)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ResolvedConfig, 0, len(items))
	for _, item := range items {
		cfg, err := s.decryptConfig(item.Config)
		if err != nil {
			s.log.Warn("skipping unreadable gateway config",
				zap.String("studio_id", item.StudioID.String()),
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			continue
		}
		out = append(out, domain.ResolvedConfig{StudioID: item.StudioID, Config: cfg})
	}
	return out, nil
}

func (s *Service) normalizeGateway(gateway string) (string, error) {
	gateway = strings.ToUpper(strings.TrimSpace(gateway))
	if gateway == "" {
		return "", domain.ErrUnsupportedGateway
	}
	if s.catalog != nil && !s.catalog.Supports(gateway) {
		return "", domain.ErrUnsupportedGateway
	}
	return gateway, nil
}

func (s *Service) audit(ctx context.Context, studioID snowflake.ID, action, gateway string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	metadata["gateway"] = gateway
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		StudioID:   studioID,
		Action:     action,
		EntityType: "gateway_config",
		EntityID:   gateway,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("failed to audit gateway config change", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) gcm() (cipher.AEAD, error) {
	if len(s.encKey) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}
	block, err := aes.NewCipher(s.encKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Service) encryptConfig(cfg map[string]any) (datatypes.JSON, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, domain.ErrInvalidConfig
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, payload, nil)
	out, err := json.Marshal(encryptedPayload{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func (s *Service) decryptConfig(raw datatypes.JSON) (map[string]any, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	var envelope encryptedPayload
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Version != 1 {
		return nil, domain.ErrDecryptFailed
	}
	nonce, err := base64.RawStdEncoding.DecodeString(envelope.Nonce)
	if err != nil || len(nonce) != gcm.NonceSize() {
		return nil, domain.ErrDecryptFailed
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, domain.ErrDecryptFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, domain.ErrDecryptFailed
	}

	var cfg map[string]any
	if err := json.Unmarshal(plaintext, &cfg); err != nil {
		return nil, domain.ErrDecryptFailed
	}
	return cfg, nil
}

func normalizeConfig(cfg map[string]any) map[string]any {
	if len(cfg) == 0 {
		return nil
	}

	normalized := make(map[string]any, len(cfg))
	for key, value := range cfg {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || value == nil {
			continue
		}

		switch cast := value.(type) {
		case string:
			trimmedValue := strings.TrimSpace(cast)
			if trimmedValue == "" {
				continue
			}
			normalized[trimmedKey] = trimmedValue
		default:
			normalized[trimmedKey] = cast
		}
	}

	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
