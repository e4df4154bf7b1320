package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hackid/pkg/db/option"
	"hackid/pkg/repository"
	"hackid/pkg/util"
)

var (
	ErrNotFound     = errors.New("apikey: not found")
	ErrInvalidKey   = errors.New("apikey: invalid or inactive key")
	ErrInvalidLimit = errors.New("apikey: rate limit must be >= 0")
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	keys repository.Repository[APIKey]
	logs repository.Repository[UsageLog]
	now  func() time.Time
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

var Module = fx.Module("apikey.module", fx.Provide(NewService))

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		keys: repository.ProvideStore[APIKey](p.DB),
		logs: repository.ProvideStore[UsageLog](p.DB),
		now:  time.Now,
	}
}

// HashKey derives the stored lookup hash for a plaintext key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

type CreateInput struct {
	Name         string
	CreatedBy    string
	Permissions  []string
	RateLimitRPM int
}

// Create issues a new API key and returns the record together with the
// plaintext key. Only the hash is persisted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*APIKey, string, error) {
	if err := ValidatePermissions(in.Permissions); err != nil {
		return nil, "", err
	}
	if in.RateLimitRPM < 0 {
		return nil, "", ErrInvalidLimit
	}

	plaintext := KeyPrefix + util.GenerateToken(32)
	record := &APIKey{
		ID:           s.node.Generate().String(),
		KeyHash:      HashKey(plaintext),
		Name:         in.Name,
		CreatedBy:    in.CreatedBy,
		Permissions:  in.Permissions,
		RateLimitRPM: in.RateLimitRPM,
		IsActive:     true,
	}
	if record.Permissions == nil {
		record.Permissions = []string{}
	}
	if err := s.keys.Create(ctx, record); err != nil {
		return nil, "", fmt.Errorf("create api key: %w", err)
	}
	return record, plaintext, nil
}

// Authenticate resolves an active key record from its plaintext value.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (*APIKey, error) {
	if !strings.HasPrefix(plaintext, KeyPrefix) {
		return nil, ErrInvalidKey
	}
	record, err := s.keys.FindOne(ctx, &APIKey{KeyHash: HashKey(plaintext)})
	if err != nil {
		return nil, err
	}
	if record == nil || !record.IsActive {
		return nil, ErrInvalidKey
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*APIKey, error) {
	return s.keys.FindOne(ctx, &APIKey{ID: id})
}

func (s *Service) List(ctx context.Context) ([]*APIKey, error) {
	return s.keys.Find(ctx, &APIKey{}, option.WithOrder("created_at desc"))
}

type UpdateInput struct {
	Name         *string
	Permissions  []string
	RateLimitRPM *int
	IsActive     *bool
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*APIKey, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Permissions != nil {
		if err := ValidatePermissions(in.Permissions); err != nil {
			return nil, err
		}
		existing.Permissions = in.Permissions
		updates["permissions"] = existing.Permissions
	}
	if in.RateLimitRPM != nil {
		if *in.RateLimitRPM < 0 {
			return nil, ErrInvalidLimit
		}
		updates["rate_limit_rpm"] = *in.RateLimitRPM
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := s.keys.Update(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update api key: %w", err)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.keys.Delete(ctx, id)
}

// LogUsage appends a usage record and touches last_used_at. It is
// best-effort: failures are logged and never surfaced to the caller.
func (s *Service) LogUsage(ctx context.Context, keyID, action string, metadata map[string]any) {
	payload, err := json.Marshal(metadata)
	if err != nil {
		payload = []byte("{}")
	}

	entry := &UsageLog{
		ID:       s.node.Generate().String(),
		KeyID:    keyID,
		Action:   action,
		Metadata: payload,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		zap.L().Warn("failed to record api key usage", zap.Error(err), zap.String("key_id", keyID), zap.String("action", action))
	}

	now := s.now()
	if err := s.keys.Update(ctx, keyID, map[string]any{"last_used_at": now}); err != nil {
		zap.L().Warn("failed to update api key last_used_at", zap.Error(err), zap.String("key_id", keyID))
	}
}

// Logs returns the most recent usage entries, optionally filtered by key.
func (s *Service) Logs(ctx context.Context, keyID string, limit int) ([]*UsageLog, error) {
	if limit <= 0 {
		limit = 10
	}
	query := &UsageLog{}
	if keyID != "" {
		query.KeyID = keyID
	}
	return s.logs.Find(ctx, query, option.WithOrder("created_at desc"), option.WithLimit(limit))
}
