package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hackid/internal/config"
	"hackid/pkg/db/option"
	"hackid/pkg/repository"
)

var (
	ErrAlreadyAdmin   = errors.New("admin: user is already an admin")
	ErrNotFound       = errors.New("admin: not found")
	ErrProtectedAdmin = errors.New("admin: cannot remove the first system administrator")
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	repo  repository.Repository[Admin]
	perms repository.Repository[AppPermission]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

var Module = fx.Module("admin.module",
	fx.Provide(NewService),
	fx.Invoke(Seed),
)

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		repo:  repository.ProvideStore[Admin](p.DB),
		perms: repository.ProvideStore[AppPermission](p.DB),
	}
}

// IsAdmin reports whether email belongs to an active administrator.
func (s *Service) IsAdmin(ctx context.Context, email string) bool {
	record, err := s.repo.FindOne(ctx, &Admin{Email: email})
	if err != nil {
		zap.L().Error("admin lookup failed", zap.Error(err), zap.String("email", email))
		return false
	}
	return record != nil && record.IsActive
}

func (s *Service) List(ctx context.Context) ([]*Admin, error) {
	return s.repo.Find(ctx, &Admin{}, option.WithOrder("created_at desc"))
}

func (s *Service) Add(ctx context.Context, email, addedBy string) (*Admin, error) {
	existing, err := s.repo.FindOne(ctx, &Admin{Email: email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyAdmin
	}
	record := &Admin{
		ID:       s.node.Generate().String(),
		Email:    email,
		AddedBy:  addedBy,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return record, nil
}

// Remove deactivates an admin. The earliest-created admin is the system
// administrator and cannot be removed.
func (s *Service) Remove(ctx context.Context, email string) error {
	first, err := s.repo.FindOne(ctx, &Admin{}, option.WithOrder("created_at asc, id asc"))
	if err != nil {
		return err
	}
	if first != nil && first.Email == email {
		return ErrProtectedAdmin
	}

	record, err := s.repo.FindOne(ctx, &Admin{Email: email})
	if err != nil {
		return err
	}
	if record == nil || !record.IsActive {
		return ErrNotFound
	}
	return s.repo.Update(ctx, record.ID, map[string]any{"is_active": false})
}

func (s *Service) Reactivate(ctx context.Context, email string) error {
	record, err := s.repo.FindOne(ctx, &Admin{Email: email})
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNotFound
	}
	return s.repo.Update(ctx, record.ID, map[string]any{"is_active": true})
}

// GrantAppPermission allows the admin to authenticate against a restricted app.
func (s *Service) GrantAppPermission(ctx context.Context, email, appID, permission, grantedBy string) (*AppPermission, error) {
	existing, err := s.perms.FindOne(ctx, &AppPermission{AdminEmail: email, AppID: appID, Permission: permission})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	record := &AppPermission{
		ID:         s.node.Generate().String(),
		AdminEmail: email,
		AppID:      appID,
		Permission: permission,
		GrantedBy:  grantedBy,
	}
	if err := s.perms.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("grant app permission: %w", err)
	}
	return record, nil
}

func (s *Service) RevokeAppPermission(ctx context.Context, email, appID, permission string) error {
	existing, err := s.perms.FindOne(ctx, &AppPermission{AdminEmail: email, AppID: appID, Permission: permission})
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotFound
	}
	return s.perms.Delete(ctx, existing.ID)
}

// HasAppPermission reports whether email holds the named permission on appID.
func (s *Service) HasAppPermission(ctx context.Context, email, appID, permission string) bool {
	record, err := s.perms.FindOne(ctx, &AppPermission{AdminEmail: email, AppID: appID, Permission: permission})
	if err != nil {
		zap.L().Error("app permission lookup failed", zap.Error(err), zap.String("email", email), zap.String("app_id", appID))
		return false
	}
	return record != nil
}

// Seed creates active admin rows for the configured allowlist. Existing rows
// are left untouched so deactivations survive restarts.
func Seed(cfg *config.Config, svc *Service) error {
	ctx := context.Background()
	for _, email := range cfg.Admin.SeedEmails {
		existing, err := svc.repo.FindOne(ctx, &Admin{Email: email})
		if err != nil {
			return fmt.Errorf("seed admins: %w", err)
		}
		if existing != nil {
			continue
		}
		if _, err := svc.Add(ctx, email, "bootstrap"); err != nil {
			return fmt.Errorf("seed admins: %w", err)
		}
		zap.L().Info("seeded admin", zap.String("email", email))
	}
	return nil
}
