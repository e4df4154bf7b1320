package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"hackid/pkg/repository"
	"hackid/services/app"
)

var ErrNotFound = errors.New("user: not found")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[User]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

var Module = fx.Module("user.module", fx.Provide(NewService))

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[User](p.DB),
	}
}

// GetByEmail returns nil when no user matches.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindOne(ctx, &User{Email: email})
}

func (s *Service) GetByDiscordID(ctx context.Context, discordID string) (*User, error) {
	return s.repo.FindOne(ctx, &User{DiscordID: discordID})
}

type CreateInput struct {
	Email           string
	LegalName       string
	PreferredName   string
	Pronouns        string
	DOB             string
	DiscordID       string
	DiscordUsername string
	Events          []string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	existing, err := s.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %s already exists", in.Email)
	}

	record := &User{
		ID:              s.node.Generate().String(),
		Email:           in.Email,
		LegalName:       in.LegalName,
		PreferredName:   in.PreferredName,
		Pronouns:        in.Pronouns,
		DOB:             in.DOB,
		DiscordID:       in.DiscordID,
		DiscordUsername: in.DiscordUsername,
		Events:          in.Events,
	}
	if record.Events == nil {
		record.Events = []string{}
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return record, nil
}

// AddEvent appends eventID to the user's event memberships. Adding an event
// the user already has is a no-op.
func (s *Service) AddEvent(ctx context.Context, email, eventID string) (*User, error) {
	record, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	for _, ev := range record.Events {
		if ev == eventID {
			return record, nil
		}
	}
	record.Events = append(record.Events, eventID)
	if err := s.repo.Update(ctx, record.ID, map[string]any{"events": record.Events}); err != nil {
		return nil, fmt.Errorf("update user events: %w", err)
	}
	return record, nil
}

// UnlinkDiscord clears the user's Discord linkage.
func (s *Service) UnlinkDiscord(ctx context.Context, email string) error {
	record, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrNotFound
	}
	return s.repo.Update(ctx, record.ID, map[string]any{
		"discord_id":       "",
		"discord_username": "",
	})
}

// FilterFields projects a user record down to exactly the fields implied by
// the granted scopes. Fields outside the grant are absent, not null.
func FilterFields(u *User, scopes []string) map[string]any {
	out := make(map[string]any)
	for _, scope := range scopes {
		switch scope {
		case app.ScopeProfile:
			out["legal_name"] = u.LegalName
			out["preferred_name"] = u.PreferredName
			out["pronouns"] = u.Pronouns
		case app.ScopeEmail:
			out["email"] = u.Email
		case app.ScopeDOB:
			out["dob"] = u.DOB
		case app.ScopeEvents:
			out["events"] = []string(u.Events)
		case app.ScopeDiscord:
			out["discord_id"] = u.DiscordID
			out["discord_username"] = u.DiscordUsername
		}
	}
	return out
}
