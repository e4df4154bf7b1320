package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hackid/internal/config"
	"hackid/services/user"
)

var (
	ErrNoEvent     = errors.New("event: no event specified and no current event configured")
	ErrUnknownUser = errors.New("event: user not found")
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	users *user.Service
	cfg   *config.Config
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Users  *user.Service
	Config *config.Config
}

var Module = fx.Module("event.module", fx.Provide(NewService))

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB, node: p.Node, users: p.Users, cfg: p.Config}
}

// CurrentEventID returns the configured current event, or "" when none is
// active between events.
func (s *Service) CurrentEventID() string {
	return s.cfg.Event.CurrentEventID
}

// resolveEvent falls back to the configured current event when the caller
// passed no explicit event ID.
func (s *Service) resolveEvent(eventID string) (string, error) {
	if eventID != "" {
		return eventID, nil
	}
	if s.cfg.Event.CurrentEventID == "" {
		return "", ErrNoEvent
	}
	return s.cfg.Event.CurrentEventID, nil
}

// Register adds an event to the user's attendance list and, when info is
// supplied, upserts their temporary registration details. Registering
// twice is a no-op for the attendance list and an update for the details.
func (s *Service) Register(ctx context.Context, email, eventID string, info map[string]any) (*user.User, error) {
	id, err := s.resolveEvent(eventID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.AddEvent(ctx, email, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	if len(info) > 0 {
		if err := s.SubmitTemporaryInfo(ctx, email, id, info); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// SubmitTemporaryInfo upserts the per-event registration details for one
// user, keyed on (user_email, event_id).
func (s *Service) SubmitTemporaryInfo(ctx context.Context, email, eventID string, info map[string]any) error {
	id, err := s.resolveEvent(eventID)
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUnknownUser
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	row := &TemporaryInfo{
		ID:        s.node.Generate().String(),
		UserEmail: email,
		EventID:   id,
		Info:      datatypes.JSON(raw),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}, {Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]any{"info": row.Info, "updated_at": time.Now()}),
	}).Create(row).Error
}

// Status describes a user's standing for one event.
type Status struct {
	EventID        string   `json:"event_id"`
	Registered     bool     `json:"registered"`
	InfoSubmitted  bool     `json:"info_submitted"`
	UserEmail      string   `json:"user_email"`
	AttendedEvents []string `json:"attended_events"`
}

// UserStatus reports whether the user is registered for the event and
// whether they have submitted their temporary details.
func (s *Service) UserStatus(ctx context.Context, email, eventID string) (*Status, error) {
	id, err := s.resolveEvent(eventID)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}

	registered := false
	for _, e := range u.Events {
		if e == id {
			registered = true
			break
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&TemporaryInfo{}).
		Where("user_email = ? AND event_id = ?", email, id).
		Count(&count).Error; err != nil {
		return nil, err
	}

	return &Status{
		EventID:        id,
		Registered:     registered,
		InfoSubmitted:  count > 0,
		UserEmail:      email,
		AttendedEvents: []string(u.Events),
	}, nil
}
