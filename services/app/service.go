package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hackid/pkg/repository"
	"hackid/pkg/util"
)

var (
	ErrNotFound        = errors.New("app: not found")
	ErrInvalidRedirect = errors.New("app: at least one redirect URI is required")
	ErrInvalidScopes   = errors.New("app: allowed scopes must be a non-empty subset of the scope vocabulary")
	ErrInvalidClient   = errors.New("app: invalid client credentials")
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[App]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

var Module = fx.Module("app.module", fx.Provide(NewService))

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[App](p.DB),
	}
}

type CreateInput struct {
	Name                string
	Icon                string
	RedirectURIs        []string
	RedirectURLTemplate string
	AllowedScopes       []string
	AllowAnyone         bool
	SkipConsentScreen   bool
	CreatedBy           string
}

// Create registers a new application and returns the record together with
// the plaintext client secret. The secret is stored only as a bcrypt hash
// and cannot be recovered later.
func (s *Service) Create(ctx context.Context, in CreateInput) (*App, string, error) {
	if len(in.RedirectURIs) == 0 {
		return nil, "", ErrInvalidRedirect
	}
	scopes := in.AllowedScopes
	if len(scopes) == 0 {
		scopes = []string{ScopeProfile, ScopeEmail}
	}
	for _, scope := range scopes {
		if !ValidScope(scope) {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidScopes, scope)
		}
	}

	clientID := "app_" + util.GenerateToken(16)
	clientSecret := util.GenerateToken(32)
	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash client secret: %w", err)
	}

	record := &App{
		ID:                  s.node.Generate().String(),
		ClientID:            clientID,
		ClientSecretHash:    string(hash),
		Name:                in.Name,
		Icon:                in.Icon,
		RedirectURIs:        in.RedirectURIs,
		RedirectURLTemplate: in.RedirectURLTemplate,
		AllowedScopes:       scopes,
		AllowAnyone:         in.AllowAnyone,
		SkipConsentScreen:   in.SkipConsentScreen,
		IsActive:            true,
		CreatedBy:           in.CreatedBy,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, "", fmt.Errorf("create app: %w", err)
	}
	return record, clientSecret, nil
}

// GetByClientID returns nil when no app matches.
func (s *Service) GetByClientID(ctx context.Context, clientID string) (*App, error) {
	return s.repo.FindOne(ctx, &App{ClientID: clientID})
}

func (s *Service) GetByID(ctx context.Context, id string) (*App, error) {
	return s.repo.FindOne(ctx, &App{ID: id})
}

func (s *Service) List(ctx context.Context) ([]*App, error) {
	return s.repo.Find(ctx, &App{})
}

type UpdateInput struct {
	Name                *string
	Icon                *string
	RedirectURIs        []string
	RedirectURLTemplate *string
	AllowedScopes       []string
	AllowAnyone         *bool
	SkipConsentScreen   *bool
	IsActive            *bool
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*App, error) {
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
	if in.Icon != nil {
		updates["icon"] = *in.Icon
	}
	if in.RedirectURIs != nil {
		if len(in.RedirectURIs) == 0 {
			return nil, ErrInvalidRedirect
		}
		existing.RedirectURIs = in.RedirectURIs
		updates["redirect_uris"] = existing.RedirectURIs
	}
	if in.RedirectURLTemplate != nil {
		updates["redirect_url_template"] = *in.RedirectURLTemplate
	}
	if in.AllowedScopes != nil {
		for _, scope := range in.AllowedScopes {
			if !ValidScope(scope) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidScopes, scope)
			}
		}
		existing.AllowedScopes = in.AllowedScopes
		updates["allowed_scopes"] = existing.AllowedScopes
	}
	if in.AllowAnyone != nil {
		updates["allow_anyone"] = *in.AllowAnyone
	}
	if in.SkipConsentScreen != nil {
		updates["skip_consent_screen"] = *in.SkipConsentScreen
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update app: %w", err)
		}
	}
	return s.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// VerifySecret compares the presented secret against the stored hash.
// bcrypt comparison does not leak matching-prefix timing.
func (s *Service) VerifySecret(app *App, clientSecret string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(app.ClientSecretHash), []byte(clientSecret)); err != nil {
		return ErrInvalidClient
	}
	return nil
}

// ValidateRedirectURI requires an exact string match against the registered
// URIs; a trailing slash or scheme difference fails.
func ValidateRedirectURI(app *App, redirectURI string) bool {
	for _, uri := range app.RedirectURIs {
		if uri == redirectURI {
			return true
		}
	}
	return false
}

// ValidateScopes checks every space-separated token in scope against the
// vocabulary and the app's allowed scopes. Returns the parsed scope list.
func ValidateScopes(app *App, scope string) ([]string, error) {
	requested := strings.Fields(scope)
	if len(requested) == 0 {
		return nil, fmt.Errorf("empty scope")
	}
	for _, sc := range requested {
		if !ValidScope(sc) {
			return nil, fmt.Errorf("unknown scope %q", sc)
		}
		allowed := false
		for _, a := range app.AllowedScopes {
			if a == sc {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("scope %q not permitted for this client", sc)
		}
	}
	return requested, nil
}

// MatchRedirectTemplate resolves the legacy token flow app whose
// redirect_url_template matches the given URL. The template's "{token}"
// placeholder matches a URL-safe token.
func (s *Service) MatchRedirectTemplate(ctx context.Context, redirectURL string) (*App, error) {
	apps, err := s.repo.Find(ctx, &App{IsActive: true})
	if err != nil {
		return nil, err
	}
	for _, a := range apps {
		template := a.RedirectURLTemplate
		if template == "" || !strings.Contains(template, "{token}") {
			continue
		}
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(template), regexp.QuoteMeta("{token}"), "[A-Za-z0-9_-]+") + "$"
		matched, err := regexp.MatchString(pattern, redirectURL)
		if err != nil {
			continue
		}
		if matched {
			return a, nil
		}
	}
	return nil, nil
}
