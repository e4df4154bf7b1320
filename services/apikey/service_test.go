package apikey

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hackid/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &APIKey{}, &UsageLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreateAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	record, plaintext, err := svc.Create(ctx, CreateInput{
		Name:         "discord bot",
		CreatedBy:    "admin@hack.sv",
		Permissions:  []string{PermissionDiscordRead, PermissionDiscordWrite},
		RateLimitRPM: 30,
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plaintext, KeyPrefix))
	require.Equal(t, HashKey(plaintext), record.KeyHash)

	got, err := svc.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	require.Equal(t, record.ID, got.ID)
	require.Equal(t, 30, got.RateLimitRPM)
}

func TestAuthenticateRejections(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = svc.Authenticate(ctx, "not-a-key")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = svc.Authenticate(ctx, KeyPrefix+"unknown")
	require.ErrorIs(t, err, ErrInvalidKey)

	record, plaintext, err := svc.Create(ctx, CreateInput{
		Name:        "revoked",
		Permissions: []string{PermissionUsersRead},
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, record.ID, UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, plaintext)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestCreateRejectsUnknownPermission(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Create(context.Background(), CreateInput{
		Name:        "bad",
		Permissions: []string{"users.delete_everything"},
	})
	require.ErrorIs(t, err, ErrUnknownPermission)
}

func TestCreateRejectsNegativeLimit(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Create(context.Background(), CreateInput{
		Name:         "bad",
		Permissions:  []string{PermissionUsersRead},
		RateLimitRPM: -1,
	})
	require.ErrorIs(t, err, ErrInvalidLimit)
}

func TestHasPermission(t *testing.T) {
	key := &APIKey{Permissions: []string{PermissionEventsRegister}}
	require.True(t, HasPermission(key, PermissionEventsRegister))
	require.False(t, HasPermission(key, PermissionUsersRead))

	wildcard := &APIKey{Permissions: []string{PermissionAll}}
	require.True(t, HasPermission(wildcard, PermissionUsersRead))
	require.True(t, HasPermission(wildcard, PermissionAdminWrite))
	require.True(t, HasPermission(wildcard, PermissionOAuth))
}

func TestLogUsage(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	record, _, err := svc.Create(ctx, CreateInput{
		Name:        "logger",
		Permissions: []string{PermissionUsersRead},
	})
	require.NoError(t, err)
	require.Nil(t, record.LastUsedAt)

	svc.LogUsage(ctx, record.ID, "user_status", map[string]any{"path": "/api/user-status"})
	svc.LogUsage(ctx, record.ID, "test", nil)

	logs, err := svc.Logs(ctx, record.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	got, err := svc.GetByID(ctx, record.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastUsedAt)

	// Logging against a missing key must not panic or error out.
	svc.LogUsage(ctx, "no-such-key", "test", nil)
}
