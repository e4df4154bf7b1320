package apikey

import (
	"errors"
	"fmt"
)

var ErrUnknownPermission = errors.New("apikey: unknown permission")

// Permission strings are hierarchical by convention but matched exactly;
// PermissionAll is the only wildcard.
const (
	PermissionAll              = "*"
	PermissionUsersRead        = "users.read"
	PermissionUsersWrite       = "users.write"
	PermissionEventsRegister   = "events.register"
	PermissionEventsSubmitInfo = "events.submit_info"
	PermissionOAuth            = "oauth"
	PermissionDiscordRead      = "discord.read"
	PermissionDiscordWrite     = "discord.write"
	PermissionAdminRead        = "admin.read"
	PermissionAdminWrite       = "admin.write"
)

// Registry is the closed set of assignable permissions. Keys carrying
// anything outside it are rejected at creation time.
var Registry = map[string]struct{}{
	PermissionAll:              {},
	PermissionUsersRead:        {},
	PermissionUsersWrite:       {},
	PermissionEventsRegister:   {},
	PermissionEventsSubmitInfo: {},
	PermissionOAuth:            {},
	PermissionDiscordRead:      {},
	PermissionDiscordWrite:     {},
	PermissionAdminRead:        {},
	PermissionAdminWrite:       {},
}

// ValidatePermissions rejects permission strings outside the registry.
func ValidatePermissions(perms []string) error {
	for _, p := range perms {
		if _, ok := Registry[p]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, p)
		}
	}
	return nil
}

// HasPermission reports whether the key holds required, either exactly or
// through the wildcard.
func HasPermission(key *APIKey, required string) bool {
	for _, p := range key.Permissions {
		if p == required || p == PermissionAll {
			return true
		}
	}
	return false
}
