package oauth

import "errors"

// Sentinel errors mapped onto RFC 6749 error codes by the HTTP layer.
var (
	ErrInvalidRequest       = errors.New("oauth: invalid request")
	ErrInvalidClient        = errors.New("oauth: invalid client")
	ErrInvalidGrant         = errors.New("oauth: invalid grant")
	ErrInvalidScope         = errors.New("oauth: invalid scope")
	ErrInvalidToken         = errors.New("oauth: invalid token")
	ErrUnsupportedGrantType = errors.New("oauth: unsupported grant type")
	ErrAccessDenied         = errors.New("oauth: access denied")
)
