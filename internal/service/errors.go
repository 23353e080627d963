package service

import "errors"

// Sentinel errors for the view protocol. Handlers map these (plus the
// repository sentinels for document/share state) onto the HTTP error
// taxonomy; nothing else crosses the handler boundary.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrPassphraseRequired = errors.New("passphrase required")
	ErrInvalidPassphrase  = errors.New("invalid passphrase")
	ErrInvalidToken       = errors.New("invalid or expired view token")
	ErrTokenMismatch      = errors.New("token bound to a different document")
	ErrClientMismatch     = errors.New("client fingerprint does not match token")
	ErrRateLimitExceeded  = errors.New("tile rate limit exceeded")
	ErrPageNotFound       = errors.New("page out of range")
	ErrStorageUnavailable = errors.New("page storage unavailable")
	ErrWatermarkFailed    = errors.New("watermark compositing failed")
)
