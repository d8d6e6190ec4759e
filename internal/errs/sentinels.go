// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/sync/backend layers.
var (
	// ErrNotFound indicates the requested key, row or account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a conditional row update lost the race (updated_at moved).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates failed authentication (bad credentials, missing session).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated caller touching rows it does not own.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary sign-in lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken, row present).
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotConfigured indicates the sync backend is not configured (local-only mode).
	ErrNotConfigured = errors.New("sync backend not configured")

	// ErrUnavailable indicates the backend could not be reached.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrSecretTooShort indicates a secret phrase below the minimum length.
	ErrSecretTooShort = errors.New("secret phrase too short")

	// ErrLastProfile indicates an attempt to delete the only remaining profile.
	ErrLastProfile = errors.New("cannot delete the last profile")

	// ErrInvalid indicates a malformed request or value.
	ErrInvalid = errors.New("invalid argument")
)
