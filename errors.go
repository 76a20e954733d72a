package vercel

import "errors"

// Sentinel errors returned by the integration.
var (
	// ErrEmptyAPIKey is returned by New when WithAPIKey is given an empty key.
	ErrEmptyAPIKey = errors.New("vercel: apiKey was undefined")

	// ErrNoAuth is returned when neither an OAuth token nor an API key is available.
	ErrNoAuth = errors.New("vercel: no auth")

	// ErrNoIO is returned when RunTask is called outside a run.
	ErrNoIO = errors.New("vercel: no IO")

	// ErrNoConnectionKey is returned when RunTask is called without a connection key.
	ErrNoConnectionKey = errors.New("vercel: no connection key")

	// ErrNoClient is returned when a task runs before a client was bound.
	ErrNoClient = errors.New("vercel: no client")

	// ErrNoSource is returned when triggers are registered without an event source.
	ErrNoSource = errors.New("vercel: no webhook event source configured")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("vercel: store is closed")
)
