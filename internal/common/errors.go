// Package common defines shared constants and sentinel errors used across
// the driftsync client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Transport-level errors. Network failures and deadline expiry map
	// here; the sync engine treats them as an aborted pass and waits for
	// the next requested revision to retry.
	ErrTransport = errors.New("transport failure")

	// Auth errors. The credential was rejected; surfaced to the session
	// layer and never retried by a coordinator.
	ErrUnauthorized = errors.New("unauthorized")

	// Wire-format errors. The server returned a payload that does not
	// decode into the expected delta shape.
	ErrMalformedDelta = errors.New("malformed delta")

	// Session lifecycle errors.
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")

	// Conversation errors.
	ErrHostedOnly = errors.New("operation allowed on hosted channels only")
)
