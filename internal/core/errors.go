package core

import "errors"

var (
	// ErrAlreadyOnline is returned by Registry.Register when the login already has a session
	// and the duplicate policy is DuplicateReject.
	ErrAlreadyOnline = errors.New("login already online")
	// ErrSessionClosed is returned when writing to a session that has terminated.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotAuthenticated is returned when registering a session without a user.
	ErrNotAuthenticated = errors.New("session not authenticated")
)
