package models

import "errors"

// Common errors for identity store operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserDisabled  = errors.New("user account is disabled")

	// Source errors
	ErrSourceNotFound  = errors.New("source not found")
	ErrDuplicateSource = errors.New("source already exists")

	// Source connection errors
	ErrConnectionNotFound  = errors.New("user source connection not found")
	ErrDuplicateConnection = errors.New("user source connection already exists")
)
