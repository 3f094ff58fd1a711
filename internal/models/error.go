package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Credential & session lifecycle errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountInactive       = errors.New("account is inactive")
	ErrAccountLocked         = errors.New("account is temporarily locked")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrAccountNotFound       = errors.New("account not found")
)
