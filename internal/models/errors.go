package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound           = errors.New("resource not found") // General not found
	ErrDuplicateSlug      = errors.New("story slug already exists")
	ErrDuplicateTrackCode = errors.New("track code already exists")

	// Business-rule Errors (non-retryable, со своим пользовательским смыслом)
	ErrRequestNotFound   = errors.New("story request not found")
	ErrRequestNotPending = errors.New("story request is not pending")
	ErrRateLimited       = errors.New("writing request limit exceeded")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidInput   = errors.New("invalid input data")
)
