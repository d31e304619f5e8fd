package api

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	ErrInvalidQuery = errors.ErrorCode("api_invalid_query")
	ErrServe        = errors.ErrServeHTTP
	ErrShutdown     = errors.ErrShutdownFailed
)
