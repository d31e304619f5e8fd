package arena

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("arena_invalid_config")
	ErrInvalidSource = errors.ErrorCode("arena_invalid_source")
	ErrMissingPath   = errors.ErrorCode("arena_missing_path")

	// Fetch Errors
	ErrUnavailable = errors.ErrorCode("arena_unavailable")
	ErrReadFailed  = errors.ErrorCode("arena_read_failed")
	ErrParseFailed = errors.ErrorCode("arena_parse_failed")
)
