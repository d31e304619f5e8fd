package geofence

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	// Configuration Errors
	ErrInvalidArena           = errors.ErrorCode("geofence_invalid_arena_size")
	ErrInvalidThreshold       = errors.ErrorCode("geofence_invalid_threshold")
	ErrInvalidExpectedTargets = errors.ErrorCode("geofence_invalid_expected_targets")
	ErrInvalidScale           = errors.ErrorCode("geofence_invalid_scale")
)
