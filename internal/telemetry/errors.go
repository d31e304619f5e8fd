package telemetry

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig    = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidParamsDir = errors.ErrorCode("telemetry_invalid_params_dir")

	// Channel Errors
	ErrChannelRead    = errors.ErrorCode("telemetry_channel_read_failed")
	ErrChannelDecode  = errors.ErrorCode("telemetry_channel_decode_failed")
	ErrUnknownChannel = errors.ErrorCode("telemetry_unknown_channel")
)
