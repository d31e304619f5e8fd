package detections

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("detections_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("detections_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("detections_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("detections_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("detections_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("detections_storage_access_failed")
	ErrStorageInit   = errors.ErrInitDetections
	ErrStorageClose  = errors.ErrCloseDetections

	// Operation Errors
	ErrInvalidDetection = errors.ErrorCode("detections_invalid_detection")
	ErrInvalidMission   = errors.ErrorCode("detections_invalid_mission")
	ErrOperationTimeout = errors.ErrTimeout
)
