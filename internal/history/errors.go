package history

import "codeberg.org/mutker/dronedash/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig        = errors.ErrorCode("history_invalid_config")
	ErrInvalidDir           = errors.ErrorCode("history_invalid_dir")
	ErrInvalidPartitionSize = errors.ErrorCode("history_invalid_partition_size")

	// Storage Errors
	ErrStorageInit  = errors.ErrorCode("history_storage_init_failed")
	ErrStorageRead  = errors.ErrorCode("history_storage_read_failed")
	ErrStorageWrite = errors.ErrorCode("history_storage_write_failed")
	ErrStoragePurge = errors.ErrorCode("history_storage_purge_failed")

	// Operation Errors
	ErrInvalidSnapshot  = errors.ErrorCode("history_invalid_snapshot")
	ErrOperationTimeout = errors.ErrTimeout
	ErrExportFailed     = errors.ErrorCode("history_export_failed")
)
