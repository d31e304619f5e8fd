package history

import (
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
)

const (
	// MaxPartitionSize is the retention cap of one day partition
	MaxPartitionSize = 1000

	defaultDir      = "/var/lib/dronedash/history"
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644

	partitionPrefix = "history_"
	partitionSuffix = ".json"
	dateLayout      = "2006-01-02"
	tempPattern     = ".history_*.tmp"
	corruptSuffix   = ".corrupt"
)

type Config struct {
	Dir              string
	MaxPartitionSize int
	// Location decides which calendar day a snapshot belongs to
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		Dir:              defaultDir,
		MaxPartitionSize: MaxPartitionSize,
		Location:         time.Local,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Dir == "" {
		return errFactory.New(ErrInvalidDir)
	}
	if c.MaxPartitionSize <= 0 {
		return errFactory.WithData(ErrInvalidPartitionSize, c.MaxPartitionSize)
	}
	return nil
}
