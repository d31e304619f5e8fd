package detections

import (
	"path/filepath"

	"codeberg.org/mutker/dronedash/internal/errors"
)

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/dronedash/detections.db"
	backupDirName  = "backups"
)

type Config struct {
	DBPath string
	// BackupDir receives a copy of the database before a schema migration.
	// Empty means a backups directory next to DBPath.
	BackupDir string
	Enabled   bool
	// Restore re-applies the latest mission's detections on start-up
	Restore bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:  defaultDBPath,
		Enabled: false,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if the log is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}
