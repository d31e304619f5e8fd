package detections

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/logger"
)

// backupDatabase copies the live database next to its older versions before
// the schema is recreated
func backupDatabase(db *sql.DB, dir string, version int, log logger.Logger) (string, error) {
	errFactory := errors.New()

	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  dir,
			Error: err.Error(),
		})
	}

	name := fmt.Sprintf("detections_v%d_%s.db", version, time.Now().UTC().Format("20060102T150405Z"))
	backupPath := filepath.Join(dir, name)

	// VACUUM INTO takes no bind parameters
	stmt := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(backupPath, "'", "''"))
	if _, err := db.Exec(stmt); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "vacuum_into",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Detection database backed up")

	return backupPath, nil
}

// ValidateAndUpdateSchema leaves a current schema alone. Any other version
// is backed up (when the database is not empty) and recreated; detections
// from an incompatible schema are not carried over.
func ValidateAndUpdateSchema(db *sql.DB, backupDir string, log logger.Logger) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	switch version {
	case SchemaVersion:
		log.Debug().Int("version", version).Msg("Detection schema is current")
		return nil
	case 0:
		log.Debug().Msg("Empty detection database")
	default:
		log.Warn().
			Int("found", version).
			Int("expected", SchemaVersion).
			Msg("Detection schema mismatch, recreating")
		if _, err := backupDatabase(db, backupDir, version, log); err != nil {
			return err
		}
	}

	if err := dropTables(db, log); err != nil {
		return err
	}

	return InitSchema(db, log)
}

func dropTables(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	return inTx(db, log, ErrSchemaMigrationFailed, func(tx *sql.Tx) error {
		for i := len(tables) - 1; i >= 0; i-- {
			name := tables[i].name
			if _, err := tx.Exec("DROP TABLE IF EXISTS " + name); err != nil {
				return errFactory.WithData(ErrSchemaMigrationFailed, struct {
					Table string
					Error string
				}{
					Table: name,
					Error: err.Error(),
				})
			}
		}

		return nil
	})
}
