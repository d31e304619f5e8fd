package detections

import (
	"database/sql"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/logger"
)

const SchemaVersion = 1

type table struct {
	name string
	ddl  string
}

// tables is in creation order; parents come first
var tables = []table{
	{
		name: "schema_versions",
		ddl: `CREATE TABLE IF NOT EXISTS schema_versions (
	version     INTEGER PRIMARY KEY,
	applied_at  TEXT NOT NULL
)`,
	},
	{
		name: "missions",
		ddl: `CREATE TABLE IF NOT EXISTS missions (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL
)`,
	},
	{
		name: "detections",
		ddl: `CREATE TABLE IF NOT EXISTS detections (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	mission_id  TEXT NOT NULL REFERENCES missions(id),
	target_id   TEXT NOT NULL CHECK (length(target_id) > 0),
	lat         REAL NOT NULL,
	lng         REAL NOT NULL,
	local_x     REAL NOT NULL,
	local_y     REAL NOT NULL,
	distance    REAL NOT NULL CHECK (distance >= 0),
	detected_at INTEGER NOT NULL,
	UNIQUE (mission_id, target_id)
)`,
	},
}

const (
	recordVersionSQL = `INSERT INTO schema_versions (version, applied_at) VALUES (?, datetime('now'))`

	currentVersionSQL = `SELECT version FROM schema_versions ORDER BY version DESC LIMIT 1`

	tableExistsSQL = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)`

	insertMissionSQL = `
    INSERT INTO missions (id, started_at) VALUES (?, ?)
    ON CONFLICT (id) DO NOTHING`

	latestMissionSQL = `
    SELECT id FROM missions
    ORDER BY started_at DESC, rowid DESC
    LIMIT 1`

	// First detection wins; re-recording a target is a no-op
	insertDetectionSQL = `
    INSERT INTO detections (
        mission_id, target_id,
        lat, lng,
        local_x, local_y,
        distance, detected_at
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (mission_id, target_id) DO NOTHING`

	listDetectionsSQL = `
    SELECT target_id, lat, lng, local_x, local_y, distance, detected_at
    FROM detections
    WHERE mission_id = ?
    ORDER BY detected_at, id`
)

// inTx runs fn in a transaction, rolling back unless fn and the commit
// succeed. Failures are reported under code.
func inTx(db *sql.DB, log logger.Logger, code errors.ErrorCode, fn func(*sql.Tx) error) error {
	errFactory := errors.New()

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(code, err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Debug().Err(rbErr).Msg("Failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(code, err)
	}

	return nil
}

// InitSchema creates every table and records the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating detection database...")

	err := inTx(db, log, ErrSchemaInitFailed, func(tx *sql.Tx) error {
		for _, t := range tables {
			if _, err := tx.Exec(t.ddl); err != nil {
				return errFactory.WithData(ErrSchemaInitFailed, struct {
					Table string
					Error string
				}{
					Table: t.name,
					Error: err.Error(),
				})
			}
		}

		if _, err := tx.Exec(recordVersionSQL, SchemaVersion); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, struct {
				Phase string
				Error string
			}{
				Phase: "record_version",
				Error: err.Error(),
			})
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("version", SchemaVersion).
		Msg("Detection schema initialized")

	return nil
}

// GetSchemaVersion returns the recorded schema version, 0 for an empty database
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := TableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	switch err := db.QueryRow(currentVersionSQL).Scan(&version); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, nil
	case err != nil:
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	return version, nil
}

func TableExists(db *sql.DB, name string) (bool, error) {
	var exists bool
	if err := db.QueryRow(tableExistsSQL, name).Scan(&exists); err != nil {
		return false, errors.New().WithData(ErrSchemaValidationFailed, struct {
			Table string
			Error string
		}{
			Table: name,
			Error: err.Error(),
		})
	}

	return exists, nil
}
