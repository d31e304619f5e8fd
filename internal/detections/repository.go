package detections

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db     *sql.DB
	logger logger.Logger
	cfg    Config
	mu     sync.Mutex
	now    func() time.Time
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}
	if log == nil {
		log = logger.Nop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_foreign_keys=on&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}
	// sqlite serializes writers anyway; one connection keeps WAL simple
	db.SetMaxOpenConns(1)

	if err := ValidateAndUpdateSchema(db, cfg.backupDir(), log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Detection repository initialized")

	return &repository{
		db:     db,
		logger: log,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

func (r *repository) StartMission(missionID string) error {
	errFactory := errors.New()

	if missionID == "" {
		return errFactory.New(ErrInvalidMission)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec(insertMissionSQL, missionID, r.now().UnixNano()); err != nil {
		return errFactory.WithData(ErrStorageAccess, struct {
			Phase   string
			Mission string
			Error   string
		}{
			Phase:   "start_mission",
			Mission: missionID,
			Error:   err.Error(),
		})
	}

	return nil
}

func (r *repository) LatestMission() (string, bool, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	err := r.db.QueryRow(latestMissionSQL).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errFactory.Wrap(ErrStorageAccess, err)
	}

	return id, true, nil
}

func (r *repository) Record(missionID string, d geofence.Detection) error {
	errFactory := errors.New()

	if missionID == "" {
		return errFactory.New(ErrInvalidMission)
	}
	if d.TargetID == "" {
		return errFactory.New(ErrInvalidDetection)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if _, err := tx.Exec(insertDetectionSQL,
		missionID, d.TargetID,
		d.Target.Lat, d.Target.Lng,
		d.Local.X, d.Local.Y,
		d.Distance, d.DetectedAt.UnixNano(),
	); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error().Err(rbErr).Msg("Failed to roll back transaction")
		}
		return errFactory.WithData(ErrTransactionFailed, struct {
			Mission string
			Target  string
			Error   string
		}{
			Mission: missionID,
			Target:  d.TargetID,
			Error:   err.Error(),
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().
		Str("mission", missionID).
		Str("target", d.TargetID).
		Msg("Detection recorded")

	return nil
}

func (r *repository) List(missionID string) ([]geofence.Detection, error) {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(listDetectionsSQL, missionID)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var out []geofence.Detection
	for rows.Next() {
		var (
			d          geofence.Detection
			detectedAt int64
		)
		if err := rows.Scan(
			&d.TargetID,
			&d.Target.Lat, &d.Target.Lng,
			&d.Local.X, &d.Local.Y,
			&d.Distance, &detectedAt,
		); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		d.Target.ID = d.TargetID
		d.DetectedAt = time.Unix(0, detectedAt)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (r *repository) Close() error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Info().Msg("Detection repository closed gracefully")

	return nil
}
