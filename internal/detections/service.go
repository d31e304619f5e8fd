package detections

import (
	"context"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/logger"
	"github.com/google/uuid"
)

type service struct {
	repo  Repository
	cfg   Config
	log   logger.Logger
	newID func() string
}

type noopLog struct{}

func NewService(cfg Config, log logger.Logger) (Log, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}
	if log == nil {
		log = logger.Nop()
	}

	if !cfg.Enabled {
		log.Debug().Msg("Detection log disabled, using no-op log")
		return &noopLog{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return newService(repo, cfg, log), nil
}

func newService(repo Repository, cfg Config, log logger.Logger) *service {
	return &service{
		repo:  repo,
		cfg:   cfg,
		log:   log,
		newID: func() string { return uuid.NewString() },
	}
}

func (s *service) Begin(ctx context.Context) (string, []geofence.Detection, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return "", nil, errFactory.Wrap(ErrOperationTimeout, err)
	}

	if s.cfg.Restore {
		id, ok, err := s.repo.LatestMission()
		if err != nil {
			return "", nil, err
		}
		if ok {
			restored, err := s.repo.List(id)
			if err != nil {
				return "", nil, err
			}
			s.log.Info().
				Str("mission", id).
				Int("detections", len(restored)).
				Msg("Resuming mission from detection log")
			return id, restored, nil
		}
	}

	id := s.newID()
	if err := s.repo.StartMission(id); err != nil {
		return "", nil, err
	}

	s.log.Info().Str("mission", id).Msg("Mission started")

	return id, nil, nil
}

func (s *service) Record(ctx context.Context, missionID string, d geofence.Detection) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	return s.repo.Record(missionID, d)
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func (*service) Enabled() bool {
	return true
}

// The no-op log still hands out mission ids so logs can be correlated
func (*noopLog) Begin(_ context.Context) (string, []geofence.Detection, error) {
	return uuid.NewString(), nil, nil
}

func (*noopLog) Record(_ context.Context, _ string, _ geofence.Detection) error {
	return nil
}

func (*noopLog) Close() error {
	return nil
}

func (*noopLog) Enabled() bool {
	return false
}
