package history

import (
	"context"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/logger"
	"codeberg.org/mutker/dronedash/internal/metrics"
	"codeberg.org/mutker/dronedash/internal/telemetry"
)

// Service is the telemetry history surface: it collects snapshots on a
// cadence and answers history queries with tagged results.
type Service struct {
	repo      Repository
	assembler telemetry.SnapshotAssembler
	log       logger.Logger
}

func NewService(repo Repository, assembler telemetry.SnapshotAssembler, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		assembler: assembler,
		log:       log,
	}
}

func success[T any](data T) Result[T] {
	return Result[T]{Status: StatusSuccess, Data: data}
}

func failure[T any](err error) Result[T] {
	return Result[T]{
		Status: StatusError,
		Error:  err.Error(),
		Code:   errors.CodeOf(err).String(),
	}
}

// Collect assembles one snapshot and appends it to history
func (s *Service) Collect(ctx context.Context) Result[*telemetry.Snapshot] {
	start := time.Now()

	snapshot := s.assembler.Assemble(ctx)
	empty := snapshot == nil || snapshot.Empty()

	stats, err := s.repo.Append(ctx, snapshot)
	if err != nil {
		metrics.ObserveCollect(metrics.ResultError, time.Since(start), empty)
		if appErr, ok := err.(errors.Error); ok {
			s.log.ErrorWithCode(appErr).Msg("Failed to store telemetry snapshot")
		} else {
			s.log.Error().Err(err).Msg("Failed to store telemetry snapshot")
		}
		return failure[*telemetry.Snapshot](err)
	}

	metrics.ObserveCollect(metrics.ResultSuccess, time.Since(start), empty)
	metrics.ObserveAppend(stats.Size, stats.Evicted)

	if stats.Evicted > 0 {
		s.log.Debug().
			Str("partition", stats.Partition).
			Int("evicted", stats.Evicted).
			Msg("Partition at capacity, oldest snapshots evicted")
	}

	return success(snapshot)
}

// Query returns history covering today and the daysBack-1 preceding days
func (s *Service) Query(ctx context.Context, daysBack int) Result[[]telemetry.Snapshot] {
	snapshots, err := s.repo.Query(ctx, daysBack)
	if err != nil {
		metrics.ObserveQuery(metrics.ResultError)
		s.log.Error().Err(err).Int("days", daysBack).Msg("History query failed")
		return failure[[]telemetry.Snapshot](err)
	}

	metrics.ObserveQuery(metrics.ResultSuccess)
	return success(snapshots)
}

// PurgeAll deletes every partition and reports how many were removed
func (s *Service) PurgeAll(ctx context.Context) Result[int] {
	removed, err := s.repo.PurgeAll(ctx)
	if err != nil {
		metrics.ObservePurge(metrics.ResultError, removed)
		s.log.Error().Err(err).Int("removed", removed).Msg("History purge failed")
		return failure[int](err)
	}

	metrics.ObservePurge(metrics.ResultSuccess, removed)
	return success(removed)
}

func (s *Service) Partitions(ctx context.Context) Result[[]PartitionInfo] {
	infos, err := s.repo.Partitions(ctx)
	if err != nil {
		return failure[[]PartitionInfo](err)
	}
	return success(infos)
}

// Run collects a snapshot immediately and then on every tick until ctx is
// cancelled. A failed collection is logged and the loop carries on.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	errFactory := errors.New()

	if interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", interval).Msg("Starting telemetry collection")

	s.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("Telemetry collection stopped")
			return nil
		case <-ticker.C:
			s.Collect(ctx)
		}
	}
}
