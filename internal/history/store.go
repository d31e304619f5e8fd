package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/logger"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/dustin/go-humanize"
)

// Store keeps one JSON array file per calendar day. All writes go through a
// single mutex, and every partition is replaced atomically, so a crash mid
// write loses the write but never leaves a half-written partition.
type Store struct {
	dir     string
	maxSize int
	loc     *time.Location
	now     func() time.Time
	log     logger.Logger
	mu      sync.RWMutex
}

type StoreOption func(*Store)

// WithStoreClock overrides the clock that decides which days Query reads
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func WithStoreLogger(log logger.Logger) StoreOption {
	return func(s *Store) {
		s.log = log
	}
}

func NewStore(cfg Config, opts ...StoreOption) (*Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if err := os.MkdirAll(cfg.Dir, defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.Dir,
			Error: err.Error(),
		})
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Store{
		dir:     cfg.Dir,
		maxSize: cfg.MaxPartitionSize,
		loc:     loc,
		now:     time.Now,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.removeStaleTemp()

	s.log.Debug().
		Str("dir", s.dir).
		Int("max_partition_size", s.maxSize).
		Str("timezone", s.loc.String()).
		Msg("History store initialized")

	return s, nil
}

// PartitionKey returns the YYYY-MM-DD key of t in loc
func PartitionKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateLayout)
}

func (s *Store) partitionPath(key string) string {
	return filepath.Join(s.dir, partitionPrefix+key+partitionSuffix)
}

// Append writes snapshot into the partition of its capture day, evicting the
// oldest entries of that partition beyond the retention cap. The directory is
// recreated if it disappeared since the store was opened.
//
// A partition that no longer parses is not overwritten: it is renamed to
// <name>.corrupt-<unixnano> next to the partition, with its bytes untouched,
// and the day starts a fresh partition. Query never moves files; it skips a
// corrupt partition where it lies.
func (s *Store) Append(ctx context.Context, snapshot *telemetry.Snapshot) (AppendStats, error) {
	errFactory := errors.New()

	if snapshot == nil {
		return AppendStats{}, errFactory.New(ErrInvalidSnapshot)
	}
	if err := ctx.Err(); err != nil {
		return AppendStats{}, errFactory.Wrap(ErrOperationTimeout, err)
	}

	key := PartitionKey(snapshot.Timestamp, s.loc)
	path := s.partitionPath(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readPartition(path)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		entries = nil
	case isDecodeError(err):
		s.quarantine(path, key, err)
		entries = nil
	default:
		return AppendStats{}, errFactory.WithData(ErrStorageRead, struct {
			Partition string
			Error     string
		}{
			Partition: key,
			Error:     err.Error(),
		})
	}

	if err := os.MkdirAll(s.dir, defaultDirPerm); err != nil {
		return AppendStats{}, errFactory.WithData(ErrStorageWrite, struct {
			Partition string
			Error     string
		}{
			Partition: key,
			Error:     err.Error(),
		})
	}

	entries = append(entries, *snapshot)

	evicted := 0
	if len(entries) > s.maxSize {
		evicted = len(entries) - s.maxSize
		entries = append([]telemetry.Snapshot(nil), entries[evicted:]...)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return AppendStats{}, errFactory.Wrap(ErrStorageWrite, err)
	}

	if err := writeAtomic(s.dir, path, data); err != nil {
		return AppendStats{}, errFactory.WithData(ErrStorageWrite, struct {
			Partition string
			Error     string
		}{
			Partition: key,
			Error:     err.Error(),
		})
	}

	stats := AppendStats{
		Partition: key,
		Size:      len(entries),
		Evicted:   evicted,
		Bytes:     len(data),
	}

	s.log.Debug().
		Str("partition", key).
		Int("size", stats.Size).
		Int("evicted", evicted).
		Str("bytes", humanize.Bytes(uint64(len(data)))).
		Msg("Snapshot appended")

	return stats, nil
}

// Query returns the snapshots of today and the daysBack-1 preceding days,
// sorted by capture time. Missing or unreadable partitions count as empty.
func (s *Store) Query(ctx context.Context, daysBack int) ([]telemetry.Snapshot, error) {
	errFactory := errors.New()

	if daysBack < 1 {
		daysBack = 1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := s.now().In(s.loc).Date()

	merged := make([]telemetry.Snapshot, 0)
	// oldest day first so the stable sort keeps insertion order on ties
	for i := daysBack - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, errFactory.Wrap(ErrOperationTimeout, err)
		}

		key := time.Date(y, m, d-i, 12, 0, 0, 0, s.loc).Format(dateLayout)
		entries, err := readPartition(s.partitionPath(key))
		if err != nil {
			if !os.IsNotExist(err) {
				s.log.Warn().
					Err(err).
					Str("partition", key).
					Msg("Skipping unreadable history partition")
			}
			continue
		}

		merged = append(merged, entries...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	return merged, nil
}

// PurgeAll removes every partition file and returns how many were removed.
// Purging an empty or missing store removes nothing and is not an error.
func (s *Store) PurgeAll(ctx context.Context) (int, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return 0, errFactory.Wrap(ErrOperationTimeout, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.partitionKeys()
	if err != nil {
		return 0, errFactory.Wrap(ErrStoragePurge, err)
	}

	removed := 0
	var failures []error
	for _, key := range keys {
		if err := os.Remove(s.partitionPath(key)); err != nil && !os.IsNotExist(err) {
			s.log.Error().Err(err).Str("partition", key).Msg("Failed to delete history partition")
			failures = append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}
		removed++
	}

	s.log.Info().Int("removed", removed).Msg("History purged")

	if len(failures) > 0 {
		return removed, errFactory.Wrap(ErrStoragePurge, errors.Join(failures...))
	}

	return removed, nil
}

// Partitions lists the partition files currently on disk, oldest first
func (s *Store) Partitions(_ context.Context) ([]PartitionInfo, error) {
	errFactory := errors.New()

	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, err := s.partitionKeys()
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageRead, err)
	}

	infos := make([]PartitionInfo, 0, len(keys))
	for _, key := range keys {
		fi, err := os.Stat(s.partitionPath(key))
		if err != nil {
			continue
		}
		infos = append(infos, PartitionInfo{
			Key:       key,
			Bytes:     fi.Size(),
			HumanSize: humanize.Bytes(uint64(fi.Size())),
		})
	}

	return infos, nil
}

// partitionKeys returns the sorted date keys of the partition files in dir
func (s *Store) partitionKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key, ok := parsePartitionName(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

func parsePartitionName(name string) (string, bool) {
	if !strings.HasPrefix(name, partitionPrefix) || !strings.HasSuffix(name, partitionSuffix) {
		return "", false
	}

	key := strings.TrimSuffix(strings.TrimPrefix(name, partitionPrefix), partitionSuffix)
	if _, err := time.Parse(dateLayout, key); err != nil {
		return "", false
	}

	return key, true
}

// quarantine moves a partition that no longer parses out of the way so the
// day can keep recording. The bad file is kept for inspection.
func (s *Store) quarantine(path, key string, cause error) {
	target := fmt.Sprintf("%s%s-%d", path, corruptSuffix, s.now().UnixNano())
	if err := os.Rename(path, target); err != nil {
		s.log.Error().Err(err).Str("partition", key).Msg("Failed to quarantine corrupt partition")
		return
	}

	s.log.Warn().
		Err(cause).
		Str("partition", key).
		Str("moved_to", target).
		Msg("Corrupt history partition quarantined")
}

func (s *Store) removeStaleTemp() {
	matches, err := filepath.Glob(filepath.Join(s.dir, tempPattern))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			s.log.Debug().Str("path", m).Msg("Removed stale temp file")
		}
	}
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return "decode partition: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func isDecodeError(err error) bool {
	var de *decodeError
	return errors.As(err, &de)
}

func readPartition(path string) ([]telemetry.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []telemetry.Snapshot
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &decodeError{err: err}
	}

	return entries, nil
}

func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, defaultFilePerm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}

	return nil
}
