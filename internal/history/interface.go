package history

import (
	"context"

	"codeberg.org/mutker/dronedash/internal/telemetry"
)

// Repository is the day-partitioned snapshot log
type Repository interface {
	Append(ctx context.Context, snapshot *telemetry.Snapshot) (AppendStats, error)
	Query(ctx context.Context, daysBack int) ([]telemetry.Snapshot, error)
	PurgeAll(ctx context.Context) (int, error)
	Partitions(ctx context.Context) ([]PartitionInfo, error)
}

// AppendStats describes the partition an append landed in
type AppendStats struct {
	Partition string
	Size      int
	Evicted   int
	Bytes     int
}

// PartitionInfo describes one partition file on disk
type PartitionInfo struct {
	Key       string `json:"key"`
	Bytes     int64  `json:"bytes"`
	HumanSize string `json:"size"`
}

// Status tags a Result as success or error
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the tagged outcome returned across the query surface. Failures
// are carried in Error and Code, never as a Go error or panic.
type Result[T any] struct {
	Status Status `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// OK reports whether the result carries data
func (r Result[T]) OK() bool {
	return r.Status == StatusSuccess
}
