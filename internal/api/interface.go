package api

import (
	"context"

	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/history"
	"codeberg.org/mutker/dronedash/internal/mission"
	"codeberg.org/mutker/dronedash/internal/telemetry"
)

// HistoryService is the history surface the API serves
type HistoryService interface {
	Collect(ctx context.Context) history.Result[*telemetry.Snapshot]
	Query(ctx context.Context, daysBack int) history.Result[[]telemetry.Snapshot]
	PurgeAll(ctx context.Context) history.Result[int]
	Partitions(ctx context.Context) history.Result[[]history.PartitionInfo]
}

// MissionView exposes the running mission's detection state
type MissionView interface {
	State() mission.State
}

// ArenaView exposes the arena poller's current data
type ArenaView interface {
	Status() arena.PollerStatus
}

type historyResponse struct {
	Status history.Status       `json:"status"`
	Data   []telemetry.Snapshot `json:"data"`
	Count  int                  `json:"count"`
	Error  string               `json:"error,omitempty"`
	Code   string               `json:"code,omitempty"`
}

type purgeResponse struct {
	Status            history.Status `json:"status"`
	DeletedPartitions int            `json:"deletedPartitions"`
	Error             string         `json:"error,omitempty"`
	Code              string         `json:"code,omitempty"`
}

type geofenceResponse struct {
	Status  history.Status     `json:"status"`
	Mission mission.State      `json:"mission"`
	Arena   arena.PollerStatus `json:"arena"`
}

type errorResponse struct {
	Status history.Status `json:"status"`
	Error  string         `json:"error"`
	Code   string         `json:"code,omitempty"`
}
