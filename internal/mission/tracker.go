package mission

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/detections"
	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/logger"
	"codeberg.org/mutker/dronedash/internal/metrics"
	"codeberg.org/mutker/dronedash/internal/telemetry"
)

// PositionSource says where the last agent position came from
type PositionSource string

const (
	PositionNone   PositionSource = ""
	PositionNED    PositionSource = "local_ned"
	PositionGlobal PositionSource = "global_gps"
)

// Tracker feeds agent positions and the latest arena into the geofence
// engine and announces each detection exactly once.
type Tracker struct {
	engine *geofence.Engine
	source telemetry.ChannelSource
	arena  arena.Source
	store  detections.Log
	log    logger.Logger

	mu        sync.RWMutex
	missionID string
	lastFix   PositionSource
}

// State is a read-only view of the running mission
type State struct {
	MissionID      string                 `json:"missionId"`
	Detections     geofence.Detections    `json:"detections"`
	Agent          geofence.AgentPosition `json:"agent"`
	PositionSource PositionSource         `json:"positionSource,omitempty"`
}

type TrackerOption func(*Tracker)

func WithLogger(log logger.Logger) TrackerOption {
	return func(t *Tracker) {
		t.log = log
	}
}

// WithDetectionLog persists detections to store. Without it detections
// live only as long as the process.
func WithDetectionLog(store detections.Log) TrackerOption {
	return func(t *Tracker) {
		t.store = store
	}
}

func NewTracker(engine *geofence.Engine, source telemetry.ChannelSource, arenaSrc arena.Source, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		engine: engine,
		source: source,
		arena:  arenaSrc,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start opens the mission in the detection log and re-applies any restored
// detections to the engine.
func (t *Tracker) Start(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	id, restored, err := t.store.Begin(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.missionID = id
	t.mu.Unlock()

	if n := t.engine.Restore(restored); n > 0 {
		t.log.Info().
			Str("mission", id).
			Int("restored", n).
			Bool("mission_complete", t.engine.MissionComplete()).
			Msg("Detections restored")
	}

	return nil
}

func (t *Tracker) MissionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.missionID
}

func (t *Tracker) State() State {
	t.mu.RLock()
	id, fix := t.missionID, t.lastFix
	t.mu.RUnlock()

	return State{
		MissionID:      id,
		Detections:     t.engine.CurrentDetections(),
		Agent:          t.engine.AgentLocalPosition(),
		PositionSource: fix,
	}
}

// Step runs one feed tick: update the agent position, then evaluate the
// latest arena targets. It reports false when there was no arena to
// evaluate against.
func (t *Tracker) Step(ctx context.Context) (geofence.Evaluation, bool) {
	data, hasArena := t.arena.Latest()

	if fix := t.updatePosition(ctx, data.Boundary); fix != PositionNone {
		t.mu.Lock()
		t.lastFix = fix
		t.mu.Unlock()
		metrics.ObserveAgent(t.engine.AgentLocalPosition().OutsideArena)
	}

	if !hasArena {
		return geofence.Evaluation{}, false
	}

	ev := t.engine.Evaluate(data.Targets, data.Boundary)
	t.announce(ctx, ev)
	metrics.ObserveDetections(len(ev.Newly), ev.MissionComplete)

	return ev, true
}

// updatePosition prefers the local NED fix and falls back to the global GPS
// fix converted against boundary. A missing or zero fix leaves the engine
// untouched.
func (t *Tracker) updatePosition(ctx context.Context, boundary []geofence.GPSPoint) PositionSource {
	if payload, ok := t.fetch(ctx, telemetry.ChannelLocalPosition); ok {
		local, _, _, err := telemetry.DecodeLocalPosition(payload)
		if err == nil {
			t.engine.UpdateAgentNED(local.X, local.Y)
			return PositionNED
		}
		t.log.Debug().Err(err).Msg("Ignoring undecodable local position")
	}

	if payload, ok := t.fetch(ctx, telemetry.ChannelGlobalPosition); ok {
		global, err := telemetry.DecodeGlobalPosition(payload)
		if err != nil {
			t.log.Debug().Err(err).Msg("Ignoring undecodable global position")
			return PositionNone
		}
		if global.Lat == 0 && global.Lon == 0 {
			return PositionNone
		}
		t.engine.UpdateAgentGPS(geofence.GPSPoint{Lat: global.Lat, Lng: global.Lon}, boundary)
		return PositionGlobal
	}

	return PositionNone
}

func (t *Tracker) fetch(ctx context.Context, channel telemetry.Channel) ([]byte, bool) {
	payload, ok, err := t.source.FetchLatest(ctx, channel)
	if err != nil {
		t.log.Warn().Err(err).Str("channel", string(channel)).Msg("Position channel read failed")
		return nil, false
	}

	return payload, ok
}

func (t *Tracker) announce(ctx context.Context, ev geofence.Evaluation) {
	if len(ev.Newly) == 0 && !ev.BecameComplete {
		return
	}

	expected := t.engine.CurrentDetections().Expected
	missionID := t.MissionID()

	for i, d := range ev.Newly {
		progress := len(ev.DetectedIDs) - len(ev.Newly) + i + 1
		t.log.Info().
			Str("target", d.TargetID).
			Float64("distance", d.Distance).
			Float64("x", d.Local.X).
			Float64("y", d.Local.Y).
			Int("detected", progress).
			Int("expected", expected).
			Msg("Safe spot detected")

		if t.store == nil || missionID == "" {
			continue
		}
		if err := t.store.Record(ctx, missionID, d); err != nil {
			if appErr, ok := err.(errors.Error); ok {
				t.log.ErrorWithCode(appErr).Str("target", d.TargetID).Msg("Failed to persist detection")
			} else {
				t.log.Error().Err(err).Str("target", d.TargetID).Msg("Failed to persist detection")
			}
		}
	}

	if ev.BecameComplete {
		t.log.Info().
			Str("mission", missionID).
			Int("detected", len(ev.DetectedIDs)).
			Msg("Mission complete")
	}
}

// Run steps every interval until ctx is cancelled
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	errFactory := errors.New()

	if interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.log.Info().Dur("interval", interval).Msg("Starting position feed")

	for {
		select {
		case <-ctx.Done():
			t.log.Debug().Msg("Position feed stopped")
			return nil
		case <-ticker.C:
			t.Step(ctx)
		}
	}
}
