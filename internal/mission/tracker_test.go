package mission_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/mission"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type positionSource struct {
	mu       sync.Mutex
	payloads map[telemetry.Channel]string
}

func (s *positionSource) FetchLatest(_ context.Context, channel telemetry.Channel) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payloads[channel]
	if !ok {
		return nil, false, nil
	}
	return []byte(p), true, nil
}

func (s *positionSource) setGlobal(lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.payloads == nil {
		s.payloads = make(map[telemetry.Channel]string)
	}
	s.payloads[telemetry.ChannelGlobalPosition] = fmt.Sprintf(`{"lat":%d,"lon":%d}`,
		int64(lat*1e7+0.5), int64(lng*1e7+0.5))
}

type staticArena struct {
	data arena.Data
	ok   bool
}

func (a staticArena) Latest() (arena.Data, bool) {
	return a.data, a.ok
}

type memoryLog struct {
	mu       sync.Mutex
	restored []geofence.Detection
	recorded []geofence.Detection
}

func (l *memoryLog) Begin(context.Context) (string, []geofence.Detection, error) {
	return "mission-1", l.restored, nil
}

func (l *memoryLog) Record(_ context.Context, _ string, d geofence.Detection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorded = append(l.recorded, d)
	return nil
}

func (*memoryLog) Close() error  { return nil }
func (*memoryLog) Enabled() bool { return true }

func mockArena() staticArena {
	return staticArena{data: arena.MockData(time.Now()), ok: true}
}

func TestTrackerDetectsEachSpotOnce(t *testing.T) {
	src := &positionSource{}
	store := &memoryLog{}
	tr := mission.NewTracker(geofence.NewEngine(geofence.DefaultConfig()), src, mockArena(),
		mission.WithDetectionLog(store))
	ctx := context.Background()
	require.NoError(t, tr.Start(ctx))
	assert.Equal(t, "mission-1", tr.MissionID())

	targets := arena.MockData(time.Now()).Targets
	for i, target := range targets {
		src.setGlobal(target.Lat, target.Lng)

		ev, ok := tr.Step(ctx)
		require.True(t, ok)
		require.Len(t, ev.Newly, 1, target.ID)
		assert.Equal(t, target.ID, ev.Newly[0].TargetID)
		assert.Equal(t, i == len(targets)-1, ev.MissionComplete)

		// staying on the spot does not detect it again
		ev, _ = tr.Step(ctx)
		assert.Empty(t, ev.Newly)
	}

	state := tr.State()
	assert.True(t, state.Detections.MissionComplete)
	assert.Len(t, state.Detections.DetectedIDs, 3)
	assert.Equal(t, mission.PositionGlobal, state.PositionSource)
	assert.False(t, state.Agent.OutsideArena)
	assert.Len(t, store.recorded, 3)
}

func TestTrackerPrefersLocalPosition(t *testing.T) {
	src := &positionSource{payloads: map[telemetry.Channel]string{
		telemetry.ChannelLocalPosition:  `{"x":2,"y":-4,"z":-1}`,
		telemetry.ChannelGlobalPosition: `{"lat":120331000,"lon":771245000}`,
	}}
	tr := mission.NewTracker(geofence.NewEngine(geofence.DefaultConfig()), src, mockArena())

	tr.Step(context.Background())

	state := tr.State()
	assert.Equal(t, mission.PositionNED, state.PositionSource)
	assert.InDelta(t, 5.5, state.Agent.X, 1e-9)
	assert.InDelta(t, 4.0, state.Agent.Y, 1e-9)
}

func TestTrackerIgnoresZeroFix(t *testing.T) {
	src := &positionSource{payloads: map[telemetry.Channel]string{
		telemetry.ChannelGlobalPosition: `{"lat":0,"lon":0}`,
	}}
	tr := mission.NewTracker(geofence.NewEngine(geofence.DefaultConfig()), src, mockArena())

	ev, ok := tr.Step(context.Background())
	assert.True(t, ok)
	assert.Empty(t, ev.Newly)
	assert.False(t, tr.State().Agent.Known)
	assert.Equal(t, mission.PositionNone, tr.State().PositionSource)
}

func TestTrackerWithoutArena(t *testing.T) {
	src := &positionSource{}
	src.setGlobal(12.0331, 77.1245)
	tr := mission.NewTracker(geofence.NewEngine(geofence.DefaultConfig()), src, staticArena{})

	ev, ok := tr.Step(context.Background())
	assert.False(t, ok)
	assert.Empty(t, ev.DetectedIDs)

	// position is still tracked through the fallback conversion
	assert.True(t, tr.State().Agent.Known)
}

func TestTrackerRestoresDetections(t *testing.T) {
	store := &memoryLog{restored: []geofence.Detection{
		{TargetID: "Spot1"},
		{TargetID: "Spot2"},
	}}
	src := &positionSource{}
	tr := mission.NewTracker(geofence.NewEngine(geofence.DefaultConfig()), src, mockArena(),
		mission.WithDetectionLog(store))
	ctx := context.Background()
	require.NoError(t, tr.Start(ctx))

	assert.ElementsMatch(t, []string{"Spot1", "Spot2"}, tr.State().Detections.DetectedIDs)

	src.setGlobal(12.0331, 77.1245)
	ev, _ := tr.Step(ctx)
	assert.Empty(t, ev.Newly, "restored targets are not announced again")

	src.setGlobal(12.0330, 77.1239)
	ev, _ = tr.Step(ctx)
	require.Len(t, ev.Newly, 1)
	assert.True(t, ev.BecameComplete)
	assert.Len(t, store.recorded, 1)
}

func TestTrackerRun(t *testing.T) {
	src := &positionSource{}
	src.setGlobal(12.0320, 77.1255)
	tr := mission.NewTracker(geofence.NewEngine(geofence.DefaultConfig()), src, mockArena())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return len(tr.State().Detections.DetectedIDs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.Error(t, tr.Run(context.Background(), 0))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, mission.DefaultConfig().Validate())
	assert.Error(t, mission.Config{}.Validate())
}
