package arena_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const safeZone = `Arena:
Corner1: [12.0345, 77.1234]
Corner2: [12.0345, 77.1265]
Corner3: [12.0315, 77.1265]
Corner4: [12.0315, 77.1234]

Detected Safe Spots
SafeSpots:
Spot1: [12.0331, 77.1245]
Spot2: [12.0320, 77.1255]
  Spot3: [12.0330, 77.1239]
Spot4: [not, numbers]
confidence: 0.93
`

func TestParse(t *testing.T) {
	boundary, targets, err := arena.Parse(strings.NewReader(safeZone))
	require.NoError(t, err)

	require.Len(t, boundary, 4)
	assert.Equal(t, geofence.GPSPoint{Lat: 12.0345, Lng: 77.1234}, boundary[0])
	assert.Equal(t, geofence.GPSPoint{Lat: 12.0315, Lng: 77.1234}, boundary[3])

	require.Len(t, targets, 3)
	assert.Equal(t, geofence.Target{ID: "Spot1", Lat: 12.0331, Lng: 77.1245}, targets[0])
	assert.Equal(t, "Spot3", targets[2].ID)
}

// the section decides where a line goes, not its name
func TestParseIgnoresLinesOutsideSections(t *testing.T) {
	input := "Corner1: [1, 2]\nSpot1: [3, 4]\nArena:\nSpot9: [5, 6]\nCorner1: [7, 8]\n"

	boundary, targets, err := arena.Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []geofence.GPSPoint{{Lat: 5, Lng: 6}, {Lat: 7, Lng: 8}}, boundary)
	assert.Empty(t, targets)
}

func TestParseEmpty(t *testing.T) {
	boundary, targets, err := arena.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, boundary)
	assert.Empty(t, targets)
}

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "safe_zone_data.txt")
	require.NoError(t, os.WriteFile(path, []byte(safeZone), 0o644))

	data, err := arena.NewFileProvider(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, arena.StatusSuccess, data.Status)
	assert.Len(t, data.Boundary, 4)
	assert.Len(t, data.Targets, 3)
	assert.False(t, data.Timestamp.IsZero())
}

func TestFileProviderMissing(t *testing.T) {
	_, err := arena.NewFileProvider(filepath.Join(t.TempDir(), "nope.txt")).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, arena.ErrUnavailable))
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	doc := `boundary:
  - {lat: 0, lng: 0}
  - {lat: 0, lng: 1}
  - {lat: 1, lng: 1}
  - {lat: 1, lng: 0}
targets:
  - {id: A, lat: 0.5, lng: 0.5}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	data, err := arena.NewYAMLProvider(path).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, data.Boundary, 4)
	require.Len(t, data.Targets, 1)
	assert.Equal(t, geofence.Target{ID: "A", Lat: 0.5, Lng: 0.5}, data.Targets[0])
	assert.False(t, data.Timestamp.IsZero())
}

func TestYAMLProviderInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte("boundary: [oops"), 0o644))

	_, err := arena.NewYAMLProvider(path).Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, arena.ErrParseFailed))
}

func TestMockData(t *testing.T) {
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	data := arena.MockData(ts)

	assert.Len(t, data.Boundary, 4)
	assert.Len(t, data.Targets, 3)
	assert.Equal(t, ts, data.Timestamp)

	// every mock target lies inside the mock arena
	conv := geofence.NewConverter(geofence.DefaultConfig())
	for _, target := range data.Targets {
		_, outside := conv.ToLocal(target.Point(), data.Boundary)
		assert.False(t, outside, target.ID)
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, arena.DefaultConfig().Validate())

	cfg := arena.DefaultConfig()
	cfg.Source = "scp"
	assert.True(t, errors.HasCode(cfg.Validate(), arena.ErrInvalidSource))

	cfg = arena.DefaultConfig()
	cfg.Path = ""
	assert.True(t, errors.HasCode(cfg.Validate(), arena.ErrMissingPath))

	cfg.Source = arena.SourceMock
	assert.NoError(t, cfg.Validate())

	cfg.Interval = 0
	assert.True(t, errors.HasCode(cfg.Validate(), errors.ErrInvalidInterval))
}

func TestNewProvider(t *testing.T) {
	p, err := arena.NewProvider(arena.Config{Source: arena.SourceMock, Interval: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &arena.MockProvider{}, p)

	p, err = arena.NewProvider(arena.Config{Source: arena.SourceYAML, Path: "a.yaml", Interval: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &arena.YAMLProvider{}, p)

	_, err = arena.NewProvider(arena.Config{Source: "scp", Interval: time.Second})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, arena.ErrInvalidConfig))
}

type scriptedProvider struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (p *scriptedProvider) Fetch(_ context.Context) (arena.Data, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.calls
	p.calls++
	if i < len(p.results) && p.results[i] != nil {
		return arena.Data{}, p.results[i]
	}

	return arena.Data{
		Boundary: []geofence.GPSPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}, {Lat: 1, Lng: 0}},
		Targets:  []geofence.Target{{ID: "A", Lat: float64(i), Lng: 0}},
	}, nil
}

func TestPollerKeepsLastGoodData(t *testing.T) {
	fail := errors.New().New(arena.ErrUnavailable)
	provider := &scriptedProvider{results: []error{fail, nil, fail}}
	p := arena.NewPoller(provider)
	ctx := context.Background()

	_, ok := p.Latest()
	assert.False(t, ok)

	_, err := p.Fetch(ctx)
	require.Error(t, err)
	_, ok = p.Latest()
	assert.False(t, ok, "failed first fetch must not produce data")
	assert.NotEmpty(t, p.Status().LastError)

	_, err = p.Fetch(ctx)
	require.NoError(t, err)
	latest, ok := p.Latest()
	require.True(t, ok)
	assert.Equal(t, arena.StatusSuccess, latest.Status)
	assert.Equal(t, 1.0, latest.Targets[0].Lat)

	_, err = p.Fetch(ctx)
	require.Error(t, err)
	latest, ok = p.Latest()
	require.True(t, ok)
	assert.Equal(t, 1.0, latest.Targets[0].Lat)

	status := p.Status()
	require.NotNil(t, status.Data)
	assert.Equal(t, 3, status.Fetches)
	assert.NotEmpty(t, status.LastError)
}

func TestPollerStatusJSON(t *testing.T) {
	p := arena.NewPoller(&scriptedProvider{})

	_, err := p.Fetch(context.Background())
	require.NoError(t, err)

	status := p.Status()
	require.NotNil(t, status.Data)
	assert.Equal(t, arena.StatusSuccess, status.Data.Status)

	raw, err := json.Marshal(status)
	require.NoError(t, err)

	var decoded struct {
		Data struct {
			Status arena.Status `json:"status"`
		} `json:"data"`
		Fetches int `json:"fetches"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, arena.StatusSuccess, decoded.Data.Status)
	assert.Equal(t, 1, decoded.Fetches)
}

func TestPollerMockFirst(t *testing.T) {
	provider := &scriptedProvider{}
	p := arena.NewPoller(provider, arena.WithMockFirst(arena.NewMockProvider()))
	ctx := context.Background()

	data, err := p.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Spot1", data.Targets[0].ID)
	assert.Zero(t, provider.calls)

	data, err = p.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "A", data.Targets[0].ID)
}

func TestPollerRun(t *testing.T) {
	provider := &scriptedProvider{}
	p := arena.NewPoller(provider)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return p.Status().Fetches >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.Error(t, p.Run(context.Background(), 0))
}
