package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/dronedash/internal/api"
	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/geofence"
	"codeberg.org/mutker/dronedash/internal/history"
	"codeberg.org/mutker/dronedash/internal/mission"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var now = time.Date(2024, 5, 7, 12, 0, 0, 0, time.UTC)

type clockAssembler struct {
	n int
}

func (a *clockAssembler) Assemble(context.Context) *telemetry.Snapshot {
	a.n++
	return &telemetry.Snapshot{
		Timestamp:    now.Add(time.Duration(a.n) * time.Second),
		DeviceTimeMs: int64(a.n),
		Battery:      &telemetry.Battery{Voltage: 12.4},
	}
}

type brokenHistory struct{}

func (brokenHistory) fail() (string, string) {
	err := errors.New().New(history.ErrStorageRead)
	return err.Error(), err.Code().String()
}

func (b brokenHistory) Collect(context.Context) history.Result[*telemetry.Snapshot] {
	msg, code := b.fail()
	return history.Result[*telemetry.Snapshot]{Status: history.StatusError, Error: msg, Code: code}
}

func (b brokenHistory) Query(context.Context, int) history.Result[[]telemetry.Snapshot] {
	msg, code := b.fail()
	return history.Result[[]telemetry.Snapshot]{Status: history.StatusError, Error: msg, Code: code}
}

func (b brokenHistory) PurgeAll(context.Context) history.Result[int] {
	msg, code := b.fail()
	return history.Result[int]{Status: history.StatusError, Error: msg, Code: code}
}

func (b brokenHistory) Partitions(context.Context) history.Result[[]history.PartitionInfo] {
	msg, code := b.fail()
	return history.Result[[]history.PartitionInfo]{Status: history.StatusError, Error: msg, Code: code}
}

type fixedMission struct {
	state mission.State
}

func (m fixedMission) State() mission.State {
	return m.state
}

type fixedArena struct {
	status arena.PollerStatus
}

func (a fixedArena) Status() arena.PollerStatus {
	return a.status
}

func newServer(t *testing.T) http.Handler {
	t.Helper()

	store, err := history.NewStore(history.Config{
		Dir:              t.TempDir(),
		MaxPartitionSize: history.MaxPartitionSize,
		Location:         time.UTC,
	}, history.WithStoreClock(func() time.Time { return now }))
	require.NoError(t, err)

	svc := history.NewService(store, &clockAssembler{}, nil)
	data := arena.MockData(now)

	m := fixedMission{state: mission.State{
		MissionID: "mission-1",
		Detections: geofence.Detections{
			DetectedIDs: []string{"Spot1"},
			Expected:    3,
		},
		Agent: geofence.AgentPosition{X: 3.2, Y: 6.4, Known: true},
	}}

	return api.NewServer(svc, m, fixedArena{status: arena.PollerStatus{Data: &data, Fetches: 1}},
		api.WithClock(func() time.Time { return now })).Handler()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHistoryLifecycle(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []any{}, body["data"])

	for i := 0; i < 2; i++ {
		rec = do(t, h, http.MethodPost, "/api/history/collect")
		require.Equal(t, http.StatusOK, rec.Code)
		body = decode(t, rec)
		assert.Equal(t, "success", body["status"])
		assert.NotNil(t, body["data"])
	}

	rec = do(t, h, http.MethodGet, "/api/history?days=7")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, float64(2), body["count"])

	rec = do(t, h, http.MethodGet, "/api/history/partitions")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["deletedPartitions"])

	rec = do(t, h, http.MethodDelete, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decode(t, rec)["deletedPartitions"])
}

func TestHistoryRejectsBadDays(t *testing.T) {
	h := newServer(t)

	for _, q := range []string{"abc", "0", "-3", "1000"} {
		rec := do(t, h, http.MethodGet, "/api/history?days="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		body := decode(t, rec)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, string(api.ErrInvalidQuery), body["code"])
	}
}

func TestHistoryFailuresAreTagged(t *testing.T) {
	h := api.NewServer(brokenHistory{}, nil, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/history?days=2")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, string(history.ErrStorageRead), body["code"])
	assert.Equal(t, []any{}, body["data"])

	rec = do(t, h, http.MethodDelete, "/api/history")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", decode(t, rec)["status"])

	rec = do(t, h, http.MethodPost, "/api/history/collect")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestExport(t *testing.T) {
	h := newServer(t)
	do(t, h, http.MethodPost, "/api/history/collect")

	rec := do(t, h, http.MethodGet, "/api/history/export?days=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "telemetry_2024-05-07_3d.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Telemetry")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGeofence(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/api/geofence")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status  string             `json:"status"`
		Mission mission.State      `json:"mission"`
		Arena   arena.PollerStatus `json:"arena"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "mission-1", body.Mission.MissionID)
	assert.Equal(t, []string{"Spot1"}, body.Mission.Detections.DetectedIDs)
	require.NotNil(t, body.Arena.Data)
	assert.Len(t, body.Arena.Data.Targets, 3)
}

func TestMockArena(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/api/arena/mock")
	require.Equal(t, http.StatusOK, rec.Code)

	var data arena.Data
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Len(t, data.Boundary, 4)
	assert.Equal(t, "Spot1", data.Targets[0].ID)
	assert.Equal(t, arena.StatusSuccess, data.Status)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newServer(t)

	rec := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dronedash_")
}

func TestMethodNotAllowed(t *testing.T) {
	rec := do(t, newServer(t), http.MethodPut, "/api/history")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
