package telemetry_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var captureTime = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

type stubSource struct {
	payloads map[telemetry.Channel]string
	failures map[telemetry.Channel]error
}

func (s *stubSource) FetchLatest(_ context.Context, channel telemetry.Channel) ([]byte, bool, error) {
	if err, ok := s.failures[channel]; ok {
		return nil, false, err
	}
	payload, ok := s.payloads[channel]
	if !ok {
		return nil, false, nil
	}

	return []byte(payload), true, nil
}

func assemble(t *testing.T, src telemetry.ChannelSource) *telemetry.Snapshot {
	t.Helper()
	a := telemetry.NewAssembler(src, telemetry.WithClock(func() time.Time { return captureTime }))

	return a.Assemble(context.Background())
}

func TestAssembleAllChannels(t *testing.T) {
	src := &stubSource{payloads: map[telemetry.Channel]string{
		telemetry.ChannelBattery:        `{"voltages":[12600,65535],"current_battery":1530,"battery_remaining":87,"temperature":3150}`,
		telemetry.ChannelLocalPosition:  `{"time_boot_ms":1000,"x":1.5,"y":-2,"z":-3,"vx":0.1,"vy":0.2,"vz":-0.3}`,
		telemetry.ChannelGlobalPosition: `{"time_boot_ms":1200,"lat":120330000,"lon":771249500,"alt":920500,"relative_alt":3000}`,
		telemetry.ChannelAttitude:       `{"time_boot_ms":2000,"roll":0.1,"pitch":-0.2,"yaw":1.57,"rollspeed":0.01,"pitchspeed":0.02,"yawspeed":0.03}`,
		telemetry.ChannelIMU:            `{"xacc":1,"yacc":2,"zacc":-1000,"xgyro":4,"ygyro":5,"zgyro":6,"xmag":7,"ymag":8,"zmag":9}`,
		telemetry.ChannelRangefinder:    `{"distance":1.25}`,
		telemetry.ChannelHeartbeat:      `{"system_status":4,"base_mode":81,"custom_mode":5}`,
	}}

	s := assemble(t, src)

	assert.Equal(t, captureTime, s.Timestamp)
	assert.Equal(t, int64(2000), s.DeviceTimeMs)

	require.NotNil(t, s.Battery)
	assert.InDelta(t, 12.6, s.Battery.Voltage, 1e-9)
	assert.InDelta(t, 15.3, s.Battery.Current, 1e-9)
	assert.InDelta(t, 87, s.Battery.RemainingPct, 1e-9)
	assert.InDelta(t, 31.5, s.Battery.Temperature, 1e-9)

	require.NotNil(t, s.Position)
	require.NotNil(t, s.Position.Local)
	require.NotNil(t, s.Position.Global)
	assert.Equal(t, telemetry.LocalPosition{X: 1.5, Y: -2, Z: -3}, *s.Position.Local)
	assert.InDelta(t, 12.033, s.Position.Global.Lat, 1e-9)
	assert.InDelta(t, 77.12495, s.Position.Global.Lon, 1e-9)
	assert.InDelta(t, 920.5, s.Position.Global.Alt, 1e-9)
	assert.InDelta(t, 3, s.Position.Global.RelativeAlt, 1e-9)

	require.NotNil(t, s.Velocity)
	assert.Equal(t, telemetry.Velocity{VX: 0.1, VY: 0.2, VZ: -0.3}, *s.Velocity)

	require.NotNil(t, s.Attitude)
	assert.Equal(t, 0.03, s.Attitude.YawRate)

	require.NotNil(t, s.IMU)
	assert.Equal(t, telemetry.Vector3{X: 1, Y: 2, Z: -1000}, s.IMU.Accel)
	assert.Equal(t, telemetry.Vector3{X: 7, Y: 8, Z: 9}, s.IMU.Mag)

	require.NotNil(t, s.Rangefinder)
	assert.Equal(t, 1.25, s.Rangefinder.Distance)

	require.NotNil(t, s.Heartbeat)
	assert.Equal(t, telemetry.Heartbeat{SystemStatus: 4, BaseMode: 81, CustomMode: 5}, *s.Heartbeat)
}

func TestAssembleNoChannels(t *testing.T) {
	s := assemble(t, &stubSource{})

	assert.True(t, s.Empty())
	assert.Equal(t, captureTime, s.Timestamp)
	assert.Equal(t, captureTime.UnixMilli(), s.DeviceTimeMs)
}

func TestAssembleToleratesFailures(t *testing.T) {
	src := &stubSource{
		payloads: map[telemetry.Channel]string{
			telemetry.ChannelAttitude:    `{"roll":0.5`,
			telemetry.ChannelRangefinder: `{"distance":0}`,
		},
		failures: map[telemetry.Channel]error{
			telemetry.ChannelBattery: errors.New().New(telemetry.ErrChannelRead),
		},
	}

	s := assemble(t, src)

	assert.Nil(t, s.Battery)
	assert.Nil(t, s.Attitude)
	require.NotNil(t, s.Rangefinder)
	// zero is a reading, not absence
	assert.Equal(t, 0.0, s.Rangefinder.Distance)
	assert.Equal(t, captureTime.UnixMilli(), s.DeviceTimeMs)
}

func TestAssembleGlobalOnly(t *testing.T) {
	src := &stubSource{payloads: map[telemetry.Channel]string{
		telemetry.ChannelGlobalPosition: `{"lat":10000000,"lon":20000000}`,
	}}

	s := assemble(t, src)

	require.NotNil(t, s.Position)
	assert.Nil(t, s.Position.Local)
	assert.Nil(t, s.Velocity)
	assert.InDelta(t, 1.0, s.Position.Global.Lat, 1e-9)
}

func TestDeviceTimeFromLocalPosition(t *testing.T) {
	src := &stubSource{payloads: map[telemetry.Channel]string{
		telemetry.ChannelLocalPosition: `{"time_boot_ms":4242}`,
		telemetry.ChannelAttitude:      `{"roll":0}`,
	}}

	s := assemble(t, src)

	assert.Equal(t, int64(4242), s.DeviceTimeMs)
}

func TestSnapshotJSONOmitsAbsentRecords(t *testing.T) {
	s := &telemetry.Snapshot{
		Timestamp:   captureTime,
		Rangefinder: &telemetry.Rangefinder{Distance: 0},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "rangefinder")
	assert.NotContains(t, raw, "battery")
	assert.NotContains(t, raw, "position")
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ATTITUDE.json"), []byte(`{"roll":1}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local_position_ned.json"), []byte(`{"x":2}`), 0o600))

	src, err := telemetry.NewFileSource(telemetry.Config{ParamsDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	data, ok, err := src.FetchLatest(ctx, telemetry.ChannelAttitude)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"roll":1}`, string(data))

	data, ok, err = src.FetchLatest(ctx, telemetry.ChannelLocalPosition)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"x":2}`, string(data))

	_, ok, err = src.FetchLatest(ctx, telemetry.ChannelBattery)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileSourceReadError(t *testing.T) {
	dir := t.TempDir()
	// a directory where a file is expected cannot be read
	require.NoError(t, os.Mkdir(filepath.Join(dir, "HEARTBEAT.json"), 0o755))

	src, err := telemetry.NewFileSource(telemetry.Config{ParamsDir: dir})
	require.NoError(t, err)

	_, ok, err := src.FetchLatest(context.Background(), telemetry.ChannelHeartbeat)
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, errors.HasCode(err, telemetry.ErrChannelRead))
}

func TestFileSourceRequiresDir(t *testing.T) {
	_, err := telemetry.NewFileSource(telemetry.Config{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrInvalidConfig))
}
