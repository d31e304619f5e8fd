package telemetry

import (
	"context"
	"time"
)

// Channel names one independently produced telemetry stream. The value is
// the MAVLink message name the upstream bridge dumps it under.
type Channel string

const (
	ChannelBattery        Channel = "BATTERY_STATUS"
	ChannelLocalPosition  Channel = "LOCAL_POSITION_NED"
	ChannelGlobalPosition Channel = "GLOBAL_POSITION_INT"
	ChannelAttitude       Channel = "ATTITUDE"
	ChannelIMU            Channel = "RAW_IMU"
	ChannelRangefinder    Channel = "RANGEFINDER"
	ChannelHeartbeat      Channel = "HEARTBEAT"
)

// Channels lists every channel in assembly order
var Channels = []Channel{
	ChannelBattery,
	ChannelLocalPosition,
	ChannelGlobalPosition,
	ChannelAttitude,
	ChannelIMU,
	ChannelRangefinder,
	ChannelHeartbeat,
}

// ChannelSource returns the latest raw payload of a channel. A channel that
// has not been produced yet is reported as ok == false with a nil error;
// errors are reserved for genuine I/O failures.
type ChannelSource interface {
	FetchLatest(ctx context.Context, channel Channel) (payload []byte, ok bool, err error)
}

// SnapshotAssembler builds one snapshot per collection tick
type SnapshotAssembler interface {
	Assemble(ctx context.Context) *Snapshot
}

// Snapshot is one consistent telemetry sample. Every sub-record is optional
// and independent of the others; nil means the channel was absent.
type Snapshot struct {
	Timestamp    time.Time    `json:"timestamp"`
	DeviceTimeMs int64        `json:"deviceTimeMs"`
	Battery      *Battery     `json:"battery,omitempty"`
	Position     *Position    `json:"position,omitempty"`
	Attitude     *Attitude    `json:"attitude,omitempty"`
	Velocity     *Velocity    `json:"velocity,omitempty"`
	IMU          *IMU         `json:"imu,omitempty"`
	Rangefinder  *Rangefinder `json:"rangefinder,omitempty"`
	Heartbeat    *Heartbeat   `json:"heartbeat,omitempty"`
}

// Empty reports whether no channel contributed to the snapshot
func (s *Snapshot) Empty() bool {
	return s.Battery == nil && s.Position == nil && s.Attitude == nil &&
		s.Velocity == nil && s.IMU == nil && s.Rangefinder == nil && s.Heartbeat == nil
}

type Battery struct {
	Voltage      float64 `json:"voltage"`      // V
	Current      float64 `json:"current"`      // A
	RemainingPct float64 `json:"remainingPct"` // %
	Temperature  float64 `json:"temperature"`  // °C
}

// Position holds whichever of the local and global fixes were reported
type Position struct {
	Local  *LocalPosition  `json:"local,omitempty"`
	Global *GlobalPosition `json:"global,omitempty"`
}

// LocalPosition is the NED offset from the EKF origin in metres
type LocalPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type GlobalPosition struct {
	Lat         float64 `json:"lat"`         // degrees
	Lon         float64 `json:"lon"`         // degrees
	Alt         float64 `json:"alt"`         // m AMSL
	RelativeAlt float64 `json:"relativeAlt"` // m above home
}

// Attitude angles are radians, rates rad/s
type Attitude struct {
	Roll      float64 `json:"roll"`
	Pitch     float64 `json:"pitch"`
	Yaw       float64 `json:"yaw"`
	RollRate  float64 `json:"rollRate"`
	PitchRate float64 `json:"pitchRate"`
	YawRate   float64 `json:"yawRate"`
}

// Velocity is in m/s, NED frame
type Velocity struct {
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`
	VZ float64 `json:"vz"`
}

// Vector3 is a raw three-axis sensor reading
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IMU carries raw sensor units as reported by RAW_IMU
type IMU struct {
	Accel Vector3 `json:"accel"`
	Gyro  Vector3 `json:"gyro"`
	Mag   Vector3 `json:"mag"`
}

type Rangefinder struct {
	Distance float64 `json:"distance"` // m
}

type Heartbeat struct {
	SystemStatus int   `json:"systemStatus"`
	BaseMode     int   `json:"baseMode"`
	CustomMode   int64 `json:"customMode"`
}
