package telemetry

import (
	"encoding/json"
	"math"
)

// Raw MAVLink message dumps. Missing keys decode to zero, matching how the
// bridge writes partially populated messages; presence is tracked per
// message, not per field.

type batteryStatusMsg struct {
	Voltages         []float64 `json:"voltages"`          // mV
	CurrentBattery   float64   `json:"current_battery"`   // cA
	BatteryRemaining float64   `json:"battery_remaining"` // %
	Temperature      float64   `json:"temperature"`       // cdegC
}

type localPositionNEDMsg struct {
	TimeBootMs float64 `json:"time_boot_ms"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	VZ         float64 `json:"vz"`
}

type globalPositionIntMsg struct {
	TimeBootMs  float64 `json:"time_boot_ms"`
	Lat         float64 `json:"lat"`          // degE7
	Lon         float64 `json:"lon"`          // degE7
	Alt         float64 `json:"alt"`          // mm
	RelativeAlt float64 `json:"relative_alt"` // mm
}

type attitudeMsg struct {
	TimeBootMs float64 `json:"time_boot_ms"`
	Roll       float64 `json:"roll"`
	Pitch      float64 `json:"pitch"`
	Yaw        float64 `json:"yaw"`
	RollSpeed  float64 `json:"rollspeed"`
	PitchSpeed float64 `json:"pitchspeed"`
	YawSpeed   float64 `json:"yawspeed"`
}

type rawIMUMsg struct {
	XAcc  float64 `json:"xacc"`
	YAcc  float64 `json:"yacc"`
	ZAcc  float64 `json:"zacc"`
	XGyro float64 `json:"xgyro"`
	YGyro float64 `json:"ygyro"`
	ZGyro float64 `json:"zgyro"`
	XMag  float64 `json:"xmag"`
	YMag  float64 `json:"ymag"`
	ZMag  float64 `json:"zmag"`
}

type rangefinderMsg struct {
	Distance float64 `json:"distance"`
}

type heartbeatMsg struct {
	SystemStatus float64 `json:"system_status"`
	BaseMode     float64 `json:"base_mode"`
	CustomMode   float64 `json:"custom_mode"`
}

const (
	degE7        = 1e7
	milli        = 1e3
	centi        = 1e2
	unknownCells = math.MaxUint16
)

func decodeBattery(data []byte) (*Battery, error) {
	var msg batteryStatusMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	b := &Battery{
		Current:      msg.CurrentBattery / centi,
		RemainingPct: msg.BatteryRemaining,
		Temperature:  msg.Temperature / centi,
	}
	if len(msg.Voltages) > 0 && msg.Voltages[0] != unknownCells {
		b.Voltage = msg.Voltages[0] / milli
	}

	return b, nil
}

// DecodeLocalPosition parses a LOCAL_POSITION_NED dump
func DecodeLocalPosition(data []byte) (*LocalPosition, *Velocity, int64, error) {
	var msg localPositionNEDMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, nil, 0, err
	}

	return &LocalPosition{X: msg.X, Y: msg.Y, Z: msg.Z},
		&Velocity{VX: msg.VX, VY: msg.VY, VZ: msg.VZ},
		int64(msg.TimeBootMs), nil
}

// DecodeGlobalPosition parses a GLOBAL_POSITION_INT dump into degrees/metres
func DecodeGlobalPosition(data []byte) (*GlobalPosition, error) {
	var msg globalPositionIntMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	return &GlobalPosition{
		Lat:         msg.Lat / degE7,
		Lon:         msg.Lon / degE7,
		Alt:         msg.Alt / milli,
		RelativeAlt: msg.RelativeAlt / milli,
	}, nil
}

func decodeAttitude(data []byte) (*Attitude, int64, error) {
	var msg attitudeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, 0, err
	}

	return &Attitude{
		Roll:      msg.Roll,
		Pitch:     msg.Pitch,
		Yaw:       msg.Yaw,
		RollRate:  msg.RollSpeed,
		PitchRate: msg.PitchSpeed,
		YawRate:   msg.YawSpeed,
	}, int64(msg.TimeBootMs), nil
}

func decodeIMU(data []byte) (*IMU, error) {
	var msg rawIMUMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	return &IMU{
		Accel: Vector3{X: msg.XAcc, Y: msg.YAcc, Z: msg.ZAcc},
		Gyro:  Vector3{X: msg.XGyro, Y: msg.YGyro, Z: msg.ZGyro},
		Mag:   Vector3{X: msg.XMag, Y: msg.YMag, Z: msg.ZMag},
	}, nil
}

func decodeRangefinder(data []byte) (*Rangefinder, error) {
	var msg rangefinderMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	return &Rangefinder{Distance: msg.Distance}, nil
}

func decodeHeartbeat(data []byte) (*Heartbeat, error) {
	var msg heartbeatMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	return &Heartbeat{
		SystemStatus: int(msg.SystemStatus),
		BaseMode:     int(msg.BaseMode),
		CustomMode:   int64(msg.CustomMode),
	}, nil
}
