package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/logger"
)

// Assembler reads every channel once and folds the results into a snapshot.
// A failing or missing channel only drops its own sub-record.
type Assembler struct {
	source ChannelSource
	log    logger.Logger
	now    func() time.Time
}

type AssemblerOption func(*Assembler)

func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) {
		a.now = now
	}
}

func WithLogger(log logger.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.log = log
	}
}

func NewAssembler(source ChannelSource, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		source: source,
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Assemble always returns a snapshot, even when every channel is absent
func (a *Assembler) Assemble(ctx context.Context) *Snapshot {
	captured := a.now()
	snapshot := &Snapshot{Timestamp: captured}

	var deviceTime int64

	if data, ok := a.fetch(ctx, ChannelBattery); ok {
		battery, err := decodeBattery(data)
		a.keep(ChannelBattery, err, func() { snapshot.Battery = battery })
	}

	if data, ok := a.fetch(ctx, ChannelLocalPosition); ok {
		local, velocity, bootMs, err := DecodeLocalPosition(data)
		a.keep(ChannelLocalPosition, err, func() {
			snapshot.Position = &Position{Local: local}
			snapshot.Velocity = velocity
			if bootMs > 0 {
				deviceTime = bootMs
			}
		})
	}

	if data, ok := a.fetch(ctx, ChannelGlobalPosition); ok {
		global, err := DecodeGlobalPosition(data)
		a.keep(ChannelGlobalPosition, err, func() {
			if snapshot.Position == nil {
				snapshot.Position = &Position{}
			}
			snapshot.Position.Global = global
		})
	}

	// read after local position so its boot time wins when both report one
	if data, ok := a.fetch(ctx, ChannelAttitude); ok {
		attitude, bootMs, err := decodeAttitude(data)
		a.keep(ChannelAttitude, err, func() {
			snapshot.Attitude = attitude
			if bootMs > 0 {
				deviceTime = bootMs
			}
		})
	}

	if data, ok := a.fetch(ctx, ChannelIMU); ok {
		imu, err := decodeIMU(data)
		a.keep(ChannelIMU, err, func() { snapshot.IMU = imu })
	}

	if data, ok := a.fetch(ctx, ChannelRangefinder); ok {
		rangefinder, err := decodeRangefinder(data)
		a.keep(ChannelRangefinder, err, func() { snapshot.Rangefinder = rangefinder })
	}

	if data, ok := a.fetch(ctx, ChannelHeartbeat); ok {
		heartbeat, err := decodeHeartbeat(data)
		a.keep(ChannelHeartbeat, err, func() { snapshot.Heartbeat = heartbeat })
	}

	if deviceTime == 0 {
		deviceTime = captured.UnixMilli()
	}
	snapshot.DeviceTimeMs = deviceTime

	if snapshot.Empty() {
		a.log.Debug().Msg("No telemetry channels available, recording empty snapshot")
	}

	return snapshot
}

func (a *Assembler) fetch(ctx context.Context, channel Channel) ([]byte, bool) {
	data, ok, err := a.source.FetchLatest(ctx, channel)
	if err != nil {
		a.log.Warn().
			Err(err).
			Str("channel", string(channel)).
			Msg("Failed to read telemetry channel")
		return nil, false
	}

	return data, ok
}

func (a *Assembler) keep(channel Channel, err error, apply func()) {
	if err != nil {
		a.log.Warn().
			Err(errors.New().Wrap(ErrChannelDecode, err)).
			Str("channel", string(channel)).
			Msg("Malformed telemetry channel, treating as absent")
		return
	}

	apply()
}
