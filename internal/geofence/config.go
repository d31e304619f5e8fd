package geofence

import (
	"math"

	"codeberg.org/mutker/dronedash/internal/errors"
)

const (
	// Competition field dimensions
	DefaultWidth  = 9.0
	DefaultHeight = 12.0

	DefaultThreshold       = 0.5
	DefaultExpectedTargets = 3

	// MinBoundaryPoints is the number of corners needed for the
	// bounding-box conversion
	MinBoundaryPoints = 4

	defaultNEDScale          = 0.5
	defaultFallbackOriginLat = 12.03
	defaultFallbackOriginLng = 77.12
	defaultFallbackScale     = 1000.0
)

type Config struct {
	Width     float64
	Height    float64
	Threshold float64
	// ExpectedTargets is the detection count that completes a mission.
	// Zero means every currently known target must be detected.
	ExpectedTargets int
	NEDScale        float64
	FallbackOrigin  GPSPoint
	FallbackScale   float64
}

func DefaultConfig() Config {
	return Config{
		Width:           DefaultWidth,
		Height:          DefaultHeight,
		Threshold:       DefaultThreshold,
		ExpectedTargets: DefaultExpectedTargets,
		NEDScale:        defaultNEDScale,
		FallbackOrigin: GPSPoint{
			Lat: defaultFallbackOriginLat,
			Lng: defaultFallbackOriginLng,
		},
		FallbackScale: defaultFallbackScale,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !positive(c.Width) || !positive(c.Height) {
		return errFactory.WithData(ErrInvalidArena, struct {
			Width  float64
			Height float64
		}{c.Width, c.Height})
	}
	if !positive(c.Threshold) {
		return errFactory.WithData(ErrInvalidThreshold, c.Threshold)
	}
	if c.ExpectedTargets < 0 {
		return errFactory.WithData(ErrInvalidExpectedTargets, c.ExpectedTargets)
	}
	if !positive(c.NEDScale) || !positive(c.FallbackScale) {
		return errFactory.WithData(ErrInvalidScale, struct {
			NEDScale      float64
			FallbackScale float64
		}{c.NEDScale, c.FallbackScale})
	}
	if !finite(c.FallbackOrigin.Lat) || !finite(c.FallbackOrigin.Lng) {
		return errFactory.WithData(ErrInvalidScale, c.FallbackOrigin)
	}

	return nil
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
