package geofence

import "math"

// Converter maps GPS and NED coordinates into the local arena frame
type Converter struct {
	cfg Config
}

func NewConverter(cfg Config) Converter {
	return Converter{cfg: cfg}
}

type bounds struct {
	minLat, maxLat float64
	minLng, maxLng float64
}

// ToLocal converts point into the local frame spanned by the bounding box of
// boundary. The result is always finite and clamped to [0,W]x[0,H]; the
// second return value reports whether point fell outside the box.
//
// With fewer than MinBoundaryPoints usable corners it degrades to a fixed
// linear scale around the configured fallback origin. That mode only
// preserves ordering for nearby points.
func (c Converter) ToLocal(point GPSPoint, boundary []GPSPoint) (LocalPoint, bool) {
	box, ok := boundingBox(boundary)
	if !ok {
		return c.fallback(point)
	}

	nx, outX := normalize(point.Lng, box.minLng, box.maxLng)
	ny, outY := normalize(point.Lat, box.minLat, box.maxLat)

	return LocalPoint{
		X: clamp(nx*c.cfg.Width, 0, c.cfg.Width),
		Y: clamp(ny*c.cfg.Height, 0, c.cfg.Height),
	}, outX || outY
}

// FromNED converts a LOCAL_POSITION_NED x/y pair, centred on the arena
func (c Converter) FromNED(x, y float64) (LocalPoint, bool) {
	lx := x*c.cfg.NEDScale + c.cfg.Width/2
	ly := y*c.cfg.NEDScale + c.cfg.Height/2

	return LocalPoint{
		X: clamp(lx, 0, c.cfg.Width),
		Y: clamp(ly, 0, c.cfg.Height),
	}, c.outside(lx, ly)
}

// Outside reports whether p lies outside the arena rectangle
func (c Converter) Outside(p LocalPoint) bool {
	return c.outside(p.X, p.Y)
}

func (c Converter) fallback(point GPSPoint) (LocalPoint, bool) {
	x := (point.Lat - c.cfg.FallbackOrigin.Lat) * c.cfg.FallbackScale
	y := (point.Lng - c.cfg.FallbackOrigin.Lng) * c.cfg.FallbackScale

	return LocalPoint{
		X: clamp(x, 0, c.cfg.Width),
		Y: clamp(y, 0, c.cfg.Height),
	}, c.outside(x, y)
}

func (c Converter) outside(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return true
	}

	return x < 0 || x > c.cfg.Width || y < 0 || y > c.cfg.Height
}

// boundingBox ignores non-finite corners
func boundingBox(boundary []GPSPoint) (bounds, bool) {
	b := bounds{
		minLat: math.Inf(1), maxLat: math.Inf(-1),
		minLng: math.Inf(1), maxLng: math.Inf(-1),
	}

	usable := 0
	for _, p := range boundary {
		if !finite(p.Lat) || !finite(p.Lng) {
			continue
		}
		usable++
		b.minLat = math.Min(b.minLat, p.Lat)
		b.maxLat = math.Max(b.maxLat, p.Lat)
		b.minLng = math.Min(b.minLng, p.Lng)
		b.maxLng = math.Max(b.maxLng, p.Lng)
	}

	return b, usable >= MinBoundaryPoints
}

// normalize maps v into [0,1] relative to [lo,hi]. A zero-width span yields 0.
func normalize(v, lo, hi float64) (float64, bool) {
	span := hi - lo
	if span == 0 || !finite(span) {
		return 0, v != lo
	}

	n := (v - lo) / span

	return n, math.IsNaN(n) || n < 0 || n > 1
}

// clamp also maps NaN to lo so callers always get a finite coordinate
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

// Distance is the Euclidean distance between two local points
func Distance(a, b LocalPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
