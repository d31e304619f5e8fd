package arena

import (
	"context"
	"time"

	"codeberg.org/mutker/dronedash/internal/geofence"
)

// Status tags an arena fetch outcome
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Data is one arena fetch: the boundary corners and the targets inside it
type Data struct {
	Boundary  []geofence.GPSPoint `json:"boundary" yaml:"boundary"`
	Targets   []geofence.Target   `json:"targets" yaml:"targets"`
	Timestamp time.Time           `json:"timestamp" yaml:"timestamp"`
	Status    Status              `json:"status" yaml:"-"`
	Error     string              `json:"error,omitempty" yaml:"-"`
}

// Provider supplies the latest arena data. Implementations may be slow or
// fail; callers treat every failure as "no new data".
type Provider interface {
	Fetch(ctx context.Context) (Data, error)
}

// Source is the latest arena data known to a consumer
type Source interface {
	Latest() (Data, bool)
}
