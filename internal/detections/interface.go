package detections

import (
	"context"

	"codeberg.org/mutker/dronedash/internal/geofence"
)

// Log persists detections so a restarted process can resume a mission
type Log interface {
	// Begin opens a mission. With restore enabled it resumes the latest
	// stored mission and returns its detections.
	Begin(ctx context.Context) (missionID string, restored []geofence.Detection, err error)
	Record(ctx context.Context, missionID string, detection geofence.Detection) error
	Close() error
	Enabled() bool
}

// Repository is the storage behind Log
type Repository interface {
	StartMission(missionID string) error
	LatestMission() (string, bool, error)
	Record(missionID string, detection geofence.Detection) error
	List(missionID string) ([]geofence.Detection, error)
	Close() error
}
