package geofence

import "time"

// GPSPoint is a WGS84 coordinate in decimal degrees
type GPSPoint struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Target is a point the agent has to visit. IDs are only unique within a
// single arena fetch.
type Target struct {
	ID  string  `json:"id" yaml:"id"`
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Point returns the target's GPS coordinate
func (t Target) Point() GPSPoint {
	return GPSPoint{Lat: t.Lat, Lng: t.Lng}
}

// LocalPoint is a position in the planar arena frame, in arena length units
type LocalPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// AgentPosition is the last known local position of the agent
type AgentPosition struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	OutsideArena bool    `json:"outsideArena"`
	Known        bool    `json:"known"`
}

// Detection records the first time the agent came within range of a target
type Detection struct {
	TargetID   string     `json:"targetId"`
	Target     Target     `json:"target"`
	Local      LocalPoint `json:"local"`
	Distance   float64    `json:"distance"`
	DetectedAt time.Time  `json:"detectedAt"`
	Restored   bool       `json:"restored,omitempty"`
}

// Evaluation is the outcome of one Evaluate call. Newly holds only the
// detections added by that call.
type Evaluation struct {
	DetectedIDs     []string    `json:"detectedIds"`
	Newly           []Detection `json:"newly"`
	MissionComplete bool        `json:"missionComplete"`
	// BecameComplete is set on the single call that completed the mission
	BecameComplete bool `json:"becameComplete"`
}

// Detections is a read-only copy of the engine's detection state
type Detections struct {
	DetectedIDs     []string    `json:"detectedIds"`
	Detections      []Detection `json:"detections"`
	Expected        int         `json:"expected"`
	MissionComplete bool        `json:"missionComplete"`
}
