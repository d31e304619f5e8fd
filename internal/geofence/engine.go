package geofence

import (
	"sync"
	"time"
)

// Engine owns the sticky detection state of one mission. Once a target id is
// detected it stays detected for the lifetime of the engine, whatever later
// arena fetches or agent positions say.
type Engine struct {
	mu       sync.RWMutex
	cfg      Config
	conv     Converter
	now      func() time.Time
	agent    AgentPosition
	detected map[string]Detection
	order    []string
	known    map[string]struct{}
}

type EngineOption func(*Engine)

// WithClock overrides the clock used to stamp detections
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:      cfg,
		conv:     NewConverter(cfg),
		now:      time.Now,
		detected: make(map[string]Detection),
		known:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Converter returns the converter the engine uses for targets
func (e *Engine) Converter() Converter {
	return e.conv
}

// Threshold returns the detection radius in local units
func (e *Engine) Threshold() float64 {
	return e.cfg.Threshold
}

// ConvertGPSToLocal converts point with the engine's arena settings
func (e *Engine) ConvertGPSToLocal(point GPSPoint, boundary []GPSPoint) (LocalPoint, bool) {
	return e.conv.ToLocal(point, boundary)
}

// UpdateAgentPosition stores the latest agent position in the local frame
func (e *Engine) UpdateAgentPosition(p LocalPoint) {
	outside := e.conv.Outside(p)

	e.mu.Lock()
	e.agent = AgentPosition{X: p.X, Y: p.Y, OutsideArena: outside, Known: true}
	e.mu.Unlock()
}

// UpdateAgentGPS converts a GPS fix against boundary and stores it
func (e *Engine) UpdateAgentGPS(point GPSPoint, boundary []GPSPoint) LocalPoint {
	local, outside := e.conv.ToLocal(point, boundary)

	e.mu.Lock()
	e.agent = AgentPosition{X: local.X, Y: local.Y, OutsideArena: outside, Known: true}
	e.mu.Unlock()

	return local
}

// UpdateAgentNED converts a LOCAL_POSITION_NED fix and stores it
func (e *Engine) UpdateAgentNED(x, y float64) LocalPoint {
	local, outside := e.conv.FromNED(x, y)

	e.mu.Lock()
	e.agent = AgentPosition{X: local.X, Y: local.Y, OutsideArena: outside, Known: true}
	e.mu.Unlock()

	return local
}

// Evaluate converts every target into the local frame and marks those within
// the threshold of the agent as detected. Targets without an id are skipped
// because detection state is keyed by id. Nothing is detected until the
// agent position has been set at least once.
func (e *Engine) Evaluate(targets []Target, boundary []GPSPoint) Evaluation {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasComplete := e.missionCompleteLocked()

	e.known = make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if t.ID != "" {
			e.known[t.ID] = struct{}{}
		}
	}

	var newly []Detection
	if e.agent.Known {
		agent := LocalPoint{X: e.agent.X, Y: e.agent.Y}
		for _, t := range targets {
			if t.ID == "" {
				continue
			}
			if _, ok := e.detected[t.ID]; ok {
				continue
			}

			local, _ := e.conv.ToLocal(t.Point(), boundary)
			distance := Distance(agent, local)
			if distance > e.cfg.Threshold {
				continue
			}

			d := Detection{
				TargetID:   t.ID,
				Target:     t,
				Local:      local,
				Distance:   distance,
				DetectedAt: e.now(),
			}
			e.detected[t.ID] = d
			e.order = append(e.order, t.ID)
			newly = append(newly, d)
		}
	}

	complete := e.missionCompleteLocked()

	return Evaluation{
		DetectedIDs:     e.idsLocked(),
		Newly:           newly,
		MissionComplete: complete,
		BecameComplete:  complete && !wasComplete,
	}
}

// Restore marks ids as detected without emitting them as new detections.
// It returns the number of ids that were not already detected.
func (e *Engine) Restore(detections []Detection) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	added := 0
	for _, d := range detections {
		if d.TargetID == "" {
			continue
		}
		if _, ok := e.detected[d.TargetID]; ok {
			continue
		}
		d.Restored = true
		e.detected[d.TargetID] = d
		e.order = append(e.order, d.TargetID)
		added++
	}

	return added
}

// CurrentDetections returns a copy of the detection state
func (e *Engine) CurrentDetections() Detections {
	e.mu.RLock()
	defer e.mu.RUnlock()

	detections := make([]Detection, 0, len(e.order))
	for _, id := range e.order {
		detections = append(detections, e.detected[id])
	}

	return Detections{
		DetectedIDs:     e.idsLocked(),
		Detections:      detections,
		Expected:        e.expectedLocked(),
		MissionComplete: e.missionCompleteLocked(),
	}
}

// AgentLocalPosition returns the last stored agent position
func (e *Engine) AgentLocalPosition() AgentPosition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.agent
}

// MissionComplete reports whether enough targets have been detected
func (e *Engine) MissionComplete() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.missionCompleteLocked()
}

// IsDetected reports whether id has been detected
func (e *Engine) IsDetected(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	_, ok := e.detected[id]

	return ok
}

func (e *Engine) missionCompleteLocked() bool {
	if e.cfg.ExpectedTargets > 0 {
		return len(e.detected) >= e.cfg.ExpectedTargets
	}

	if len(e.known) == 0 {
		return false
	}
	for id := range e.known {
		if _, ok := e.detected[id]; !ok {
			return false
		}
	}

	return true
}

func (e *Engine) expectedLocked() int {
	if e.cfg.ExpectedTargets > 0 {
		return e.cfg.ExpectedTargets
	}

	return len(e.known)
}

func (e *Engine) idsLocked() []string {
	ids := make([]string, len(e.order))
	copy(ids, e.order)

	return ids
}
