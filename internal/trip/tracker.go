// Package trip holds the live state of one minibus trip and derives
// progress, ETA and current street from the route geometry.
package trip

import (
	"errors"
	"math"

	"minibus-tracker/internal/route"
)

// Phase is the lifecycle stage of a trip.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseToRank    Phase = "TO_RANK"
	PhaseMainRoute Phase = "MAIN_ROUTE"
	PhaseRoaming   Phase = "ROAMING"
	PhaseFinished  Phase = "FINISHED"
)

const (
	// NominalSpeed is the assumed travel speed for ETA math, in map units
	// per second.
	NominalSpeed = 10.0
	// Capacity is the passenger capacity of a minibus taxi.
	Capacity = 16
)

// ErrInvalidPhaseTransition is returned by SetPhase for an edge the phase
// machine does not allow. The trip state is left unchanged.
var ErrInvalidPhaseTransition = errors.New("invalid phase transition")

// transitions is the allowed phase machine: PhaseFinished is terminal.
var transitions = map[Phase][]Phase{
	PhaseIdle:      {PhaseToRank, PhaseMainRoute, PhaseRoaming},
	PhaseToRank:    {PhaseFinished},
	PhaseMainRoute: {PhaseFinished},
	PhaseRoaming:   {PhaseFinished},
	PhaseFinished:  {},
}

// State is a snapshot of a trip.
type State struct {
	ID              string      `json:"id"`
	Phase           Phase       `json:"phase"`
	Position        route.Point `json:"position"`
	SegmentIndex    int         `json:"segmentIndex"`
	ProgressPercent float64     `json:"progressPercent"`
	ETAMinutes      int         `json:"etaMinutes"`
	MovingSeconds   float64     `json:"movingSeconds"`
	StoppedSeconds  float64     `json:"stoppedSeconds"`
	StopCount       int         `json:"stopCount"`
	PassengerCount  int         `json:"passengerCount"`
	CurrentStreet   string      `json:"currentStreet"`
}

// Tracker owns the mutable state of one trip. It is not safe for concurrent
// use; updates are expected to arrive serially from a single sampling loop.
type Tracker struct {
	route *route.Route
	state State
}

// NewTracker creates a Tracker for the given trip id, starting at pos in
// PhaseIdle.
func NewTracker(id string, r *route.Route, pos route.Point) *Tracker {
	return &Tracker{
		route: r,
		state: State{
			ID:            id,
			Phase:         PhaseIdle,
			Position:      pos,
			SegmentIndex:  -1,
			CurrentStreet: "Depot",
		},
	}
}

// State returns a copy of the current trip state.
func (t *Tracker) State() State { return t.state }

// AdvancePosition moves the trip to pos and re-derives segment index,
// progress, current street and ETA from the route. elapsedSeconds is
// accumulated into moving or stopped time depending on the moving flag.
// An empty route leaves progress and ETA untouched so the tracker stays
// usable before route data is available.
func (t *Tracker) AdvancePosition(pos route.Point, elapsedSeconds float64, moving bool) {
	t.state.Position = pos
	if moving {
		t.state.MovingSeconds += elapsedSeconds
	} else {
		t.state.StoppedSeconds += elapsedSeconds
	}

	proj := t.route.Project(pos)
	if proj.SegmentIndex < 0 {
		return
	}
	t.state.SegmentIndex = proj.SegmentIndex
	if seg, ok := t.route.SegmentAt(proj.SegmentIndex); ok {
		t.state.CurrentStreet = seg.Street
	}

	if total := t.route.TotalLength(); total > 0 {
		pct := proj.CumulativeDistance / total * 100
		if pct < 0 {
			pct = 0
		} else if pct > 100 {
			pct = 100
		}
		t.state.ProgressPercent = pct
	}

	remaining := t.route.RemainingDistance(proj.NearestPoint, proj.SegmentIndex, t.route.Len()-1)
	eta := int(math.Ceil(remaining / NominalSpeed / 60))
	if eta < 0 {
		eta = 0
	}
	t.state.ETAMinutes = eta
}

// SetPhase applies a phase transition, rejecting edges the phase machine
// does not allow.
func (t *Tracker) SetPhase(next Phase) error {
	for _, allowed := range transitions[t.state.Phase] {
		if next == allowed {
			t.state.Phase = next
			return nil
		}
	}
	return ErrInvalidPhaseTransition
}

// SetPassengerCount sets the passenger count, clamped to [0, Capacity].
// It reports whether clamping was applied.
func (t *Tracker) SetPassengerCount(n int) bool {
	clamped := false
	if n < 0 {
		n = 0
		clamped = true
	} else if n > Capacity {
		n = Capacity
		clamped = true
	}
	t.state.PassengerCount = n
	return clamped
}

// RecordStop increments the trip's stop counter.
func (t *Tracker) RecordStop() { t.state.StopCount++ }

// Reset discards the trip state and returns the tracker to a fresh idle
// trip with the given id, keeping the current position.
func (t *Tracker) Reset(id string) {
	pos := t.state.Position
	t.state = State{
		ID:            id,
		Phase:         PhaseIdle,
		Position:      pos,
		SegmentIndex:  -1,
		CurrentStreet: "Depot",
	}
}
