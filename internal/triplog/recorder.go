package triplog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"minibus-tracker/internal/clock"
	"minibus-tracker/internal/route"
	"minibus-tracker/internal/store"
	"minibus-tracker/internal/trip"
)

const (
	// storageKey holds the full log collection as one JSON blob.
	storageKey = "trip_logs"
	// minPathDisplacement is the minimum movement, in map units, before a
	// new path sample is appended. Filters stationary jitter out of the log.
	minPathDisplacement = 1.0
)

var (
	// ErrTripAlreadyActive is returned by StartTrip while a log is already
	// recording.
	ErrTripAlreadyActive = errors.New("trip log already recording")
	// ErrNoActiveTrip is returned by recorder operations that need an
	// active log when there is none.
	ErrNoActiveTrip = errors.New("no active trip log")
)

// Recorder accumulates the log of the active trip and finalizes it into
// aggregate statistics. It owns at most one active Log at a time. All
// methods are safe for concurrent use.
type Recorder struct {
	store store.Store
	clock clock.Clock

	mu       sync.Mutex
	active   *Log
	openIdle *IdleEvent
}

// NewRecorder creates a Recorder persisting into s. A nil clk falls back to
// the system clock.
func NewRecorder(s store.Store, clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Recorder{store: s, clock: clk}
}

// StartTrip opens a new log for the given trip, seeded with one path sample
// and one passenger milestone. Starting while another log is active is a
// no-op.
func (r *Recorder) StartTrip(st trip.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		log.Printf("triplog: start ignored, trip %s still recording", r.active.ID)
		return ErrTripAlreadyActive
	}
	now := r.clock.Now()
	r.active = &Log{
		ID:                  st.ID,
		StartTime:           now,
		Path:                []PathPoint{{Position: st.Position, Timestamp: now}},
		PassengerMilestones: []PassengerMilestone{{Count: st.PassengerCount, Timestamp: now}},
		PassengerReports:    []PassengerReport{},
		IdleEvents:          []IdleEvent{},
		MaxPassengers:       st.PassengerCount,
	}
	r.openIdle = nil
	return nil
}

// ObservePosition folds a trip state sample into the active log. A path
// sample is appended only when the vehicle moved more than the displacement
// threshold; a milestone only when the passenger count changed.
func (r *Recorder) ObservePosition(st trip.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.ID != st.ID {
		return
	}
	now := r.clock.Now()

	last := r.active.Path[len(r.active.Path)-1]
	if route.Distance(last.Position, st.Position) > minPathDisplacement {
		r.active.Path = append(r.active.Path, PathPoint{Position: st.Position, Timestamp: now})
	}

	lastCount := r.active.PassengerMilestones[len(r.active.PassengerMilestones)-1].Count
	if st.PassengerCount != lastCount {
		r.active.PassengerMilestones = append(r.active.PassengerMilestones,
			PassengerMilestone{Count: st.PassengerCount, Timestamp: now})
	}
	if st.PassengerCount > r.active.MaxPassengers {
		r.active.MaxPassengers = st.PassengerCount
	}
}

// BeginIdle opens an idle window at pos. Idempotent: a second call while a
// window is open does nothing, so multiple signal sources may call it.
func (r *Recorder) BeginIdle(pos route.Point, reason IdleReason) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		log.Printf("triplog: idle start ignored, no active trip")
		return ErrNoActiveTrip
	}
	if r.openIdle != nil {
		return nil
	}
	r.openIdle = &IdleEvent{Position: pos, StartTime: r.clock.Now(), Reason: reason}
	return nil
}

// EndIdle closes the open idle window, if any.
func (r *Recorder) EndIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeIdleLocked()
}

func (r *Recorder) closeIdleLocked() {
	if r.active == nil || r.openIdle == nil {
		return
	}
	ev := *r.openIdle
	ev.EndTime = r.clock.Now()
	r.active.IdleEvents = append(r.active.IdleEvents, ev)
	r.openIdle = nil
}

// RecordReport appends a passenger report with a fresh id to the active log.
// Reports arriving outside an active trip are discarded.
func (r *Recorder) RecordReport(category ReportCategory, comment string) (PassengerReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		log.Printf("triplog: report %s discarded, no active trip", category)
		return PassengerReport{}, ErrNoActiveTrip
	}
	report := PassengerReport{
		ID:        uuid.NewString(),
		TripID:    r.active.ID,
		Category:  category,
		Comment:   comment,
		Timestamp: r.clock.Now(),
	}
	r.active.PassengerReports = append(r.active.PassengerReports, report)
	return report, nil
}

// FinishTrip closes the active log, computes its aggregate statistics and
// persists the updated collection. The finalized log is returned even when
// persisting fails, so a storage outage never loses the computed stats.
func (r *Recorder) FinishTrip(ctx context.Context, finalState trip.State) (*Log, error) {
	r.mu.Lock()
	if r.active == nil {
		r.mu.Unlock()
		log.Printf("triplog: finish ignored, no active trip")
		return nil, ErrNoActiveTrip
	}
	r.closeIdleLocked()

	l := r.active
	r.active = nil
	l.EndTime = r.clock.Now()
	l.FinalState = finalState
	finalize(l, finalState)
	r.mu.Unlock()

	if err := r.persist(ctx, *l); err != nil {
		return l, fmt.Errorf("persist trip log %s: %w", l.ID, err)
	}
	return l, nil
}

// finalize fills in the aggregate fields of a closed log.
func finalize(l *Log, finalState trip.State) {
	for i := 1; i < len(l.Path); i++ {
		l.TotalDistance += route.Distance(l.Path[i-1].Position, l.Path[i].Position)
	}
	if finalState.MovingSeconds > 0 {
		l.AverageSpeed = l.TotalDistance / finalState.MovingSeconds
	}

	// Time-weight passenger counts: each milestone holds until the next one,
	// and the final count closes out the interval up to EndTime.
	milestones := append([]PassengerMilestone{}, l.PassengerMilestones...)
	milestones = append(milestones, PassengerMilestone{Count: finalState.PassengerCount, Timestamp: l.EndTime})
	passengerSeconds := 0.0
	for i := 0; i < len(milestones)-1; i++ {
		interval := milestones[i+1].Timestamp.Sub(milestones[i].Timestamp).Seconds()
		passengerSeconds += float64(milestones[i].Count) * interval
	}
	if tripSeconds := l.EndTime.Sub(l.StartTime).Seconds(); tripSeconds > 0 {
		l.AveragePassengers = passengerSeconds / tripSeconds
		l.CapacityUtilization = l.AveragePassengers / trip.Capacity * 100
	}

	for _, report := range l.PassengerReports {
		if report.Category == ReportSafeDriving {
			l.PositiveReports++
		} else {
			l.NegativeReports++
		}
	}
}

// persist replaces any stored log with the same id and writes the collection
// back as one blob.
func (r *Recorder) persist(ctx context.Context, l Log) error {
	logs, err := r.loadAll(ctx)
	if err != nil {
		return err
	}
	out := logs[:0]
	for _, existing := range logs {
		if existing.ID != l.ID {
			out = append(out, existing)
		}
	}
	out = append(out, l)
	return r.saveAll(ctx, out)
}

// ListTodaysLogs returns the stored logs whose trips started on the current
// calendar day.
func (r *Recorder) ListTodaysLogs(ctx context.Context) ([]Log, error) {
	logs, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	today := r.clock.Now()
	var out []Log
	for _, l := range logs {
		if sameDay(l.StartTime, today) {
			out = append(out, l)
		}
	}
	return out, nil
}

// ClearTodaysLogs deletes today's logs from the store, preserving logs from
// other days.
func (r *Recorder) ClearTodaysLogs(ctx context.Context) error {
	logs, err := r.loadAll(ctx)
	if err != nil {
		return err
	}
	today := r.clock.Now()
	kept := logs[:0]
	for _, l := range logs {
		if !sameDay(l.StartTime, today) {
			kept = append(kept, l)
		}
	}
	return r.saveAll(ctx, kept)
}

func (r *Recorder) loadAll(ctx context.Context) ([]Log, error) {
	raw, found, err := r.store.Get(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("load logs: %w", err)
	}
	if !found {
		return nil, nil
	}
	var logs []Log
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	return logs, nil
}

func (r *Recorder) saveAll(ctx context.Context, logs []Log) error {
	raw, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	if err := r.store.Set(ctx, storageKey, raw); err != nil {
		return fmt.Errorf("save logs: %w", err)
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
