// Package sim drives scripted minibus trips along the route, feeding the
// trip tracker and log recorder and publishing telemetry each tick.
package sim

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"minibus-tracker/internal/clock"
	"minibus-tracker/internal/metrics"
	"minibus-tracker/internal/publisher"
	"minibus-tracker/internal/route"
	"minibus-tracker/internal/store"
	"minibus-tracker/internal/trip"
	"minibus-tracker/internal/triplog"
)

// Publisher is the telemetry sink. *publisher.NATSPublisher implements it.
type Publisher interface {
	PublishTelemetry(msg publisher.TelemetryMessage) error
	PublishEvent(msg publisher.EventMessage) error
}

// reportCategories weights SafeDriving ahead of the complaint categories for
// simulated feedback.
var reportCategories = []triplog.ReportCategory{
	triplog.ReportSafeDriving, triplog.ReportSafeDriving, triplog.ReportSafeDriving,
	triplog.ReportRecklessDriving, triplog.ReportMusicVolume, triplog.ReportOvercrowding,
}

type Manager struct {
	route        *route.Route
	store        store.Store
	pub          Publisher
	clock        clock.Clock
	tickInterval time.Duration
	speedMult    float64
	preTripIdle  time.Duration
	metrics      *metrics.Collector

	mu      sync.Mutex
	running map[string]context.CancelFunc // vehicleID -> cancel
	wg      sync.WaitGroup

	// The log collection lives under one store key; finalization is a
	// read-modify-write and must not interleave across vehicles.
	persistMu sync.Mutex
}

func NewManager(r *route.Route, s store.Store, pub Publisher, clk clock.Clock, tickInterval time.Duration, speedMultiplier float64, preTripIdle time.Duration, m *metrics.Collector) *Manager {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		route:        r,
		store:        s,
		pub:          pub,
		clock:        clk,
		tickInterval: tickInterval,
		speedMult:    speedMultiplier,
		preTripIdle:  preTripIdle,
		metrics:      m,
		running:      make(map[string]context.CancelFunc),
	}
}

// Start launches one trip goroutine per vehicle.
func (m *Manager) Start(ctx context.Context, vehicles int) {
	for i := 1; i <= vehicles; i++ {
		m.startVehicle(ctx, fmt.Sprintf("BUS-%02d", i))
	}
}

func (m *Manager) startVehicle(parent context.Context, vehicleID string) {
	m.mu.Lock()
	if _, exists := m.running[vehicleID]; exists {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.running[vehicleID] = cancel
	m.wg.Add(1)
	if m.metrics != nil {
		m.metrics.TripsStarted.Inc()
		m.metrics.ActiveTrips.Set(float64(len(m.running)))
	}
	m.mu.Unlock()

	log.Printf("starting vehicle %s", vehicleID)
	go func() {
		defer m.wg.Done()
		if err := m.runTrip(ctx, vehicleID); err != nil {
			log.Printf("vehicle %s trip error: %v", vehicleID, err)
		}
		m.mu.Lock()
		delete(m.running, vehicleID)
		if m.metrics != nil {
			m.metrics.ActiveTrips.Set(float64(len(m.running)))
		}
		m.mu.Unlock()
	}()
}

// dwellStop marks a cumulative distance where the route calls for a
// scheduled stop.
type dwellStop struct {
	at      float64
	seconds float64
}

func dwellStops(r *route.Route) []dwellStop {
	var stops []dwellStop
	cum := 0.0
	for _, seg := range r.Segments() {
		cum += seg.Length
		if seg.DwellSeconds > 0 {
			stops = append(stops, dwellStop{at: cum, seconds: float64(seg.DwellSeconds)})
		}
	}
	return stops
}

// runTrip plays one full trip: pre-trip idle at the depot, movement at
// nominal speed with dwell stops and passenger churn, then finalization.
// Cancelling the context finishes the trip early with whatever was recorded.
func (m *Manager) runTrip(ctx context.Context, vehicleID string) error {
	tripID := "TRIP-" + uuid.NewString()[:8]
	start := route.Point{}
	if seg, ok := m.route.SegmentAt(0); ok {
		start = seg.Start
	}
	tracker := trip.NewTracker(tripID, m.route, start)
	rec := triplog.NewRecorder(m.store, m.clock)
	if err := rec.StartTrip(tracker.State()); err != nil {
		return err
	}
	m.publishEvent(vehicleID, tracker.State(), "trip_started")

	// Simulated seconds per tick.
	simDt := m.tickInterval.Seconds() * m.speedMult
	total := m.route.TotalLength()
	dwells := dwellStops(m.route)
	nextDwell := 0

	dist := 0.0
	preIdleLeft := m.preTripIdle.Seconds()
	dwellLeft := 0.0
	pos := start

	if preIdleLeft > 0 {
		if err := rec.BeginIdle(pos, triplog.IdlePreTrip); err == nil && m.metrics != nil {
			m.metrics.IdleEvents.WithLabelValues(string(triplog.IdlePreTrip)).Inc()
		}
	} else {
		m.beginMainRoute(vehicleID, tracker)
	}

	tick := time.NewTicker(m.tickInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return m.finishTrip(vehicleID, tracker, rec)
		case <-tick.C:
			tickStart := time.Now()
			moving := false

			switch {
			case preIdleLeft > 0:
				preIdleLeft -= simDt
				if preIdleLeft <= 0 {
					rec.EndIdle()
					m.beginMainRoute(vehicleID, tracker)
				}
			case dwellLeft > 0:
				dwellLeft -= simDt
				if dwellLeft <= 0 {
					rec.EndIdle()
				}
			default:
				moving = true
				dist += trip.NominalSpeed * simDt
				if nextDwell < len(dwells) && dist >= dwells[nextDwell].at {
					dist = dwells[nextDwell].at
					dwellLeft = dwells[nextDwell].seconds
					nextDwell++
					pos = m.route.PointAt(dist)
					m.arriveAtStop(vehicleID, pos, tracker, rec)
					moving = false
				} else {
					pos = m.route.PointAt(dist)
				}
			}

			tracker.AdvancePosition(pos, simDt, moving)
			state := tracker.State()
			rec.ObservePosition(state)
			if m.metrics != nil {
				m.metrics.PathSamples.Inc()
			}
			m.publishTelemetry(vehicleID, state, moving)
			if m.metrics != nil {
				m.metrics.TickDuration.Observe(time.Since(tickStart).Seconds())
			}

			if total > 0 && dist >= total && dwellLeft <= 0 && preIdleLeft <= 0 {
				return m.finishTrip(vehicleID, tracker, rec)
			}
			if total == 0 && preIdleLeft <= 0 {
				return m.finishTrip(vehicleID, tracker, rec)
			}
		}
	}
}

// beginMainRoute transitions out of the depot and boards the first riders.
func (m *Manager) beginMainRoute(vehicleID string, tracker *trip.Tracker) {
	if err := tracker.SetPhase(trip.PhaseMainRoute); err != nil {
		log.Printf("vehicle %s: %v", vehicleID, err)
		return
	}
	tracker.SetPassengerCount(6 + rand.Intn(8))
	m.publishEvent(vehicleID, tracker.State(), "main_route")
}

// arriveAtStop records the scheduled stop, opens an idle window and churns
// passengers.
func (m *Manager) arriveAtStop(vehicleID string, pos route.Point, tracker *trip.Tracker, rec *triplog.Recorder) {
	tracker.RecordStop()
	if err := rec.BeginIdle(pos, triplog.IdleUnscheduledStop); err == nil && m.metrics != nil {
		m.metrics.IdleEvents.WithLabelValues(string(triplog.IdleUnscheduledStop)).Inc()
	}

	state := tracker.State()
	if clamped := tracker.SetPassengerCount(state.PassengerCount + rand.Intn(7) - 3); clamped {
		log.Printf("vehicle %s: passenger count clamped at stop", vehicleID)
	}

	// Riders occasionally leave feedback while the taxi waits.
	if rand.Intn(3) == 0 {
		category := reportCategories[rand.Intn(len(reportCategories))]
		if _, err := rec.RecordReport(category, ""); err == nil && m.metrics != nil {
			m.metrics.ReportsRecorded.WithLabelValues(string(category)).Inc()
		}
	}
}

func (m *Manager) finishTrip(vehicleID string, tracker *trip.Tracker, rec *triplog.Recorder) error {
	if err := tracker.SetPhase(trip.PhaseFinished); err != nil {
		// Trip never left the depot; finalize with the state as it stands.
		log.Printf("vehicle %s finishing from phase %s", vehicleID, tracker.State().Phase)
	}
	state := tracker.State()

	// Persistence must not be cut short by the trip context being cancelled.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.persistMu.Lock()
	finalized, err := rec.FinishTrip(persistCtx, state)
	m.persistMu.Unlock()
	if err != nil {
		if m.metrics != nil {
			m.metrics.StoreErrors.Inc()
		}
		log.Printf("vehicle %s: %v", vehicleID, err)
	}
	if finalized != nil {
		log.Printf("vehicle %s finished trip %s: %.1f units over %s, max %d passengers",
			vehicleID, finalized.ID, finalized.TotalDistance,
			finalized.EndTime.Sub(finalized.StartTime).Round(time.Second), finalized.MaxPassengers)
	}
	if m.metrics != nil {
		m.metrics.TripsFinished.Inc()
	}
	m.publishEvent(vehicleID, state, "trip_finished")
	return nil
}

func (m *Manager) publishTelemetry(vehicleID string, state trip.State, moving bool) {
	if m.pub == nil {
		return
	}
	msg := publisher.TelemetryMessage{
		VehicleID:    vehicleID,
		TripID:       state.ID,
		Timestamp:    m.clock.Now(),
		Position:     state.Position,
		SegmentIndex: state.SegmentIndex,
		Street:       state.CurrentStreet,
		Phase:        state.Phase,
		ProgressPct:  state.ProgressPercent,
		ETAMinutes:   state.ETAMinutes,
		Passengers:   state.PassengerCount,
		Moving:       moving,
	}
	if err := m.pub.PublishTelemetry(msg); err != nil {
		log.Printf("publish error for %s: %v", vehicleID, err)
	}
}

func (m *Manager) publishEvent(vehicleID string, state trip.State, event string) {
	if m.pub == nil {
		return
	}
	msg := publisher.EventMessage{
		VehicleID: vehicleID,
		TripID:    state.ID,
		Timestamp: m.clock.Now(),
		Event:     event,
		Phase:     state.Phase,
	}
	if err := m.pub.PublishEvent(msg); err != nil {
		log.Printf("publish error for %s: %v", vehicleID, err)
	}
}

// Stop cancels all running trips and waits for them to finalize their logs.
func (m *Manager) Stop() {
	m.mu.Lock()
	for _, cancel := range m.running {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}
