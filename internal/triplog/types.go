// Package triplog records the telemetry of an active trip into an
// append-only log, finalizes it into aggregate statistics, and renders
// finalized logs as a human-readable daily report.
package triplog

import (
	"time"

	"minibus-tracker/internal/route"
	"minibus-tracker/internal/trip"
)

// ReportCategory classifies passenger feedback. SafeDriving is the only
// positive category; everything else counts as negative.
type ReportCategory string

const (
	ReportSafeDriving     ReportCategory = "SAFE_DRIVING"
	ReportRecklessDriving ReportCategory = "RECKLESS_DRIVING"
	ReportCleanliness     ReportCategory = "CLEANLINESS"
	ReportMusicVolume     ReportCategory = "MUSIC_VOLUME"
	ReportOvercrowding    ReportCategory = "OVERCROWDING"
	ReportOther           ReportCategory = "OTHER"
)

// IdleReason says why the vehicle was stationary.
type IdleReason string

const (
	IdlePreTrip         IdleReason = "Pre-Trip"
	IdleUnscheduledStop IdleReason = "Unscheduled Stop"
)

// PathPoint is one recorded position sample.
type PathPoint struct {
	Position  route.Point `json:"position"`
	Timestamp time.Time   `json:"timestamp"`
}

// PassengerMilestone marks a change in passenger count. Consecutive
// milestones bound a constant-count interval for time-weighted averages.
type PassengerMilestone struct {
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// IdleEvent is a closed window during which the vehicle was stationary.
type IdleEvent struct {
	Position  route.Point `json:"position"`
	StartTime time.Time   `json:"startTime"`
	EndTime   time.Time   `json:"endTime"`
	Reason    IdleReason  `json:"reason"`
}

// PassengerReport is one piece of rider feedback, immutable once created.
type PassengerReport struct {
	ID        string         `json:"id"`
	TripID    string         `json:"tripId"`
	Category  ReportCategory `json:"category"`
	Comment   string         `json:"comment,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Log is the record of one trip. It is mutable while the Recorder owns it
// and becomes immutable once FinishTrip fills in the aggregate fields.
type Log struct {
	ID                  string               `json:"id"`
	StartTime           time.Time            `json:"startTime"`
	EndTime             time.Time            `json:"endTime,omitzero"`
	Path                []PathPoint          `json:"path"`
	PassengerMilestones []PassengerMilestone `json:"passengerMilestones"`
	PassengerReports    []PassengerReport    `json:"passengerReports"`
	IdleEvents          []IdleEvent          `json:"idleEvents"`
	TotalDistance       float64              `json:"totalDistance"`
	AverageSpeed        float64              `json:"averageSpeed"` // map units per second
	MaxPassengers       int                  `json:"maxPassengers"`
	AveragePassengers   float64              `json:"averagePassengers"`
	CapacityUtilization float64              `json:"capacityUtilization"` // percent of the 16-seat capacity
	PositiveReports     int                  `json:"positiveReports"`
	NegativeReports     int                  `json:"negativeReports"`
	FinalState          trip.State           `json:"finalState"`
}
