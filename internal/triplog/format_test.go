package triplog

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minibus-tracker/internal/route"
)

func formatTestRoute(t *testing.T) *route.Route {
	t.Helper()
	r, err := route.New([]route.Segment{
		{Street: "First Ave", Start: route.Point{X: 0, Y: 0}, End: route.Point{X: 100, Y: 0}, Length: 100},
		{Street: "Second St", Start: route.Point{X: 100, Y: 0}, End: route.Point{X: 100, Y: 50}, Length: 50},
	})
	require.NoError(t, err)
	return r
}

func TestFormatReport_NoTrips(t *testing.T) {
	got := FormatReport(nil, formatTestRoute(t), t0)
	assert.Equal(t, "No trips logged for today.", got)
}

func TestFormatReport_ZeroReportsScoresFullComfort(t *testing.T) {
	l := Log{
		ID:        "TRIP-1",
		StartTime: t0,
		EndTime:   t0.Add(5 * time.Minute),
		Path:      []PathPoint{{Position: route.Point{X: 0, Y: 0}, Timestamp: t0}},
	}
	got := FormatReport([]Log{l}, formatTestRoute(t), t0)
	assert.Contains(t, got, "Comfort Score: 100% (0/0 positive reports)")
}

func TestFormatReport_RendersStatsAndSections(t *testing.T) {
	r := formatTestRoute(t)
	l := Log{
		ID:        "TRIP-9",
		StartTime: t0,
		EndTime:   t0.Add(90 * time.Second),
		Path: []PathPoint{
			{Position: route.Point{X: 0, Y: 0}, Timestamp: t0},
			{Position: route.Point{X: 50, Y: 0}, Timestamp: t0.Add(30 * time.Second)},
			{Position: route.Point{X: 100, Y: 0}, Timestamp: t0.Add(60 * time.Second)},
			{Position: route.Point{X: 100, Y: 40}, Timestamp: t0.Add(80 * time.Second)},
		},
		IdleEvents: []IdleEvent{
			{Position: route.Point{X: 100, Y: 0}, StartTime: t0.Add(60 * time.Second), EndTime: t0.Add(75 * time.Second), Reason: IdleUnscheduledStop},
		},
		PassengerReports: []PassengerReport{
			{ID: "r1", TripID: "TRIP-9", Category: ReportSafeDriving, Timestamp: t0.Add(20 * time.Second)},
			{ID: "r2", TripID: "TRIP-9", Category: ReportMusicVolume, Comment: "too loud", Timestamp: t0.Add(40 * time.Second)},
		},
		TotalDistance:       140,
		AverageSpeed:        2, // map units per second
		MaxPassengers:       9,
		AveragePassengers:   6.5,
		CapacityUtilization: 40.6,
		PositiveReports:     1,
		NegativeReports:     1,
	}

	got := FormatReport([]Log{l}, r, t0)

	assert.Contains(t, got, "====== TRIP 1 (ID: TRIP-9) ======")
	assert.Contains(t, got, "Time: 08:00:00 - 08:01:30")
	assert.Contains(t, got, "Duration: 1m 30s")
	// 140 units * 0.0175 km/unit
	assert.Contains(t, got, "Distance: 2.45 km")
	// 2 units/s * 0.0175 km/unit * 3600 = 126 km/h
	assert.Contains(t, got, "Speed (Avg): 126.0 km/h")
	assert.Contains(t, got, "Comfort Score: 50% (1/2 positive reports)")
	assert.Contains(t, got, "Capacity Util.: 40.6% (Avg 6.5 / Max 9 passengers)")
	assert.Contains(t, got, "IDLE TIME (Total: 0m 15s)")
	assert.Contains(t, got, "Unscheduled Stop near First Ave for 0m 15s")
	assert.Contains(t, got, `MUSIC VOLUME: "too loud"`)
	assert.Contains(t, got, "SAFE DRIVING\n")
}

func TestFormatReport_CollapsesConsecutiveStreets(t *testing.T) {
	r := formatTestRoute(t)
	l := Log{
		ID:        "TRIP-1",
		StartTime: t0,
		EndTime:   t0.Add(time.Minute),
		Path: []PathPoint{
			{Position: route.Point{X: 0, Y: 0}},
			{Position: route.Point{X: 30, Y: 0}},
			{Position: route.Point{X: 60, Y: 0}},
			{Position: route.Point{X: 100, Y: 30}},
			{Position: route.Point{X: 100, Y: 45}},
		},
	}
	got := FormatReport([]Log{l}, r, t0)
	assert.Contains(t, got, "First Ave -> Second St\n")
	assert.Equal(t, 1, strings.Count(got, "First Ave ->"))
}

func TestFormatReport_InProgressTrip(t *testing.T) {
	l := Log{
		ID:        "TRIP-1",
		StartTime: t0,
		Path:      []PathPoint{{Position: route.Point{X: 0, Y: 0}}},
	}
	got := FormatReport([]Log{l}, formatTestRoute(t), t0.Add(2*time.Minute))
	assert.Contains(t, got, "Time: 08:00:00 - In Progress")
	assert.Contains(t, got, "Duration: 2m 0s")
}

func TestFormatReport_MultipleTripsInOrder(t *testing.T) {
	a := Log{ID: "TRIP-A", StartTime: t0, EndTime: t0.Add(time.Minute), Path: []PathPoint{{}}}
	b := Log{ID: "TRIP-B", StartTime: t0.Add(time.Hour), EndTime: t0.Add(time.Hour + time.Minute), Path: []PathPoint{{}}}
	got := FormatReport([]Log{a, b}, formatTestRoute(t), t0)
	posA := strings.Index(got, "TRIP-A")
	posB := strings.Index(got, "TRIP-B")
	assert.Greater(t, posA, -1)
	assert.Greater(t, posB, posA)
	assert.Contains(t, got, "====== TRIP 2 (ID: TRIP-B) ======")
}
