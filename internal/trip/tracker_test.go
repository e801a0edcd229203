package trip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minibus-tracker/internal/route"
)

func newTestRoute(t *testing.T) *route.Route {
	t.Helper()
	r, err := route.New([]route.Segment{
		{Street: "First Ave", Start: route.Point{X: 0, Y: 0}, End: route.Point{X: 100, Y: 0}, Length: 100},
		{Street: "Second St", Start: route.Point{X: 100, Y: 0}, End: route.Point{X: 100, Y: 50}, Length: 50},
	})
	require.NoError(t, err)
	return r
}

func TestNewTracker_InitialState(t *testing.T) {
	tr := NewTracker("TRIP-1", newTestRoute(t), route.Point{X: 0, Y: 0})
	st := tr.State()
	assert.Equal(t, "TRIP-1", st.ID)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, -1, st.SegmentIndex)
	assert.Equal(t, "Depot", st.CurrentStreet)
	assert.Zero(t, st.ProgressPercent)
}

// Full run along a 100+50 route over 150 seconds of reported movement.
func TestAdvancePosition_FullRoute(t *testing.T) {
	r := newTestRoute(t)
	tr := NewTracker("TRIP-1", r, route.Point{X: 0, Y: 0})

	for i := 1; i <= 150; i++ {
		pos := r.PointAt(float64(i))
		tr.AdvancePosition(pos, 1, true)
	}

	st := tr.State()
	assert.InDelta(t, 100, st.ProgressPercent, 1e-9)
	assert.Equal(t, 150.0, st.MovingSeconds)
	assert.Equal(t, 0.0, st.StoppedSeconds)
	assert.Equal(t, 1, st.SegmentIndex)
	assert.Equal(t, "Second St", st.CurrentStreet)
	assert.Equal(t, 0, st.ETAMinutes)
}

func TestAdvancePosition_ProgressNeverDecreasesGoingForward(t *testing.T) {
	r := newTestRoute(t)
	tr := NewTracker("TRIP-1", r, route.Point{X: 0, Y: 0})
	prev := 0.0
	for dist := 0.0; dist <= 150; dist += 5 {
		tr.AdvancePosition(r.PointAt(dist), 1, true)
		st := tr.State()
		assert.GreaterOrEqual(t, st.ProgressPercent, prev)
		prev = st.ProgressPercent
	}
}

func TestAdvancePosition_ETA(t *testing.T) {
	r := newTestRoute(t)
	tr := NewTracker("TRIP-1", r, route.Point{X: 0, Y: 0})

	// 150 units left at 10 units/s = 15s, rounded up to 1 minute.
	tr.AdvancePosition(route.Point{X: 0, Y: 0}, 1, true)
	assert.Equal(t, 1, tr.State().ETAMinutes)

	// At the end nothing remains.
	tr.AdvancePosition(route.Point{X: 100, Y: 50}, 1, true)
	assert.Equal(t, 0, tr.State().ETAMinutes)
}

func TestAdvancePosition_StoppedAccumulation(t *testing.T) {
	tr := NewTracker("TRIP-1", newTestRoute(t), route.Point{X: 0, Y: 0})
	tr.AdvancePosition(route.Point{X: 10, Y: 0}, 4, true)
	tr.AdvancePosition(route.Point{X: 10, Y: 0}, 6, false)
	st := tr.State()
	assert.Equal(t, 4.0, st.MovingSeconds)
	assert.Equal(t, 6.0, st.StoppedSeconds)
}

func TestAdvancePosition_EmptyRouteIsNoOp(t *testing.T) {
	empty, err := route.New(nil)
	require.NoError(t, err)
	tr := NewTracker("TRIP-1", empty, route.Point{})

	tr.AdvancePosition(route.Point{X: 5, Y: 5}, 2, true)
	st := tr.State()
	assert.Equal(t, -1, st.SegmentIndex)
	assert.Zero(t, st.ProgressPercent)
	assert.Zero(t, st.ETAMinutes)
	assert.Equal(t, 2.0, st.MovingSeconds)
	assert.Equal(t, route.Point{X: 5, Y: 5}, st.Position)
}

func TestSetPhase_Transitions(t *testing.T) {
	legal := [][2]Phase{
		{PhaseIdle, PhaseToRank},
		{PhaseIdle, PhaseMainRoute},
		{PhaseIdle, PhaseRoaming},
		{PhaseToRank, PhaseFinished},
		{PhaseMainRoute, PhaseFinished},
		{PhaseRoaming, PhaseFinished},
	}
	for _, edge := range legal {
		tr := NewTracker("TRIP-1", newTestRoute(t), route.Point{})
		tr.state.Phase = edge[0]
		assert.NoError(t, tr.SetPhase(edge[1]), "%s -> %s", edge[0], edge[1])
		assert.Equal(t, edge[1], tr.State().Phase)
	}

	illegal := [][2]Phase{
		{PhaseIdle, PhaseFinished},
		{PhaseToRank, PhaseMainRoute},
		{PhaseMainRoute, PhaseIdle},
		{PhaseMainRoute, PhaseRoaming},
		{PhaseFinished, PhaseIdle},
		{PhaseFinished, PhaseMainRoute},
	}
	for _, edge := range illegal {
		tr := NewTracker("TRIP-1", newTestRoute(t), route.Point{})
		tr.state.Phase = edge[0]
		err := tr.SetPhase(edge[1])
		assert.ErrorIs(t, err, ErrInvalidPhaseTransition, "%s -> %s", edge[0], edge[1])
		assert.Equal(t, edge[0], tr.State().Phase, "state must be unchanged")
	}
}

func TestSetPassengerCount_Clamps(t *testing.T) {
	tr := NewTracker("TRIP-1", newTestRoute(t), route.Point{})

	assert.False(t, tr.SetPassengerCount(7))
	assert.Equal(t, 7, tr.State().PassengerCount)

	assert.True(t, tr.SetPassengerCount(99))
	assert.Equal(t, Capacity, tr.State().PassengerCount)

	assert.True(t, tr.SetPassengerCount(-2))
	assert.Equal(t, 0, tr.State().PassengerCount)
}

func TestRecordStop(t *testing.T) {
	tr := NewTracker("TRIP-1", newTestRoute(t), route.Point{})
	tr.RecordStop()
	tr.RecordStop()
	assert.Equal(t, 2, tr.State().StopCount)
}

func TestReset(t *testing.T) {
	r := newTestRoute(t)
	tr := NewTracker("TRIP-1", r, route.Point{X: 0, Y: 0})
	require.NoError(t, tr.SetPhase(PhaseMainRoute))
	tr.AdvancePosition(route.Point{X: 60, Y: 0}, 30, true)
	tr.RecordStop()

	tr.Reset("TRIP-2")
	st := tr.State()
	assert.Equal(t, "TRIP-2", st.ID)
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Zero(t, st.StopCount)
	assert.Zero(t, st.MovingSeconds)
	assert.Equal(t, route.Point{X: 60, Y: 0}, st.Position, "position survives the reset")
}
