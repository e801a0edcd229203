package route

import (
	"encoding/json"
	"fmt"
	"os"
)

// Segment is one straight leg of the route. Length is the stored road
// distance in map units; it may differ slightly from the straight-line
// distance between Start and End, and ETA math always uses the stored value
// for whole segments.
type Segment struct {
	Street       string   `json:"street"`
	Start        Point    `json:"start"`
	End          Point    `json:"end"`
	Length       float64  `json:"distance"`
	DwellSeconds int      `json:"stopDuration,omitempty"`
	Landmarks    []string `json:"landmarks,omitempty"`
}

// Route is an ordered, immutable sequence of segments. Safe for concurrent
// readers; it is never mutated after construction.
type Route struct {
	segments []Segment
	total    float64
}

// Projection is the result of projecting a point onto the route polyline.
// SegmentIndex is -1 when the route has no segments.
type Projection struct {
	SegmentIndex       int
	NearestPoint       Point
	DistanceFromRoute  float64
	CumulativeDistance float64
}

// New builds a Route from the given segments.
func New(segments []Segment) (*Route, error) {
	total := 0.0
	for i, s := range segments {
		if s.Length < 0 {
			return nil, fmt.Errorf("segment %d (%s): negative length %v", i, s.Street, s.Length)
		}
		total += s.Length
	}
	return &Route{segments: segments, total: total}, nil
}

// Default returns the built-in Apel (Limpopo) minibus route.
func Default() *Route {
	r, _ := New([]Segment{
		{Street: "R579 / Jane Furse Rd", Start: Point{X: 42, Y: 54}, End: Point{X: 52, Y: 42}, Length: 156},
		{Street: "Apel Main Rd", Start: Point{X: 52, Y: 42}, End: Point{X: 61, Y: 33}, Length: 127, DwellSeconds: 15, Landmarks: []string{"Apel Community Hall", "Local Market"}},
		{Street: "Mooiplaas St", Start: Point{X: 61, Y: 33}, End: Point{X: 74, Y: 42}, Length: 158, Landmarks: []string{"Mooiplaas School", "Tuck Shop"}},
		{Street: "Ga-Nkoana Rd", Start: Point{X: 74, Y: 42}, End: Point{X: 74, Y: 71}, Length: 290, DwellSeconds: 10, Landmarks: []string{"Ga-Nkoana Primary", "Water Tower"}},
		{Street: "Strydkraal Rd", Start: Point{X: 74, Y: 71}, End: Point{X: 85, Y: 65}, Length: 125},
	})
	return r
}

// LoadFile reads a JSON array of segments from path.
func LoadFile(path string) (*Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route file: %w", err)
	}
	var segments []Segment
	if err := json.Unmarshal(raw, &segments); err != nil {
		return nil, fmt.Errorf("parse route file %s: %w", path, err)
	}
	return New(segments)
}

// Len returns the number of segments.
func (r *Route) Len() int { return len(r.segments) }

// SegmentAt returns the segment at index i.
func (r *Route) SegmentAt(i int) (Segment, bool) {
	if i < 0 || i >= len(r.segments) {
		return Segment{}, false
	}
	return r.segments[i], true
}

// Segments returns the segment slice. Callers must not modify it.
func (r *Route) Segments() []Segment { return r.segments }

// TotalLength returns the sum of stored segment lengths.
func (r *Route) TotalLength() float64 { return r.total }

// Project maps p onto the nearest point of the route polyline. Every segment
// is scanned; ties go to the lowest segment index so repeated calls are
// deterministic.
func (r *Route) Project(p Point) Projection {
	if len(r.segments) == 0 {
		return Projection{SegmentIndex: -1}
	}
	best := Projection{SegmentIndex: -1}
	minDist := 0.0
	for i, seg := range r.segments {
		nearest := NearestPointOnSegment(p, seg.Start, seg.End)
		d := Distance(p, nearest)
		if best.SegmentIndex == -1 || d < minDist {
			minDist = d
			best = Projection{SegmentIndex: i, NearestPoint: nearest, DistanceFromRoute: d}
		}
	}
	cum := 0.0
	for i := 0; i < best.SegmentIndex; i++ {
		cum += r.segments[i].Length
	}
	cum += Distance(r.segments[best.SegmentIndex].Start, best.NearestPoint)
	best.CumulativeDistance = cum
	return best
}

// RemainingDistance returns the distance left from the given position on
// segment fromIdx to the end of segment toIdx. A destination behind the
// current segment yields 0, never a negative distance.
func (r *Route) RemainingDistance(from Point, fromIdx, toIdx int) float64 {
	if fromIdx < 0 || fromIdx >= len(r.segments) {
		return 0
	}
	if toIdx >= len(r.segments) {
		toIdx = len(r.segments) - 1
	}
	if toIdx < fromIdx {
		return 0
	}
	if fromIdx == toIdx {
		return Distance(from, r.segments[toIdx].End)
	}
	remaining := Distance(from, r.segments[fromIdx].End)
	for i := fromIdx + 1; i < toIdx; i++ {
		remaining += r.segments[i].Length
	}
	return remaining + r.segments[toIdx].Length
}

// PointAt interpolates the position at a cumulative distance along the route,
// walking stored segment lengths. Distances outside [0, TotalLength] clamp to
// the route endpoints.
func (r *Route) PointAt(dist float64) Point {
	if len(r.segments) == 0 {
		return Point{}
	}
	if dist <= 0 {
		return r.segments[0].Start
	}
	covered := 0.0
	for _, seg := range r.segments {
		if dist <= covered+seg.Length {
			if seg.Length == 0 {
				return seg.Start
			}
			frac := (dist - covered) / seg.Length
			return Point{
				X: seg.Start.X + (seg.End.X-seg.Start.X)*frac,
				Y: seg.Start.Y + (seg.End.Y-seg.Start.Y)*frac,
			}
		}
		covered += seg.Length
	}
	return r.segments[len(r.segments)-1].End
}

// NearestStreet names the street of the segment closest to p.
func (r *Route) NearestStreet(p Point) string {
	proj := r.Project(p)
	if proj.SegmentIndex < 0 {
		return "Unknown Area"
	}
	return r.segments[proj.SegmentIndex].Street
}
