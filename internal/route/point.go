package route

import "math"

// Point is a position on the fixed planar map grid, in map units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// NearestPointOnSegment projects p onto the segment from a to b, clamped to
// the segment's extent. Returns a for a degenerate (zero-length) segment.
func NearestPointOnSegment(p, a, b Point) Point {
	dx := b.X - a.X
	dy := b.Y - a.Y
	len2 := dx*dx + dy*dy
	if len2 == 0 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / len2
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Point{X: a.X + dx*t, Y: a.Y + dy*t}
}

// GPSBounds is the bounding box used to map geographic coordinates onto the
// 100x100 planar grid. Coordinates outside the box are clamped to its edges.
type GPSBounds struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// DefaultGPSBounds covers the Apel (Limpopo) service area.
var DefaultGPSBounds = GPSBounds{LatMin: -24.59, LatMax: -24.35, LonMin: 29.57, LonMax: 29.88}

// NormalizeGPS maps a lat/lon pair into the planar grid through the given
// bounding box. Y grows southward: the top of the grid is the maximum
// latitude.
func NormalizeGPS(lat, lon float64, b GPSBounds) Point {
	lat = math.Max(b.LatMin, math.Min(b.LatMax, lat))
	lon = math.Max(b.LonMin, math.Min(b.LonMax, lon))
	latRange := b.LatMax - b.LatMin
	lonRange := b.LonMax - b.LonMin
	if latRange == 0 || lonRange == 0 {
		return Point{}
	}
	return Point{
		X: (lon - b.LonMin) / lonRange * 100,
		Y: 100 - (lat-b.LatMin)/latRange*100,
	}
}
