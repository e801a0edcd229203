// Package advisory defines the contract with the generative advisory-text
// collaborator. The engine never calls it; the types exist so UI-facing
// consumers share one prompt/response shape with whatever provider is
// plugged in.
package advisory

import (
	"context"

	"minibus-tracker/internal/route"
	"minibus-tracker/internal/trip"
)

// Provider turns a structured prompt into one of the response shapes below.
// Implementations are external; responses are parsed structurally, never
// validated semantically.
type Provider interface {
	OptimizeRoute(ctx context.Context, segments []route.Segment) (RouteSuggestion, error)
	PredictETA(ctx context.Context, req ETARequest) (ETAPrediction, error)
	AnalyzeBehavior(ctx context.Context, req BehaviorData) (BehaviorSummary, error)
	RateDriver(ctx context.Context, req FeedbackRequest) (FeedbackRating, error)
	LandmarkDirections(ctx context.Context, seg route.Segment, destination string) (Directions, error)
	SuggestHotspot(ctx context.Context) (HotspotSuggestion, error)
}

// ETARequest carries the current trip figures for a predictive ETA prompt.
type ETARequest struct {
	CurrentETAMinutes int     `json:"currentEtaMinutes"`
	ProgressPercent   float64 `json:"progressPercent"`
}

// BehaviorData summarizes driver behavior for an analysis prompt.
type BehaviorData struct {
	IdleSeconds       float64 `json:"idleSeconds"`
	HarshBrakingCount int     `json:"harshBrakingCount"`
	StopCount         int     `json:"stopCount"`
}

// FeedbackRequest asks for an overall driver rating.
type FeedbackRequest struct {
	StopCount   int     `json:"stopCount"`
	IdleSeconds float64 `json:"idleSeconds"`
}

// BehaviorFromState builds an analysis prompt from the live trip figures.
// Harsh-braking detection needs accelerometer input the tracker does not
// have, so the count stays zero here and callers with sensor data fill it in.
func BehaviorFromState(st trip.State) BehaviorData {
	return BehaviorData{
		IdleSeconds: st.StoppedSeconds,
		StopCount:   st.StopCount,
	}
}

// FeedbackFromState builds a driver-rating prompt from the live trip figures.
func FeedbackFromState(st trip.State) FeedbackRequest {
	return FeedbackRequest{
		StopCount:   st.StopCount,
		IdleSeconds: st.StoppedSeconds,
	}
}

type RouteSuggestion struct {
	OptimizedRoute []string `json:"optimizedRoute"`
	Reason         string   `json:"reason"`
}

type ETAPrediction struct {
	PredictiveETA int      `json:"predictiveETA"`
	Factors       []string `json:"factors"`
}

type BehaviorSummary struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

type FeedbackRating struct {
	Rating   float64 `json:"rating"`
	Feedback string  `json:"feedback"`
}

type Directions struct {
	Directions []string `json:"directions"`
}

type HotspotSuggestion struct {
	Hotspot string `json:"hotspot"`
	Reason  string `json:"reason"`
}
