// Package publisher emits trip telemetry over NATS for downstream
// commuter-facing consumers.
package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"minibus-tracker/internal/route"
	"minibus-tracker/internal/trip"
)

// Metrics receives publish-side instrumentation. A nil Metrics disables it.
type Metrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
	SetConnected(connected bool)
}

// NATSPublisher publishes telemetry and trip lifecycle events.
type NATSPublisher struct {
	nc          *nats.Conn
	logSubjects bool
	metrics     Metrics
}

// TelemetryMessage is one per-tick snapshot of a simulated vehicle.
type TelemetryMessage struct {
	VehicleID    string      `json:"vehicleId"`
	TripID       string      `json:"tripId"`
	Timestamp    time.Time   `json:"timestamp"`
	Position     route.Point `json:"position"`
	SegmentIndex int         `json:"segmentIndex"`
	Street       string      `json:"street"`
	Phase        trip.Phase  `json:"phase"`
	ProgressPct  float64     `json:"progressPct"`
	ETAMinutes   int         `json:"etaMinutes"`
	Passengers   int         `json:"passengers"`
	Moving       bool        `json:"moving"`
}

// EventMessage marks a trip lifecycle change.
type EventMessage struct {
	VehicleID string     `json:"vehicleId"`
	TripID    string     `json:"tripId"`
	Timestamp time.Time  `json:"timestamp"`
	Event     string     `json:"event"`
	Phase     trip.Phase `json:"phase"`
}

func NewNATSPublisher(url string, logSubjects bool, m Metrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("minibus-tracker"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected(true)
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PublishTelemetry publishes msg on minibus.telemetry.<vehicle>.<trip>.
func (p *NATSPublisher) PublishTelemetry(msg TelemetryMessage) error {
	subject := fmt.Sprintf("minibus.telemetry.%s.%s", subjectToken(msg.VehicleID), subjectToken(msg.TripID))
	return p.publish(subject, msg)
}

// PublishEvent publishes msg on minibus.events.<vehicle>.<trip>.
func (p *NATSPublisher) PublishEvent(msg EventMessage) error {
	subject := fmt.Sprintf("minibus.events.%s.%s", subjectToken(msg.VehicleID), subjectToken(msg.TripID))
	return p.publish(subject, msg)
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc()
		} else {
			p.metrics.PublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
