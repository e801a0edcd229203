package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveTrips prometheus.Gauge

	TripsStarted  prometheus.Counter
	TripsFinished prometheus.Counter

	PathSamples     prometheus.Counter
	ReportsRecorded *prometheus.CounterVec // category label
	IdleEvents      *prometheus.CounterVec // reason label
	StoreErrors     prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	SpeedMultiplier prometheus.Gauge
	TickInterval    prometheus.Gauge // seconds
	Vehicles        prometheus.Gauge
}

func NewCollector(speedMultiplier float64, tickInterval time.Duration, vehicles int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_trips",
			Help: "Number of currently running trip goroutines.",
		}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_started_total",
			Help: "Total trips started.",
		}),
		TripsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_finished_total",
			Help: "Total trips finished and finalized.",
		}),
		PathSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_path_samples_total",
			Help: "Total position samples fed to the trip log recorder.",
		}),
		ReportsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_passenger_reports_total",
			Help: "Passenger reports recorded.",
		}, []string{"category"}),
		IdleEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_idle_events_total",
			Help: "Idle windows opened.",
		}, []string{"reason"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_store_errors_total",
			Help: "Failed trip log persistence attempts.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		SpeedMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_speed_multiplier",
			Help: "Current simulation speed multiplier.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_tick_interval_seconds",
			Help: "Simulation tick interval in seconds.",
		}),
		Vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_vehicles",
			Help: "Number of simulated vehicles.",
		}),
	}

	reg.MustRegister(
		c.ActiveTrips,
		c.TripsStarted, c.TripsFinished,
		c.PathSamples, c.ReportsRecorded, c.IdleEvents, c.StoreErrors,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.SpeedMultiplier, c.TickInterval, c.Vehicles,
	)

	c.SpeedMultiplier.Set(speedMultiplier)
	c.TickInterval.Set(tickInterval.Seconds())
	c.Vehicles.Set(float64(vehicles))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
