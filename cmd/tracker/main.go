package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"minibus-tracker/internal/clock"
	"minibus-tracker/internal/config"
	"minibus-tracker/internal/metrics"
	"minibus-tracker/internal/publisher"
	"minibus-tracker/internal/route"
	"minibus-tracker/internal/sim"
	"minibus-tracker/internal/store"
	"minibus-tracker/internal/triplog"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Route: built-in Apel route unless a route file is configured
	r := route.Default()
	if cfg.RouteFile != "" {
		r, err = route.LoadFile(cfg.RouteFile)
		if err != nil {
			log.Fatalf("route error: %v", err)
		}
		log.Printf("loaded route with %d segments from %s", r.Len(), cfg.RouteFile)
	}

	// Log storage: Postgres when configured, in-memory otherwise
	var logStore store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer pg.Close()
		logStore = pg
		log.Printf("trip logs persisted to postgres")
	} else {
		logStore = store.NewMemory()
		log.Printf("no DATABASE_URL set, trip logs held in memory")
	}

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrvCancel context.CancelFunc
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SpeedMultiplier, cfg.TickInterval, cfg.Vehicles)
		mctx, mcancel := context.WithCancel(ctx)
		metricsSrvCancel = mcancel
		srv := mcol.Serve(cfg.MetricsAddr)
		go func() {
			<-mctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Initialize NATS publisher
	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer pub.Close()

	// Timestamps follow the configured zone so day scoping of logs matches
	// the driver's calendar.
	clk := zoneClock{loc: cfg.Location}
	mgr := sim.NewManager(r, logStore, pub, clk, cfg.TickInterval, cfg.SpeedMultiplier, cfg.PreTripIdle, mcol)
	mgr.Start(ctx, cfg.Vehicles)

	// Block until context cancelled, then drain trips
	<-ctx.Done()
	mgr.Stop()
	if metricsSrvCancel != nil {
		metricsSrvCancel()
	}

	printDailyReport(logStore, r, clk)
	log.Println("shutdown complete")
}

// printDailyReport renders today's finalized logs on the way out.
func printDailyReport(s store.Store, r *route.Route, clk clock.Clock) {
	reportCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := triplog.NewRecorder(s, clk)
	logs, err := rec.ListTodaysLogs(reportCtx)
	if err != nil {
		log.Printf("daily report unavailable: %v", err)
		return
	}
	fmt.Println(triplog.FormatReport(logs, r, clk.Now()))
}

// zoneClock is a real clock pinned to the configured time zone.
type zoneClock struct{ loc *time.Location }

func (z zoneClock) Now() time.Time { return time.Now().In(z.loc) }

// wrapPublisherMetrics adapts the Collector to the publisher.Metrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.Metrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) PublishedInc()                  { p.c.NATSPublished.Inc() }
func (p *pubMetrics) PublishErrInc()                 { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) SetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
