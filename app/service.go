// Package app wires the engine to its collaborators and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/berthplan/api/berths"
	apijournal "github.com/kilianp07/berthplan/api/journal"
	apischedule "github.com/kilianp07/berthplan/api/schedule"
	"github.com/kilianp07/berthplan/config"
	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/journal"
	coremetrics "github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/core/metrics/usage"
	coremon "github.com/kilianp07/berthplan/core/monitoring"
	"github.com/kilianp07/berthplan/core/reschedule"
	"github.com/kilianp07/berthplan/core/schedule"
	"github.com/kilianp07/berthplan/core/solver"
	"github.com/kilianp07/berthplan/infra/logger"
	"github.com/kilianp07/berthplan/infra/metrics"
	"github.com/kilianp07/berthplan/infra/monitoring"
	"github.com/kilianp07/berthplan/infra/mqtt"
	"github.com/kilianp07/berthplan/internal/eventbus"
	"github.com/kilianp07/berthplan/qa/scenarios"
)

// Service orchestrates the engine, its sinks and its transports.
type Service struct {
	Engine  *engine.Engine
	cfg     *config.Config
	bus     *eventbus.Bus
	journal journal.Store
	sink    coremetrics.MetricsSink
	client  *mqtt.PahoClient
	handler http.Handler
	log     logger.Logger
}

// New creates a Service from the configuration. The MQTT client is only
// created when a broker is configured.
func New(cfg *config.Config) (*Service, error) {
	logger.Configure(logger.Settings{Level: cfg.Logging.Level, Console: cfg.Logging.Console()})
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, err
	}
	coremon.Init(mon)

	checker := feasibility.New(cfg.Engine.Checker)
	scorer, err := solver.NewScorer(cfg.Engine.Solver.Scorer)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	sol := solver.New(checker, scorer, cfg.Engine.Solver, logger.New("solver"))
	eng, err := engine.New(schedule.NewStore(checker, logger.New("store")), sol, cfg.Engine.Config, logger.New("engine"))
	if err != nil {
		return nil, err
	}

	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	eng.SetJournal(store)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	eng.SetMetrics(sink)

	bus := eventbus.New()
	eng.SetBus(bus)

	svc := &Service{Engine: eng, cfg: cfg, bus: bus, journal: store, sink: sink, log: logg}
	if cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = eng.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		eng.SetNotifier(client)
		svc.client = client
	}

	opts := []apischedule.Option{
		apischedule.WithBus(bus),
		apischedule.WithLogger(logger.New("api")),
		apischedule.WithHandler("/journal", apijournal.NewLogHandler(store, cfg.API.Token)),
	}
	if us := usageStore(sink); us != nil {
		opts = append(opts, apischedule.WithHandler("/berths/{id}/usage", berths.NewUsageHandler(us)))
	}
	svc.handler = apischedule.New(eng, opts...).Router()
	return svc, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Seed registers the berths and vessels of the configured scenario and
// plans them.
func (s *Service) Seed(ctx context.Context) error {
	if s.cfg.Seed.Scenario == "" {
		return nil
	}
	sc, err := scenarios.Load(s.cfg.Seed.Scenario)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	out, err := scenarios.Run(ctx, s.Engine, sc)
	if err != nil {
		return fmt.Errorf("seed %s: %w", sc.Name, err)
	}
	for _, rerr := range out.Rejected {
		s.log.Warnf("seed %s: %v", sc.Name, rerr)
	}
	s.log.Infof("seeded %s: %d berths, %d placed, %d pending",
		sc.Name, len(sc.Berths), len(out.Schedule.Assignments()), len(out.Schedule.Pending()))
	return nil
}

// Run starts the service and blocks until the context is cancelled or a
// component fails.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Seed(ctx); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)

	var evs <-chan reschedule.Event
	if s.client != nil {
		evs = s.client.Events()
	}
	g.Go(func() error {
		s.Engine.Run(ctx, evs)
		return nil
	})
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error {
			return metrics.StartPromServer(ctx, addr, logger.New("prometheus"))
		})
	}
	if addr := s.cfg.API.Addr; addr != "" {
		g.Go(func() error { return s.serveAPI(ctx, addr) })
	}
	return g.Wait()
}

func (s *Service) serveAPI(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.API.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("api listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.client != nil {
		s.client.Disconnect()
	}
	closeSinks(s.sink)
	coremon.Flush(2 * time.Second)
	return s.Engine.Close()
}

type closer interface{ Close() }

func closeSinks(sink coremetrics.MetricsSink) {
	if m, ok := sink.(*coremetrics.MultiSink); ok {
		for _, s := range m.Sinks {
			closeSinks(s)
		}
		return
	}
	if c, ok := sink.(closer); ok {
		c.Close()
	}
}

func usageStore(sink coremetrics.MetricsSink) usage.Store {
	switch s := sink.(type) {
	case *metrics.UsageSink:
		return s.Store()
	case *coremetrics.MultiSink:
		for _, inner := range s.Sinks {
			if st := usageStore(inner); st != nil {
				return st
			}
		}
	}
	return nil
}
