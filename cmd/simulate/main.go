package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"order-dispatch/internal/config"
	"order-dispatch/internal/engine"
	"order-dispatch/internal/events"
	"order-dispatch/internal/logging"
	"order-dispatch/internal/metrics"
	"order-dispatch/internal/models"
	"order-dispatch/internal/repository"
	"order-dispatch/internal/service"
	"order-dispatch/internal/tracing"
)

// summary is printed once the simulation ends
type summary struct {
	RunID    string           `json:"run_id"`
	Pending  int              `json:"pending"`
	Assigned int              `json:"assigned"`
	Done     []models.Order   `json:"done"`
	Bots     []models.Bot     `json:"bots"`
	Stats    map[string]int64 `json:"stats"`
}

func summarize(snap models.Snapshot, stats map[string]int64) summary {
	return summary{
		RunID:    snap.RunID,
		Pending:  len(snap.Pending),
		Assigned: len(snap.Assigned),
		Done:     snap.Done,
		Bots:     snap.Bots,
		Stats:    stats,
	}
}

// drainTimeout bounds how long buffered events are flushed after the run
const drainTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	bots := flag.Int("bots", 2, "number of bots to start with")
	standard := flag.Int("standard", 4, "number of STANDARD orders")
	priority := flag.Int("priority", 2, "number of PRIORITY orders")
	interval := flag.Duration("interval", time.Second, "delay between order submissions")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	scenario := service.Scenario{
		Bots:           *bots,
		Standard:       *standard,
		Priority:       *priority,
		SubmitInterval: *interval,
	}

	if err := run(cfg, scenario); err != nil {
		log.Fatalf("simulation error: %v", err)
	}
}

func run(cfg *config.Config, scenario service.Scenario) error {
	// logs go to stderr so stdout carries only the summary
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Trace, os.Stderr)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	defer tracing.Shutdown(context.Background(), tp, logger)

	var sinks []events.Sink
	if cfg.Journal.Enabled {
		repo, err := repository.NewSQLiteRepository(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize repository: %w", err)
		}
		defer repo.Close()
		sinks = append(sinks, events.NewJournalSink(repo))
	}

	publisher := events.NewPublisher(logger, events.PublisherOptions{BufferSize: cfg.Events.BufferSize}, sinks...)
	metricsInstance := metrics.NewMetrics()

	eng := engine.New(engine.Options{
		Logger:           logger,
		EventHandler:     engine.NewMultiEventHandler(metricsInstance, publisher),
		StrictInvariants: cfg.Engine.StrictInvariants,
	})

	simulation := service.NewSimulationService(eng, nil, logger)

	var result summary
	drainCtx, cancelDrain := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDrain()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := publisher.Run(drainCtx)
		if errors.Is(err, context.Canceled) {
			logger.Warn("event drain cut short by shutdown deadline")
			return nil
		}
		return err
	})
	eg.Go(func() error {
		defer func() {
			eng.Close()
			publisher.Close()
			time.AfterFunc(drainTimeout, cancelDrain)
		}()
		s, err := simulation.Run(egCtx, scenario)
		result = summarize(s, metricsInstance.GetSnapshot())
		if errors.Is(err, context.Canceled) {
			logger.Warn("simulation interrupted")
			return nil
		}
		return err
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
