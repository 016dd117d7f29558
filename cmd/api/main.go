package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"order-dispatch/internal/config"
	"order-dispatch/internal/engine"
	"order-dispatch/internal/events"
	"order-dispatch/internal/handler"
	"order-dispatch/internal/logging"
	"order-dispatch/internal/metrics"
	"order-dispatch/internal/repository"
	"order-dispatch/internal/service"
	"order-dispatch/internal/tracing"
)

const readHeaderTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("api error: %v", err)
	}
}

func run(cfg *config.Config) error {
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Trace, os.Stdout)
	if err != nil {
		return err
	}
	otel.SetTracerProvider(tp)
	defer tracing.Shutdown(context.Background(), tp, logger)

	// Initialize journal
	var journal repository.JournalRepository
	var sinks []events.Sink
	if cfg.Journal.Enabled {
		repo, err := repository.NewSQLiteRepository(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize repository: %w", err)
		}
		defer repo.Close()
		journal = repo
		sinks = append(sinks, events.NewJournalSink(repo))
	}

	if cfg.Redis.Enabled {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		defer client.Close()
		sinks = append(sinks, events.NewRedisSink(client, cfg.Redis.Channel))
	}

	if cfg.Kafka.Enabled {
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.Kafka.Brokers...),
			Topic:    cfg.Kafka.Topic,
			Balancer: &kafka.Hash{},
		}
		defer writer.Close()
		sinks = append(sinks, events.NewKafkaSink(writer))
	}

	publisher := events.NewPublisher(logger, events.PublisherOptions{BufferSize: cfg.Events.BufferSize}, sinks...)
	metricsInstance := metrics.NewMetrics()

	eng := engine.New(engine.Options{
		Logger:           logger,
		EventHandler:     engine.NewMultiEventHandler(metricsInstance, publisher),
		StrictInvariants: cfg.Engine.StrictInvariants,
	})

	dispatchService := service.NewDispatchService(eng, journal, metricsInstance, logger)
	orderHandler := handler.NewOrderHandler(dispatchService, metricsInstance.Registry(), logger)

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(orderHandler, cfg.HTTP.AllowOrigin)

	logger.InfoContext(ctx, "engine started",
		slog.String("run_id", eng.RunID()),
		slog.Int("sinks", len(sinks)))

	// buffered events are still flushed after shutdown starts, for at most
	// the graceful shutdown period
	drainCtx, cancelDrain := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelDrain()
	shutdownTimeout := time.Duration(cfg.HTTP.GracefulShutdownSec) * time.Second

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return runPublisher(drainCtx, logger, publisher)
	})
	eg.Go(func() error {
		defer func() {
			eng.Close()
			publisher.Close()
			time.AfterFunc(shutdownTimeout, cancelDrain)
		}()
		return serve(egCtx, logger, router, cfg.HTTP)
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped", slog.Int64("dropped_events", publisher.Dropped()))
	return nil
}

// runPublisher treats a drain cut short by the shutdown deadline as a clean
// stop; the lost events are reported by publisher.Dropped.
func runPublisher(ctx context.Context, logger *slog.Logger, publisher *events.Publisher) error {
	err := publisher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Warn("event drain cut short by shutdown deadline")
		return nil
	}
	return err
}

func serve(ctx context.Context, logger *slog.Logger, router http.Handler, cfg *config.HTTPConfig) error {
	httpServer := http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.InfoContext(ctx, fmt.Sprintf("API server listening at %v", httpServer.Addr))

	errCh := make(chan error)
	go func() {
		defer close(errCh)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.GracefulShutdownSec)*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
