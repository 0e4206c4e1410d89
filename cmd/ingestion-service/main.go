// ingestion-service is the HTTP API server that creates and controls ingestion
// jobs run by a remote ingestion worker.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ingestion/internal/api"
	"ingestion/internal/config"
	"ingestion/internal/dispatcher"
	"ingestion/internal/health"
	"ingestion/internal/job"
	"ingestion/internal/observability"
	"ingestion/internal/store"
	"ingestion/internal/workerclient"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	workerCfg := workerclient.LoadConfigFromEnv()

	metrics, metricsHandler, err := observability.NewMetrics(ctx, "ingestion-service")
	if err != nil {
		return err
	}

	records, err := store.Open(ctx, svcCfg.StoreDriver, svcCfg.StoreDSN)
	if err != nil {
		return err
	}
	defer records.Close()
	slog.Info("Record store opened", "driver", svcCfg.StoreDriver)

	client := workerclient.New(workerCfg, metrics)

	// Status-change notifications are optional
	var eventDispatcher dispatcher.Dispatcher = dispatcher.Discard{}
	opts := []job.Option{job.WithMetrics(metrics)}
	if svcCfg.WebhookURL != "" {
		eventDispatcher = dispatcher.NewMemory(dispatcher.LoadConfigFromEnv(), metrics)
		opts = append(opts, job.WithNotifier(
			job.NewWebhookNotifier(eventDispatcher, "ingestion-service", svcCfg.WebhookURL, svcCfg.WebhookKey),
		))
		slog.Info("Status notifications enabled", "url", svcCfg.WebhookURL)
	}

	jobService := job.NewService(records, client, opts...)

	healthChecker := health.NewChecker().
		Register("worker", client).
		Register("store", health.CheckFunc(records.Ping))

	router := api.NewRouter(api.RouterConfig{
		JobService:    jobService,
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting API server", "port", svcCfg.Port, "worker", workerCfg.BaseURL)
		return listen(apiServer)
	})
	g.Go(func() error {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		return listen(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			slog.Info("Received shutdown signal")

			// Phase 1: Mark service as unhealthy for load balancer draining
			healthChecker.SetShuttingDown()
			if svcCfg.ShutdownDrainWait > 0 {
				slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
				time.Sleep(svcCfg.ShutdownDrainWait)
			}
		}

		// Phase 2: stop accepting new connections, finish in-flight requests
		slog.Info("Starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	err = g.Wait()

	// Phase 3: deliver queued notifications
	dispatcherCtx, dispatcherCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dispatcherCancel()
	if cerr := eventDispatcher.Close(dispatcherCtx); cerr != nil {
		slog.Warn("Dispatcher shutdown error", "error", cerr)
	}
	stats := eventDispatcher.Stats()
	slog.Info("Dispatcher stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	// Jobs keep running on the worker; their status is picked up on the next GetStatus.
	slog.Info("Shutdown complete")
	return err
}

// listen runs srv until it is shut down.
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
