// ingestion-worker is the reference remote ingestion worker. It accepts jobs
// over HTTP and completes each one after a randomised delay.
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
	"ingestion/internal/observability"
	"ingestion/internal/worker"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg := config.LoadWorkerServerConfig()
	engineCfg := worker.LoadConfigFromEnv()

	metrics, metricsHandler, err := observability.NewMetrics(ctx, "ingestion-worker")
	if err != nil {
		return err
	}

	engine := worker.NewEngine(engineCfg, worker.WithMetrics(metrics))
	defer engine.Close()

	rpcServer := &http.Server{
		Addr:         ":" + srvCfg.Port,
		Handler:      worker.NewServer(engine).Routes(api.MetricsMiddleware(metrics)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + srvCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting worker RPC server",
			"port", srvCfg.Port,
			"minDelay", engineCfg.MinDelay,
			"maxDelay", engineCfg.MaxDelay,
			"failureRate", *engineCfg.FailureRate,
		)
		if err := rpcServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("Starting metrics server", "port", srvCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Starting graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(
			rpcServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	err = g.Wait()
	// In-memory jobs are lost on exit; pending completion timers are stopped.
	slog.Info("Shutdown complete", "jobs", engine.Len())
	return err
}
