package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/knowledge-assistant/internal/bootstrap"
	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/observability/logging"
	"github.com/kirillkom/knowledge-assistant/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 15 * time.Minute
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:          logger,
		BreakerObserver: workerMetrics.ObserveBreaker,
		ConsumeQueue:    true,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIndexJobs(ctx, func(handlerCtx context.Context, job domain.IndexJob) error {
		jobCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()

		workerMetrics.ObserveQueueLag(serviceName, time.Since(job.RequestedAt))
		workerMetrics.StartJob()
		start := time.Now()

		result, err := app.Ingest.IngestSource(jobCtx, domain.SessionContext{SessionID: job.SessionID}, job.Request)
		workerMetrics.FinishJob(serviceName, time.Since(start), err)
		if err != nil {
			workerMetrics.RecordIngest(serviceName, domain.IngestResult{Kind: job.Request.Kind, Error: err.Error()})
			return err
		}
		workerMetrics.RecordIngest(serviceName, *result)
		logger.Info("index_job_completed",
			"job_id", job.ID,
			"kind", job.Request.Kind,
			"documents", result.Documents,
			"indexed", result.Indexed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
