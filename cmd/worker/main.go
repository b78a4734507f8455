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

	"github.com/docintel/docintel/internal/bootstrap"
	"github.com/docintel/docintel/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		slog.Error("bootstrap", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := startMetricsServer(app, cfg.WorkerMetricsPort)
	defer shutdownMetricsServer(app, metricsServer)

	// Retries scheduled by a previous process live only in its timers;
	// re-enqueue everything unfinished before taking new work.
	if err := app.SummaryUC.ResumePending(ctx); err != nil {
		app.Logger.Error("resume_pending_summaries", "error", err)
	}

	errCh := make(chan error, 2)

	go func() {
		app.Logger.Info("worker_subscribed", "subject", cfg.NATSIngestSubject)
		errCh <- app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
			if doc, err := app.Repo.GetByID(handlerCtx, documentID); err == nil {
				app.WorkerMetrics.ObserveQueueLag(app.Service, time.Since(doc.CreatedAt))
			}

			indexCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()

			start := time.Now()
			app.WorkerMetrics.StartIndexing()
			chunkCount, err := app.IndexUC.Add(indexCtx, documentID)
			app.WorkerMetrics.FinishIndexing(app.Service, time.Since(start), chunkCount, err)
			if err != nil {
				return err
			}

			return app.SummaryUC.GenerateByID(indexCtx, documentID)
		})
	}()

	go func() {
		app.Logger.Info("worker_subscribed", "subject", cfg.NATSSummarySubject)
		errCh <- app.Queue.SubscribeSummaryRequested(ctx, func(handlerCtx context.Context, documentID string) error {
			summaryCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()
			return app.SummaryUC.GenerateByID(summaryCtx, documentID)
		})
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			app.Logger.Error("worker_subscription", "error", err)
			os.Exit(1)
		}
	}
}

func startMetricsServer(app *bootstrap.App, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.WorkerMetrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		app.Logger.Info("worker_metrics_listening", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("worker_metrics_server", "error", err)
		}
	}()
	return server
}

func shutdownMetricsServer(app *bootstrap.App, server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("worker_metrics_shutdown", "error", err)
	}
}
