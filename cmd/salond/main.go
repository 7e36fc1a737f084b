package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safar/salon-engine/internal/config"
	"github.com/safar/salon-engine/internal/database"
	"github.com/safar/salon-engine/internal/engine"
	"github.com/safar/salon-engine/internal/logging"
	"github.com/safar/salon-engine/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}

	db, dialect, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	logger.WithField("dialect", dialect.String()).Info("connected to database")

	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		n, err := database.Migrate(ctx, db, dialect, database.Up)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("run migrations")
		}
		logger.WithField("files", n).Info("migrations applied")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// The business layer embeds the engine; this process only hosts it
	// for health and metrics.
	eng := engine.New(store.New(db, dialect),
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(registry)),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", handleHealth(eng, logger))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithField("port", cfg.Server.Port).Info("server starting")
	if err := serve(ctx, server, logger, 10*time.Second); err != nil {
		logger.WithError(err).Fatal("server error")
	}
	logger.Info("server stopped")
}

// serve runs server until ctx is done, then drains open requests within
// timeout.
func serve(ctx context.Context, server *http.Server, logger logrus.FieldLogger, timeout time.Duration) error {
	errs := make(chan error, 1)
	go func() { errs <- server.ListenAndServe() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func handleHealth(eng *engine.Engine, logger logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := eng.Ping(ctx); err != nil {
			logger.WithError(err).Warn("health check failed")
			respondError(w, statusFor(err), "store unavailable")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
