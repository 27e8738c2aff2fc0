package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tagfiler/internal/catalog"
	"tagfiler/internal/handlers"
	"tagfiler/internal/logging"
	"tagfiler/internal/middleware"
	"tagfiler/internal/reconciler"
	"tagfiler/internal/startup"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize catalog database
	dbStart := time.Now()
	db, err := catalog.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Refresh connection pool metrics periodically
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		for range ticker.C {
			db.UpdateDBMetrics()
		}
	}()

	// Initialize reconciler
	rec := reconciler.New(db)
	rec.SetOnComplete(func(s reconciler.Summary) {
		if s.ShortCircuit {
			logging.Info("Scan finished: %d roots unchanged (short-circuit) in %v", s.Roots, s.Duration)
			return
		}
		logging.Info("Scan finished: %d files (%d upserted, %d skipped, %d removed) in %v",
			s.Total, s.Upserted, s.Skipped, s.Removed, s.Duration)
	})

	// Initialize handlers
	h := handlers.New(db, rec, config)

	// Setup router
	router := setupRouter(h)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(router)

	// Apply metrics middleware
	handler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start metrics server on its own port
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv)

	// Start server
	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Files
	api.HandleFunc("/files", h.ListFiles).Methods("GET")
	api.HandleFunc("/files/rename", h.RenameFile).Methods("POST")
	api.HandleFunc("/files/delete", h.DeleteFiles).Methods("POST")
	api.HandleFunc("/files/tag", h.TagFiles).Methods("POST")
	api.HandleFunc("/files/untag", h.UntagFile).Methods("POST")
	api.HandleFunc("/files/tags", h.GetFileTags).Methods("GET")

	// Tags
	api.HandleFunc("/tags", h.GetAllTags).Methods("GET")
	api.HandleFunc("/tags", h.CreateTag).Methods("POST")
	api.HandleFunc("/tags", h.DeleteTags).Methods("DELETE")
	api.HandleFunc("/tags/rename", h.RenameTag).Methods("POST")
	api.HandleFunc("/tags/move", h.MoveTag).Methods("POST")

	// Roots
	api.HandleFunc("/roots", h.GetRoots).Methods("GET")
	api.HandleFunc("/roots", h.AddRoot).Methods("POST")
	api.HandleFunc("/roots", h.RemoveRoot).Methods("DELETE")

	// Scanning
	api.HandleFunc("/scan", h.Scan).Methods("POST")
	api.HandleFunc("/scan/all", h.ScanAll).Methods("POST")
	api.HandleFunc("/scan/progress", h.ScanProgress).Methods("GET")

	// Settings
	api.HandleFunc("/settings/{key}", h.GetSetting).Methods("GET")
	api.HandleFunc("/settings/{key}", h.SetSetting).Methods("PUT")

	return r
}

func startMetricsServer(port string) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info("Metrics server listening on :%s", port)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logging.Info("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		logging.Info("HTTP server stopped")
	}
}
