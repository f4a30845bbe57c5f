package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"asset-pipeline/internal/aivendor"
	"asset-pipeline/internal/blobstore"
	"asset-pipeline/internal/color"
	"asset-pipeline/internal/derivative"
	"asset-pipeline/internal/escalation"
	"asset-pipeline/internal/handlers"
	"asset-pipeline/internal/logging"
	"asset-pipeline/internal/middleware"
	"asset-pipeline/internal/pipeline"
	"asset-pipeline/internal/startup"
	"asset-pipeline/internal/store"
	"asset-pipeline/internal/workers"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type uptimeClock struct {
	started time.Time
}

func (c uptimeClock) Uptime() string {
	return time.Since(c.started).Round(time.Second).String()
}

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// libvips is optional; derivative generation falls back to pure Go
	if err := derivative.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using pure-Go image decoding: %v", err)
	}
	defer derivative.ShutdownVips()

	// Initialize database
	dbStart := time.Now()
	db, err := store.New(context.Background(), config.DatabasePath)
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

	// Blob storage
	blobs, err := blobstore.NewFilesystem(config.BlobDir)
	if err != nil {
		startup.LogFatal("Failed to initialize blob store: %v", err)
	}

	// AI vendor client
	var ai aivendor.Client
	if config.AIEnabled {
		ai = aivendor.NewHTTPClient(config.AIBaseURL, config.AIAPIKey)
	} else {
		ai = aivendor.NewNopClient()
	}

	// Pipeline coordinator and queue
	coordinator := pipeline.NewCoordinator(pipeline.Config{
		StageTimeout:     config.StageTimeout,
		RetryBackoffs:    config.RetryBackoffs,
		MaxDeferrals:     config.MaxDeferrals,
		MinArtifactBytes: config.MinArtifactBytes,
		AIEnabled:        config.AIEnabled,
		VideoPreviews:    config.VideoPreviewsEnabled,
		ScratchDir:       config.DataDir,
	}, db, blobs, derivative.NewGenerator(blobs), color.NewEngine(), color.NewExtractor(db), ai,
		escalation.NewPolicy(nil, nil))

	queue := pipeline.NewQueue(coordinator)
	workerCount := config.Workers
	if workerCount <= 0 {
		workerCount = workers.ForMixed(16)
	}
	queue.Start(context.Background(), workerCount)

	// HTTP surface
	h := handlers.New(db, blobs, queue, uptimeClock{started: startTime})
	router := mux.NewRouter()
	h.Routes(router)
	if config.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(
		middleware.Metrics(middleware.DefaultMetricsConfig())(router))

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, queue)

	startup.LogServerStarted(config.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, queue *pipeline.Queue) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Draining pipeline queue")
	if err := queue.Shutdown(ctx); err != nil {
		logging.Warn("Queue shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Pipeline queue drained")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
