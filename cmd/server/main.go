package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/VietDucFCB/PureTone-Karaoke/internal/config"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/engine"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/jobs"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/logging"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/media"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/metrics"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/middleware"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/pipeline"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/separation"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/tracing"
	"github.com/VietDucFCB/PureTone-Karaoke/internal/transcription"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	// Initialize tracing
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer closer.Close()
	}

	if err := os.MkdirAll(cfg.Pipeline.TempDir, 0755); err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}

	// Assemble the pipeline
	runner := engine.ExecRunner{}
	ffmpeg := media.NewFFmpeg(cfg.Pipeline.FFmpegPath, cfg.Pipeline.FFprobePath)
	separator := separation.NewSeparator(cfg.Pipeline.SpleeterPath, runner, ffmpeg, log)
	whisper := transcription.NewWhisperEngine(cfg.Pipeline.WhisperPath, runner)
	transcriber := transcription.NewTranscriber(whisper, ffmpeg, cfg.Pipeline.LongAudioSeconds, log)
	pipe := pipeline.New(cfg.Pipeline, ffmpeg, separator, transcriber, log)
	manager := jobs.NewManager(pipe, log)

	api := &API{
		cfg:     cfg,
		manager: manager,
		ffmpeg:  ffmpeg,
		log:     log,
	}

	router := setupRouter(api, log)

	// Start metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		go func() {
			log.Infof("Starting metrics server on port %d", cfg.Metrics.Port)
			if err := metricsServer.Start(); err != nil {
				log.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	if metricsServer != nil {
		metricsServer.Shutdown(ctx)
	}

	log.Info("Server stopped")
}

func setupRouter(api *API, log *logging.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log))

	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/karaoke", api.createKaraoke)
		v1.GET("/jobs/:id", api.getJob)
		v1.POST("/jobs/:id/cancel", api.cancelJob)
		v1.GET("/jobs/:id/download", api.downloadResult)
		v1.DELETE("/jobs/:id", api.deleteJob)
	}

	return router
}
