package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobarin/storyreel/internal/api"
	"github.com/bobarin/storyreel/internal/config"
	"github.com/bobarin/storyreel/internal/db"
	"github.com/bobarin/storyreel/internal/progress"
	"github.com/bobarin/storyreel/internal/queue"
	"github.com/bobarin/storyreel/internal/services"
	"github.com/bobarin/storyreel/internal/storage"
	"github.com/bobarin/storyreel/internal/worker"
)

func main() {
	log.Println("Starting StoryReel API...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("Connected to database")

	// Connect to Redis queue
	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	log.Println("Connected to Redis queue")

	// Initialize local artifact storage
	stor, err := storage.New(cfg.ArtifactsDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Artifacts directory: %s", cfg.ArtifactsDir)

	// Live progress channel
	hub := progress.NewHub()

	// Initialize services
	redditSvc := services.NewRedditService(cfg.RedditBaseURL, cfg.RedditUserAgent)
	openaiSvc := services.NewOpenAIService(cfg.OpenAIKey, cfg.ArtifactsDir)
	ffmpegSvc := services.NewFFmpegService(cfg.TempDir)

	pipeline := worker.NewPipeline(database, stor, openaiSvc, ffmpegSvc, hub, cfg.BackgroundsDir)

	// Create API handler
	handler := api.NewHandler(database, q, stor, redditSvc, openaiSvc, pipeline)
	router := api.NewRouter(handler, hub, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	// Background goroutines: queue worker and artifact retention sweeper
	bgCtx, bgCancel := context.WithCancel(context.Background())

	if cfg.WorkerEnabled {
		log.Println("Worker enabled, starting background processing...")
		w := worker.New(q, pipeline)
		go w.Start(bgCtx, cfg.MaxConcurrentJobs)
	}

	go stor.StartRetention(bgCtx, cfg.RetentionSweep, cfg.RetentionMaxAge)

	// Start server in goroutine
	go func() {
		log.Printf("API server listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop background work
	bgCancel()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
