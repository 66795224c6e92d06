package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"learning-backend/internal/api"
	"learning-backend/internal/config"
	"learning-backend/internal/database"
	"learning-backend/internal/datasets"
	"learning-backend/internal/learning"
	"learning-backend/internal/scheduling"
	"learning-backend/internal/storage"
)

func createObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.S3EndpointURL != "" {
		return storage.NewS3ObjectStore(storage.S3Config{
			S3EndpointURL:     cfg.S3EndpointURL,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			S3Region:          cfg.S3Region,
		})
	}
	return storage.NewLocalObjectStore(filepath.Join(cfg.Root, "storage"))
}

func createServer(engine *scheduling.Engine, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"}, // TODO: make this an env var
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	handler := api.NewLearningService(engine)

	r.Route("/api/v1", func(r chi.Router) {
		handler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "model_bucket", cfg.ModelBucket)

	db, err := database.Open(cfg.DatabaseURL, cfg.Root)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	store, err := createObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to create object store: %v", err)
	}

	sourcePolicy, err := learning.ParseSourcePolicy(cfg.TransferSourcePolicy)
	if err != nil {
		log.Fatalf("invalid transfer source policy: %v", err)
	}

	registry := datasets.DefaultRegistry()
	loader := datasets.NewSyntheticLoader(registry, cfg.SampleCap)

	engine, err := scheduling.NewEngine(db, store, registry, loader, scheduling.EngineOptions{
		Bucket:               cfg.ModelBucket,
		TransferSourcePolicy: sourcePolicy,
		TargetAccuracy:       cfg.TargetAccuracy,
	})
	if err != nil {
		log.Fatalf("failed to create engine: %v", err)
	}

	server := createServer(engine, cfg.Port)

	slog.Info("starting worker")
	engine.Start(context.Background())

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		engine.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
