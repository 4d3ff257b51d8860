package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/hardsite/helmetcheckbackend/config"
	"github.com/hardsite/helmetcheckbackend/database"
	"github.com/hardsite/helmetcheckbackend/detection"
	"github.com/hardsite/helmetcheckbackend/handlers"
	"github.com/hardsite/helmetcheckbackend/media"
	"github.com/hardsite/helmetcheckbackend/pipeline"
	"github.com/hardsite/helmetcheckbackend/realtime"
	"github.com/hardsite/helmetcheckbackend/repository"
	"github.com/hardsite/helmetcheckbackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.UploadsPath, cfg.ThumbnailsPath, cfg.ArchivesPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}

	mediaSubDirs := map[media.AssetType]string{
		media.AssetTypeUpload:    filepath.Base(cfg.UploadsPath),
		media.AssetTypeThumbnail: filepath.Base(cfg.ThumbnailsPath),
		media.AssetTypeArchive:   filepath.Base(cfg.ArchivesPath),
	}
	mediaStore, err := media.NewLocalStorage(cfg.MediaStoragePath, mediaSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize media store: %v", err)
	}
	mediaWriter := media.NewWriter(mediaStore)

	detector, err := detection.NewClient(cfg.DetectionServerURL, cfg.DetectionModel, time.Duration(cfg.DetectionTimeoutSeconds)*time.Second)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize detection client: %v", err)
	}
	log.Printf("Detection backend: %s (model %s, timeout %ds)", cfg.DetectionServerURL, cfg.DetectionModel, cfg.DetectionTimeoutSeconds)

	projectRepo := repository.NewProjectRepository(db)
	imageRepo := repository.NewImageRepository(db)
	personRepo := repository.NewPersonRepository(db)

	hub := realtime.NewHub()
	go hub.Run()

	archiveProc := workers.NewArchiveProcessor(projectRepo, imageRepo, cfg.UploadsPath, cfg.ArchivesPath, cfg.ArchiveQueueSize, cfg.NumArchiveWorkers)
	defer archiveProc.Stop()

	orchestrator := &pipeline.Orchestrator{
		Projects:            projectRepo,
		Images:              imageRepo,
		People:              personRepo,
		Writer:              mediaWriter,
		Detector:            detector,
		Hub:                 hub,
		MaxConcurrentImages: cfg.MaxConcurrentImages,
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Storing media in: %s", cfg.MediaStoragePath)
	log.Printf("Max concurrent images per batch: %d", cfg.MaxConcurrentImages)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute)) // uploads can take a while behind detection
	r.Use(corsHandler.Handler)

	projectHandler := &handlers.ProjectHandler{
		DB:           db,
		Cfg:          cfg,
		Projects:     projectRepo,
		Writer:       mediaWriter,
		Store:        mediaStore,
		Orchestrator: orchestrator,
		ArchiveProc:  archiveProc,
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.UploadProject)
			r.Get("/", projectHandler.ListProjects)
			r.Route("/{project_id}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Delete("/", projectHandler.DeleteProject)
				r.Post("/archive", projectHandler.RequestProjectArchive)
				r.Get("/archive", projectHandler.DownloadProjectArchive)
			})
		})

		uploadsSubDir := filepath.Base(cfg.UploadsPath)
		r.Get(fmt.Sprintf("/%s/*", uploadsSubDir), handlers.AssetServer(cfg.MediaStoragePath, uploadsSubDir))
		log.Printf("Registered upload server at /%s/*", uploadsSubDir)

		thumbnailSubDir := filepath.Base(cfg.ThumbnailsPath)
		r.Get(fmt.Sprintf("/%s/*", thumbnailSubDir), handlers.AssetServer(cfg.MediaStoragePath, thumbnailSubDir))
		log.Printf("Registered thumbnail server at /%s/*", thumbnailSubDir)

		archiveSubDir := filepath.Base(cfg.ArchivesPath)
		r.Get(fmt.Sprintf("/%s/*", archiveSubDir), handlers.AssetServer(cfg.MediaStoragePath, archiveSubDir))
		log.Printf("Registered archive server at /%s/*", archiveSubDir)
	})

	r.Get("/ws", hub.ServeWS)

	log.Printf("Server listening on %s", cfg.ListenAddr)
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Minute, // large multipart bodies
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
