package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultUploadsSubDir    = "uploads"
	DefaultThumbnailsSubDir = "thumbnails"
	DefaultArchivesSubDir   = "archives"
)

const (
	defaultDetectionServerURL = "http://localhost:11434"
	defaultDetectionModel     = "gemma3:12b"
	defaultDetectionTimeout   = 120

	defaultMaxConcurrentImages = 4
	defaultArchiveQueueSize    = 20
	defaultNumArchiveWorkers   = 1
	defaultMaxUploadSizeMB     = 200
)

type Config struct {
	// server
	ListenAddr string

	// database path
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // primary root for stored assets (uploads, thumbs, zips)
	UploadsPath      string // full-calculated path for stored originals
	ThumbnailsPath   string // full-calculated path for thumbnails
	ArchivesPath     string // full-calculated path for archives

	// detection backend
	DetectionServerURL       string
	DetectionModel           string
	DetectionTimeoutSeconds  int

	// worker settings
	MaxConcurrentImages int
	ArchiveQueueSize    int
	NumArchiveWorkers   int

	// request limits
	MaxUploadSizeMB int
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	listenAddr := getEnvOrDefault("LISTEN_ADDR", ":8080")

	dbPath := getEnvOrDefault("DATABASE_PATH", "helmetcheck.db")

	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	uploadsSubDir := getEnvOrDefault("UPLOADS_SUBDIR", DefaultUploadsSubDir)
	absUploadsPath := filepath.Join(absMediaStorage, uploadsSubDir)

	thumbSubDir := getEnvOrDefault("THUMBNAILS_SUBDIR", DefaultThumbnailsSubDir)
	absThumbnailsPath := filepath.Join(absMediaStorage, thumbSubDir)

	archiveSubDir := getEnvOrDefault("ARCHIVES_SUBDIR", DefaultArchivesSubDir)
	absArchivesPath := filepath.Join(absMediaStorage, archiveSubDir)

	detectionURL := getEnvOrDefault("DETECTION_SERVER_URL", defaultDetectionServerURL)
	detectionModel := getEnvOrDefault("DETECTION_MODEL", defaultDetectionModel)
	detectionTimeout := getEnvIntOrDefault("DETECTION_TIMEOUT_SECONDS", defaultDetectionTimeout)

	maxConcurrent := getEnvIntOrDefault("MAX_CONCURRENT_IMAGES", defaultMaxConcurrentImages)
	archiveQueueSize := getEnvIntOrDefault("ARCHIVE_QUEUE_SIZE", defaultArchiveQueueSize)
	numArchiveWorkers := getEnvIntOrDefault("NUM_ARCHIVE_WORKERS", defaultNumArchiveWorkers)

	maxUploadSizeMB := getEnvIntOrDefault("MAX_UPLOAD_SIZE_MB", defaultMaxUploadSizeMB)

	cfg := Config{
		ListenAddr:              listenAddr,
		DatabasePath:            dbPath,
		MediaStoragePath:        absMediaStorage,
		UploadsPath:             absUploadsPath,
		ThumbnailsPath:          absThumbnailsPath,
		ArchivesPath:            absArchivesPath,
		DetectionServerURL:      detectionURL,
		DetectionModel:          detectionModel,
		DetectionTimeoutSeconds: detectionTimeout,
		MaxConcurrentImages:     maxConcurrent,
		ArchiveQueueSize:        archiveQueueSize,
		NumArchiveWorkers:       numArchiveWorkers,
		MaxUploadSizeMB:         maxUploadSizeMB,
	}

	return cfg, nil
}
