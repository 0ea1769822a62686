package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                     int
	Password                 string
	DetectorBackend          string  // "dnn" (OpenCV DNN) or "ort" (ONNX Runtime)
	ModelPath                string  // frozen graph (.pb) for dnn, .onnx for ort
	ConfigPath               string  // pbtxt graph config, dnn backend only
	OrtLibraryPath           string  // onnxruntime shared library, ort backend only
	ConfidenceThreshold      float64
	ResizeScale              float64 // applied to uploads before detection
	GridSpacing              int     // pixel grid on annotated images, 0 disables
	ImageDirectory           string
	DatabasePath             string
	ImageBufferLimit         int
	ImageBufferFlushInterval int
	ThumbnailWidth           int
	ProcessingWorkers        int
	QueueSize                int
	MaxUploadBytes           int64
	MaxImageDirectorySize    int64 // GB
	LogDirectory             string
}

func Load() *Config {
	// Optional .env file, real environment wins.
	_ = godotenv.Load()

	return &Config{
		Port:                     getEnvAsInt("PORT", 8080),
		Password:                 getEnv("PASSWORD", "truckyard"),
		DetectorBackend:          getEnv("DETECTOR_BACKEND", "dnn"),
		ModelPath:                getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:               getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		OrtLibraryPath:           getEnv("ORT_LIBRARY_PATH", "/usr/lib/libonnxruntime.so"),
		ConfidenceThreshold:      getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.5),
		ResizeScale:              getEnvAsFloat("RESIZE_SCALE", 0.6),
		GridSpacing:              getEnvAsInt("GRID_SPACING", 0),
		ImageDirectory:           getEnv("IMAGE_DIR", filepath.Join(".", "images")),
		DatabasePath:             getEnv("DB_PATH", filepath.Join(".", "data", "measurements.db")),
		ImageBufferLimit:         getEnvAsInt("BUFFER_LIMIT", 7),
		ImageBufferFlushInterval: getEnvAsInt("FLUSH_INTERVAL", 30),
		ThumbnailWidth:           getEnvAsInt("THUMBNAIL_WIDTH", 320),
		ProcessingWorkers:        getEnvAsInt("PROCESSING_WORKERS", 3),
		QueueSize:                getEnvAsInt("QUEUE_SIZE", 100),
		MaxUploadBytes:           getEnvAsInt64("MAX_UPLOAD_MB", 20) << 20,
		MaxImageDirectorySize:    getEnvAsInt64("MAX_IMAGE_DIRECTORY_SIZE", 4),
		LogDirectory:             getEnv("LOG_DIR", filepath.Join(".", "logs")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
