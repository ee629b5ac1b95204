package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Progi pewności z założeń projektu; zmienne środowiskowe mogą je tylko podnieść.
const (
	MinSSDThreshold  = 0.6
	MinDETRThreshold = 0.9
)

type Config struct {
	Port           int
	Password       string
	DatabasePath   string
	MediaDirectory string // Korzeń dla images/ i processed_images/
	LogDirectory   string
	MaxUploadSize  int64 // W bajtach

	SSDModelPath   string
	SSDConfigPath  string
	SSDThreshold   float64
	DETRModelPath  string
	DETRLabelsPath string // Opcjonalny config.json z id2label
	DETRThreshold  float64
	ONNXRuntimeLib string

	CacheModels bool // false = ładuj model przy każdym wywołaniu
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first; variables already set are not overwritten.
func Load() *Config {
	_ = godotenv.Load()

	modelDir := filepath.Join(".", "models")
	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		Password:       getEnv("PASSWORD", "detection"),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "detection.db")),
		MediaDirectory: getEnv("MEDIA_DIR", filepath.Join(".", "media")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadSize:  getEnvAsInt64("MAX_UPLOAD_MB", 20) << 20,
		SSDModelPath:   getEnv("SSD_MODEL_PATH", filepath.Join(modelDir, "mobilenet_iter_73000.caffemodel")),
		SSDConfigPath:  getEnv("SSD_CONFIG_PATH", filepath.Join(modelDir, "mobilenet_ssd_deploy.prototxt")),
		SSDThreshold:   max(getEnvAsFloat("SSD_THRESHOLD", MinSSDThreshold), MinSSDThreshold),
		DETRModelPath:  getEnv("DETR_MODEL_PATH", filepath.Join(modelDir, "detr-resnet-50.onnx")),
		DETRLabelsPath: getEnv("DETR_LABELS_PATH", ""),
		DETRThreshold:  max(getEnvAsFloat("DETR_THRESHOLD", MinDETRThreshold), MinDETRThreshold),
		ONNXRuntimeLib: getEnv("ONNXRUNTIME_LIB", filepath.Join(modelDir, "libonnxruntime.so")),
		CacheModels:    getEnvAsBool("MODEL_CACHE", true),
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
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
