package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

const (
	StorageLocal = "local"
	StorageMinio = "minio"

	EmbeddingOpenAI = "openai"
	EmbeddingONNX   = "onnx"
)

type Config struct {
	Port        string        `yaml:"port"`
	DatabaseURL string        `yaml:"databaseURL"`
	LogLevel    string        `yaml:"logLevel"`
	CORSOrigins []string      `yaml:"corsOrigins"`
	Storage     StorageConfig `yaml:"storage"`
	AI          AIConfig      `yaml:"ai"`
	Redis       RedisConfig   `yaml:"redis"`
	Upload      UploadConfig  `yaml:"upload"`
	Search      SearchConfig  `yaml:"search"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver"` // "local" or "minio"
	Root         string `yaml:"root"`
	PublicPrefix string `yaml:"publicPrefix"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MinioPublicURL string `yaml:"minioPublicURL"`
}

type AIConfig struct {
	BaseURL           string        `yaml:"baseURL"`
	APIKey            string        `yaml:"apiKey"`
	VisionModel       string        `yaml:"visionModel"`
	VisionTimeout     time.Duration `yaml:"visionTimeout"`
	EmbeddingProvider string        `yaml:"embeddingProvider"` // "openai" or "onnx"
	EmbeddingModel    string        `yaml:"embeddingModel"`
	EmbeddingTimeout  time.Duration `yaml:"embeddingTimeout"`
	Dimensions        int           `yaml:"dimensions"`

	ONNXModelPath     string `yaml:"onnxModelPath"`
	ONNXTokenizerPath string `yaml:"onnxTokenizerPath"`
	ONNXLibraryPath   string `yaml:"onnxLibraryPath"`
	ONNXPooling       string `yaml:"onnxPooling"` // "cls" or "mean"
	ONNXSeqLen        int    `yaml:"onnxSeqLen"`
	ONNXTokenTypeIDs  bool   `yaml:"onnxTokenTypeIDs"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type UploadConfig struct {
	MaxUploadBytes int64 `yaml:"maxUploadBytes"`
	MaxBatchFiles  int   `yaml:"maxBatchFiles"`
	ThumbnailWidth int   `yaml:"thumbnailWidth"`
}

type SearchConfig struct {
	DefaultPageSize  int     `yaml:"defaultPageSize"`
	MaxPageSize      int     `yaml:"maxPageSize"`
	DefaultThreshold float64 `yaml:"defaultThreshold"`
}

// Load reads .env (if any), then the YAML file at path, then environment overrides.
// A missing file at the default path is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	cfg := Config{}
	explicit := path != ""
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PICQUEST_PORT")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.LogLevel, "PICQUEST_LOG_LEVEL")
	if v := os.Getenv("PICQUEST_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitCSV(v)
	}

	setString(&cfg.Storage.Driver, "PICQUEST_STORAGE_DRIVER")
	setString(&cfg.Storage.Root, "PICQUEST_STORAGE_ROOT")
	setString(&cfg.Storage.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.Storage.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Storage.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Storage.MinioBucket, "MINIO_BUCKET")
	setString(&cfg.Storage.MinioPublicURL, "MINIO_PUBLIC_URL")
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.Storage.MinioUseSSL = true
	}

	setString(&cfg.AI.BaseURL, "AI_BASE_URL")
	setString(&cfg.AI.APIKey, "AI_API_KEY")
	setString(&cfg.AI.VisionModel, "AI_VISION_MODEL")
	setString(&cfg.AI.EmbeddingModel, "AI_EMBEDDING_MODEL")
	setString(&cfg.AI.EmbeddingProvider, "AI_EMBEDDING_PROVIDER")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	if v := os.Getenv("PICQUEST_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Upload.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("PICQUEST_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.DefaultThreshold = f
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageLocal
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "./uploads"
	}
	if abs, err := filepath.Abs(cfg.Storage.Root); err == nil {
		cfg.Storage.Root = abs
	}
	if cfg.Storage.PublicPrefix == "" {
		cfg.Storage.PublicPrefix = "/uploads"
	}
	cfg.Storage.PublicPrefix = "/" + strings.Trim(cfg.Storage.PublicPrefix, "/")

	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.siliconflow.cn/v1"
	}
	if cfg.AI.VisionModel == "" {
		cfg.AI.VisionModel = "deepseek-ai/deepseek-vl2"
	}
	if cfg.AI.VisionTimeout <= 0 {
		cfg.AI.VisionTimeout = 120 * time.Second
	}
	if cfg.AI.EmbeddingProvider == "" {
		cfg.AI.EmbeddingProvider = EmbeddingOpenAI
	}
	if cfg.AI.EmbeddingModel == "" {
		cfg.AI.EmbeddingModel = "Pro/BAAI/bge-m3"
	}
	if cfg.AI.EmbeddingTimeout <= 0 {
		cfg.AI.EmbeddingTimeout = 60 * time.Second
	}
	if cfg.AI.Dimensions <= 0 {
		cfg.AI.Dimensions = 1024
	}
	if cfg.AI.ONNXModelPath == "" {
		cfg.AI.ONNXModelPath = "./model/model.onnx"
	}
	if cfg.AI.ONNXTokenizerPath == "" {
		cfg.AI.ONNXTokenizerPath = "./model/tokenizer.json"
	}
	if cfg.AI.ONNXLibraryPath == "" {
		cfg.AI.ONNXLibraryPath = "./model/libonnxruntime.so"
	}
	if cfg.AI.ONNXPooling == "" {
		cfg.AI.ONNXPooling = "cls"
	}
	if cfg.AI.ONNXSeqLen <= 0 {
		cfg.AI.ONNXSeqLen = 256
	}

	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}

	if cfg.Upload.MaxUploadBytes <= 0 {
		cfg.Upload.MaxUploadBytes = 10 << 20
	}
	if cfg.Upload.MaxBatchFiles <= 0 {
		cfg.Upload.MaxBatchFiles = 20
	}
	if cfg.Upload.ThumbnailWidth <= 0 {
		cfg.Upload.ThumbnailWidth = 500
	}

	if cfg.Search.DefaultPageSize <= 0 {
		cfg.Search.DefaultPageSize = 8
	}
	if cfg.Search.MaxPageSize <= 0 {
		cfg.Search.MaxPageSize = 100
	}
	if cfg.Search.DefaultThreshold == 0 {
		cfg.Search.DefaultThreshold = 0.36
	}
}

func validate(cfg Config) error {
	switch cfg.Storage.Driver {
	case StorageLocal:
	case StorageMinio:
		if cfg.Storage.MinioEndpoint == "" || cfg.Storage.MinioBucket == "" {
			return errors.New("config: storage.minioEndpoint and storage.minioBucket are required for the minio driver")
		}
		if cfg.Storage.MinioPublicURL == "" {
			return errors.New("config: storage.minioPublicURL is required for the minio driver")
		}
	default:
		return fmt.Errorf("config: unknown storage driver %q", cfg.Storage.Driver)
	}
	switch cfg.AI.EmbeddingProvider {
	case EmbeddingOpenAI, EmbeddingONNX:
	default:
		return fmt.Errorf("config: unknown embedding provider %q", cfg.AI.EmbeddingProvider)
	}
	if cfg.AI.ONNXPooling != "cls" && cfg.AI.ONNXPooling != "mean" {
		return fmt.Errorf("config: ai.onnxPooling must be cls or mean, got %q", cfg.AI.ONNXPooling)
	}
	if cfg.Search.DefaultPageSize > cfg.Search.MaxPageSize {
		return errors.New("config: search.defaultPageSize exceeds search.maxPageSize")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
