package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"picquest/internal/config"
	"picquest/internal/services"
	"picquest/internal/storage"
	"picquest/internal/store"
)

// app holds the wired dependencies shared by serve and import.
type app struct {
	store    store.PictureStore
	files    storage.Store
	localDir string // set when pictures are stored on the local filesystem
	svc      *services.PictureService
	closers  []func()
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.AI.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("connect to db: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.store = pg
	} else {
		slog.Warn("DATABASE_URL not set, keeping pictures in memory")
		a.store = store.NewMemoryStore()
	}

	switch cfg.Storage.Driver {
	case config.StorageMinio:
		m, err := storage.NewMinioStore(cfg.Storage.MinioEndpoint, cfg.Storage.MinioAccessKey,
			cfg.Storage.MinioSecretKey, cfg.Storage.MinioBucket, cfg.Storage.MinioPublicURL, cfg.Storage.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("minio storage: %w", err)
		}
		a.files = m
	default:
		local, err := storage.NewLocalStorage(cfg.Storage.Root, cfg.Storage.PublicPrefix)
		if err != nil {
			return nil, fmt.Errorf("local storage: %w", err)
		}
		a.files = local
		a.localDir = local.Root()
	}

	embedder, err := buildEmbedder(cfg, a)
	if err != nil {
		return nil, err
	}
	vision := services.NewOpenAIVision(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.VisionModel, cfg.AI.VisionTimeout)

	a.svc = services.NewPictureService(a.store, a.files, vision, embedder, services.Options{
		ThumbnailWidth:   cfg.Upload.ThumbnailWidth,
		MaxUploadBytes:   cfg.Upload.MaxUploadBytes,
		MaxBatchFiles:    cfg.Upload.MaxBatchFiles,
		Dimensions:       cfg.AI.Dimensions,
		DefaultPageSize:  cfg.Search.DefaultPageSize,
		MaxPageSize:      cfg.Search.MaxPageSize,
		DefaultThreshold: cfg.Search.DefaultThreshold,
	})
	ok = true
	return a, nil
}

func buildEmbedder(cfg config.Config, a *app) (services.Embedder, error) {
	var (
		embedder services.Embedder
		model    string
	)
	switch cfg.AI.EmbeddingProvider {
	case config.EmbeddingONNX:
		onnx, err := services.NewONNXEmbedder(services.ONNXOptions{
			ModelPath:     cfg.AI.ONNXModelPath,
			TokenizerPath: cfg.AI.ONNXTokenizerPath,
			LibraryPath:   cfg.AI.ONNXLibraryPath,
			Dimensions:    cfg.AI.Dimensions,
			SeqLen:        cfg.AI.ONNXSeqLen,
			Pooling:       cfg.AI.ONNXPooling,
			TokenTypeIDs:  cfg.AI.ONNXTokenTypeIDs,
		})
		if err != nil {
			return nil, fmt.Errorf("onnx embedder: %w", err)
		}
		a.closers = append(a.closers, onnx.Close)
		embedder, model = onnx, onnx.Model()
	default:
		openai := services.NewOpenAIEmbedder(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.EmbeddingModel, cfg.AI.EmbeddingTimeout)
		embedder, model = openai, openai.Model()
	}

	if cfg.Redis.Addr == "" {
		return embedder, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	cache := services.NewRedisEmbeddingCache(client, "picquest:embedding:", cfg.Redis.TTL)
	slog.Info("embedding cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	return services.NewCachedEmbedder(embedder, cache, model), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
