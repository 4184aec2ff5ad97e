// Package bootstrap provides dependency initialization for the clipthumb binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/clipthumb/internal/config"
	"github.com/maauso/clipthumb/internal/db"
	"github.com/maauso/clipthumb/internal/job"
	"github.com/maauso/clipthumb/internal/media"
	"github.com/maauso/clipthumb/internal/preview"
	"github.com/maauso/clipthumb/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Generator      *preview.Generator
	PreviewService *job.PreviewService

	database *db.DB
}

// Close releases resources held by the dependencies.
func (d *Dependencies) Close() error {
	if d.database == nil {
		return nil
	}
	return d.database.Close()
}

// NewGenerator builds the ffmpeg-backed preview generator described by cfg.
func NewGenerator(cfg *config.Config, logger *slog.Logger) (*preview.Generator, error) {
	engine, err := media.NewFFmpegEngine(cfg.FFmpegPath, cfg.FFprobePath, cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("create media engine: %w", err)
	}
	return preview.NewGenerator(engine,
		preview.WithCacheDir(cfg.CacheDir),
		preview.WithLogger(logger),
	), nil
}

// NewDependencies creates and initializes all dependencies for the server.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	gen, err := NewGenerator(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Generator: gen}

	repo, err := deps.initRepository(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svcOpts := []job.ServiceOption{job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs)}

	publisher, err := initPublisher(ctx, cfg, logger)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	if publisher != nil {
		svcOpts = append(svcOpts, job.WithPublisher(publisher))
	}

	deps.PreviewService = job.NewPreviewService(repo, gen, logger, svcOpts...)
	return deps, nil
}

// initRepository picks SQLite when DB_PATH is set and memory otherwise.
func (d *Dependencies) initRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (job.Repository, error) {
	if cfg.DBPath == "" {
		logger.Info("job store configured", slog.String("backend", "memory"))
		return job.NewMemoryRepository(), nil
	}

	database, err := db.New(ctx, cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open job database: %w", err)
	}
	d.database = database

	logger.Info("job store configured",
		slog.String("backend", "sqlite"),
		slog.String("path", cfg.DBPath),
	)
	return job.NewSQLiteRepository(database.Conn()), nil
}

// initPublisher returns nil when S3 is not configured.
func initPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Publisher, error) {
	if !cfg.S3Enabled() {
		return nil, nil
	}

	publisher, err := storage.NewS3Publisher(ctx, cfg.S3Config())
	if err != nil {
		return nil, fmt.Errorf("create S3 publisher: %w", err)
	}
	logger.Info("S3 publishing configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return publisher, nil
}
