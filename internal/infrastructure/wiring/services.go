// Package wiring assembles the application services from a configuration
// file.
package wiring

import (
	"fmt"
	"log/slog"
	"os"

	"treesync/internal/application"
	"treesync/internal/infrastructure/config"
	"treesync/internal/infrastructure/source"
	"treesync/internal/infrastructure/storage"
	"treesync/internal/infrastructure/target"
	"treesync/internal/infrastructure/upload"
)

// AppServices exposes the application layer wired to the configured
// sources, target and interchange store.
type AppServices struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *storage.InterchangeStore
	Target   *target.Client
	Fetch    *application.FetchService
	Sync     *application.SyncService
	Uploader *upload.Uploader // nil unless upload is enabled
}

// BuildAppServices loads the config file and constructs the services in
// dependency order.
func BuildAppServices(configPath string) (*AppServices, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sources := make([]application.Source, 0, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		src, err := source.FromConfig(sc)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	initialDelay, callTimeout, err := cfg.ExecutorDurations()
	if err != nil {
		return nil, err
	}

	targetClient := target.NewClient(cfg.Target.URL, cfg.Target.Token)
	fetchSvc := application.NewFetchService(sources, logger)
	executor := application.NewExecutor(targetClient, application.ExecutorConfig{
		Concurrency:   cfg.Executor.Concurrency,
		MaxAttempts:   cfg.Executor.MaxAttempts,
		InitialDelay:  initialDelay,
		CallTimeout:   callTimeout,
		RootTargetKey: cfg.Target.RootTaskID,
	}, logger)

	services := &AppServices{
		Config: cfg,
		Logger: logger,
		Store:  storage.NewInterchangeStore(cfg.Interchange),
		Target: targetClient,
		Fetch:  fetchSvc,
		Sync:   application.NewSyncService(fetchSvc, targetClient, executor, logger),
	}

	if cfg.Upload.Enabled {
		uploader, err := upload.New(cfg.Upload.Endpoint, cfg.Upload.AccessKey,
			cfg.Upload.SecretKey, cfg.Upload.Bucket, cfg.Upload.Prefix, cfg.Upload.UseSSL)
		if err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
		services.Uploader = uploader
	}
	return services, nil
}
