package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/docker"
	"github.com/WaffleThief123/container-backup/internal/dump"
	"github.com/WaffleThief123/container-backup/internal/lock"
	"github.com/WaffleThief123/container-backup/internal/logging"
	"github.com/WaffleThief123/container-backup/internal/notify"
	"github.com/WaffleThief123/container-backup/internal/pipeline"
)

func runBackup(ctx context.Context, configPath string) error {
	if ctx.Err() != nil {
		return fmt.Errorf("backup cancelled before start: %w", ctx.Err())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	release, err := lock.Acquire(filepath.Join(cfg.BaseDir, "backup.lock"))
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			slog.Warn("Failed to release run lock", "error", err)
		}
	}()

	logFile, err := logging.Setup(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFile.Close()

	services, err := config.LoadServices(cfg.ServicesDir)
	if err != nil {
		return fmt.Errorf("failed to load services: %w", err)
	}
	if len(services) == 0 {
		return fmt.Errorf("no service directories under %s", cfg.ServicesDir)
	}
	slog.Info("Backup started", "services", len(services))

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}

	encryptor, err := pipeline.NewAgeEncryptor(cfg.AgePublicKey)
	if err != nil {
		return err
	}

	client := &docker.CLI{}
	orch := &pipeline.Orchestrator{
		StagingDir: filepath.Join(cfg.BaseDir, "staging"),
		Retention:  retentionPolicy(cfg),
		Docker:     client,
		Dumper:     dump.NewCoordinator(client),
		Archiver:   &pipeline.ZstdArchiver{CompressionLevel: cfg.CompressionLevel},
		Encryptor:  encryptor,
		Backend:    backend,
		Hooks:      pipeline.ShellHooks{},
	}

	summary := orch.Run(ctx, services)

	summaryPath, err := summary.Write(cfg.BaseDir)
	if err != nil {
		slog.Error("Failed to persist run summary", "error", err)
	} else {
		slog.Info("Run summary written", "path", summaryPath)
	}

	// Webhook delivery problems never change the run outcome.
	if err := notify.New(cfg.WebhookURL).Send(ctx, summary); err != nil {
		slog.Warn("Webhook notification failed", "error", err)
	}

	slog.Info("Backup finished",
		"services", summary.Services,
		"errors", summary.Errors,
		"size_bytes", summary.SizeBytes,
		"deleted_archives", summary.Deleted,
		"duration", summary.Duration)

	if summary.Failed() {
		return fmt.Errorf("backup finished with %d errors", summary.Errors)
	}
	return nil
}
