package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/docker"
	"github.com/WaffleThief123/container-backup/internal/restore"
)

func restoreArchive(ctx context.Context, configPath, archiveName, target, privateKeyPath, serviceName string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}

	// A service definition improves dump resolution but is optional: the
	// resolver falls back to filename inference without one.
	var svc *config.ServiceDefinition
	if serviceName != "" {
		svc, err = config.LoadService(filepath.Join(cfg.ServicesDir, serviceName))
		if err != nil {
			return fmt.Errorf("failed to load service %s: %w", serviceName, err)
		}
	}

	runner := &restore.Runner{
		Backend: backend,
		Docker:  &docker.CLI{},
		Decider: restore.NewTerminalPrompt(os.Stdin, os.Stdout),
	}

	result, err := runner.Restore(ctx, restore.Options{
		Archive:      archiveName,
		DestDir:      target,
		IdentityFile: privateKeyPath,
		Service:      svc,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nrestored: %d  skipped: %d  errored: %d\n", result.Restored, result.Skipped, result.Errored)
	if result.Failed() {
		return fmt.Errorf("restore finished with %d errors", result.Errored)
	}
	return nil
}
