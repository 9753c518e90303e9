package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/restore"
)

func listArchives(ctx context.Context, configPath, service string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}

	archives, err := restore.ListArchives(ctx, backend, service)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(archives)
}
