package main

import (
	"context"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/remote"
	"github.com/WaffleThief123/container-backup/internal/retention"
)

// newBackend picks the storage backend from the config: S3 when enabled,
// otherwise a local backup directory.
func newBackend(ctx context.Context, cfg *config.Config) (remote.Backend, error) {
	if cfg.S3.Enabled {
		return remote.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region,
			cfg.S3.Prefix, cfg.S3.Endpoint, cfg.S3RetryAttempts())
	}
	return remote.NewLocal(cfg.BackupDir)
}

func retentionPolicy(cfg *config.Config) retention.Policy {
	return retention.Policy{
		Daily:   cfg.Retention.Daily,
		Weekly:  cfg.Retention.Weekly,
		Monthly: cfg.Retention.Monthly,
	}
}
