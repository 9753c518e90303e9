// Package check verifies that a host is ready to run backups: config,
// service definitions, docker daemon, and storage backend.
package check

import (
	"context"
	"fmt"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/docker"
	"github.com/WaffleThief123/container-backup/internal/remote"
)

func Run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	fmt.Println("config: OK")

	services, err := config.LoadServices(cfg.ServicesDir)
	if err != nil {
		return fmt.Errorf("services: %w", err)
	}
	if len(services) == 0 {
		return fmt.Errorf("services: no service directories under %s", cfg.ServicesDir)
	}

	client := &docker.CLI{}
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("docker: %w", err)
	}
	fmt.Println("docker: OK")

	for _, svc := range services {
		for _, def := range svc.Databases {
			running, err := client.IsRunning(ctx, def.Container)
			if err != nil {
				return fmt.Errorf("service %s container %s: %w", svc.Name, def.Container, err)
			}
			if !running {
				fmt.Printf("service %s container %s: not running (definition will be skipped)\n", svc.Name, def.Container)
				continue
			}
			fmt.Printf("service %s container %s: OK\n", svc.Name, def.Container)
		}
	}
	fmt.Printf("services: %d found\n", len(services))

	if cfg.S3.Enabled {
		backend, err := remote.NewS3(ctx, cfg.S3.Bucket, cfg.S3.Region,
			cfg.S3.Prefix, cfg.S3.Endpoint, cfg.S3RetryAttempts())
		if err != nil {
			return fmt.Errorf("S3 init: %w", err)
		}
		if err := backend.VerifyCredentials(ctx); err != nil {
			return fmt.Errorf("S3 credentials: %w", err)
		}
		fmt.Printf("S3 bucket %s: OK\n", cfg.S3.Bucket)
	}

	fmt.Println("all checks passed")
	return nil
}
