package main

import (
	"context"
	"fmt"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/retention"
)

func runPrune(ctx context.Context, configPath, service string, dryRun bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}

	services := []string{service}
	if service == "" {
		defs, err := config.LoadServices(cfg.ServicesDir)
		if err != nil {
			return fmt.Errorf("failed to load services: %w", err)
		}
		services = services[:0]
		for _, def := range defs {
			services = append(services, def.Name)
		}
	}

	policy := retentionPolicy(cfg)
	var failed bool
	for _, name := range services {
		if dryRun {
			files, err := backend.List(ctx, name+"-")
			if err != nil {
				return fmt.Errorf("failed to list archives for %s: %w", name, err)
			}
			decision := retention.Plan(name, files, policy)
			for _, file := range decision.Delete {
				fmt.Printf("%s: would delete %s\n", name, file)
			}
			fmt.Printf("%s: %d archives would be deleted\n", name, len(decision.Delete))
			continue
		}

		deleted, errs := retention.Prune(ctx, backend, name, policy)
		for _, err := range errs {
			fmt.Printf("%s: %v\n", name, err)
			failed = true
		}
		fmt.Printf("%s: %d archives deleted\n", name, deleted)
	}

	if failed {
		return fmt.Errorf("prune finished with errors")
	}
	return nil
}
