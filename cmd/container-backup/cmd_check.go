package main

import (
	"context"

	"github.com/WaffleThief123/container-backup/internal/check"
)

func runCheck(ctx context.Context, configPath string) error {
	return check.Run(ctx, configPath)
}
