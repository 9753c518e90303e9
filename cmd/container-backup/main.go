package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "backup_config.yaml"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config",
		Usage: "path to configuration yaml file",
		Value: defaultConfigPath,
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "container-backup",
		Usage:   "Backup containerized service stacks",
		Version: "0.1.0",
		Commands: []*cli.Command{
			{
				Name:  "backup",
				Usage: "Run a full backup of every configured service",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runBackup(ctx, cmd.String("config"))
				},
			},
			{
				Name:  "restore",
				Usage: "Restore an archive into a directory",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "archive",
						Usage:    "Archive name as shown by the list command",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target",
						Usage:    "Directory to extract the archive into",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "private-key",
						Usage:    "Path to age private key file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "service",
						Usage: "Service name, to resolve database dumps from its config",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return restoreArchive(ctx, cmd.String("config"), cmd.String("archive"),
						cmd.String("target"), cmd.String("private-key"), cmd.String("service"))
				},
			},
			{
				Name:  "list",
				Usage: "List stored archives",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "service",
						Usage: "Only list archives of this service",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return listArchives(ctx, cmd.String("config"), cmd.String("service"))
				},
			},
			{
				Name:  "prune",
				Usage: "Apply the retention policy without running a backup",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "service",
						Usage: "Only prune archives of this service",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Show what would be deleted without deleting",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runPrune(ctx, cmd.String("config"), cmd.String("service"), cmd.Bool("dry-run"))
				},
			},
			{
				Name:  "check",
				Usage: "Verify config, docker access, and storage credentials",
				Flags: []cli.Flag{configFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCheck(ctx, cmd.String("config"))
				},
			},
			{
				Name:  "genkey",
				Usage: "Generate an age public and private key pair",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return generateKey(ctx)
				},
			},
			{
				Name:  "test-keys",
				Usage: "Test if public and private key pair match",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "private-key",
						Usage:    "Path to age private key file",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return testKeys(ctx, cmd.String("config"), cmd.String("private-key"))
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\ninterrupted")
			os.Exit(130)
		}
		slog.Error("CLI error", "error", err)
		os.Exit(1)
	}
}
