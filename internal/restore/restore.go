// Package restore recovers a service from an encrypted archive: fetch,
// decrypt, extract, and feed any contained database dumps back into their
// containers.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/WaffleThief123/container-backup/internal/archive"
	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/crypto"
	"github.com/WaffleThief123/container-backup/internal/docker"
	"github.com/WaffleThief123/container-backup/internal/dump"
	"github.com/WaffleThief123/container-backup/internal/pipeline"
	"github.com/WaffleThief123/container-backup/internal/remote"
)

const EncryptedSuffix = archive.Suffix + ".age"

type Options struct {
	// Archive is the remote archive name, e.g. "blog-2026-08-30_153000.tar.zst.age".
	Archive string
	// DestDir receives the extracted service files.
	DestDir string
	// IdentityFile is the path to the age identity used for decryption.
	IdentityFile string
	// Service optionally supplies database definitions for dump resolution.
	Service *config.ServiceDefinition
}

type Runner struct {
	Backend remote.Backend
	Docker  docker.Client
	Decider DecisionProvider
}

// Restore fetches and decrypts the archive, extracts it into DestDir, and
// runs the dump resolver when the archive contains database dumps.
func (r *Runner) Restore(ctx context.Context, opts Options) (Result, error) {
	if !strings.HasSuffix(opts.Archive, EncryptedSuffix) {
		return Result{}, fmt.Errorf("archive %q does not end in %s", opts.Archive, EncryptedSuffix)
	}

	identity, err := crypto.LoadIdentity(opts.IdentityFile)
	if err != nil {
		return Result{}, err
	}

	workDir, err := os.MkdirTemp("", "container-backup-restore-*")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	encryptedPath := filepath.Join(workDir, opts.Archive)
	if err := r.Backend.Download(ctx, opts.Archive, encryptedPath); err != nil {
		return Result{}, fmt.Errorf("failed to fetch archive: %w", err)
	}

	tarPath := strings.TrimSuffix(encryptedPath, ".age")
	if err := crypto.Decrypt(encryptedPath, tarPath, identity); err != nil {
		return Result{}, fmt.Errorf("failed to decrypt archive: %w", err)
	}

	if err := archive.Extract(tarPath, opts.DestDir); err != nil {
		return Result{}, fmt.Errorf("failed to extract archive: %w", err)
	}
	slog.Info("Extracted archive", "archive", opts.Archive, "dest", opts.DestDir)

	dumpDir := filepath.Join(opts.DestDir, pipeline.DumpDirName)
	if _, err := os.Stat(dumpDir); os.IsNotExist(err) {
		slog.Info("Archive contains no database dumps")
		return Result{}, nil
	}

	resolver := &Resolver{
		Restorer: dump.NewCoordinator(r.Docker),
		Decider:  r.Decider,
	}
	return resolver.Run(ctx, dumpDir, opts.Service)
}
