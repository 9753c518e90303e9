package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"filippo.io/age"

	"github.com/WaffleThief123/container-backup/internal/archive"
	"github.com/WaffleThief123/container-backup/internal/crypto"
)

// ZstdArchiver binds the Archiver port to the tar+zstd archive package.
type ZstdArchiver struct {
	CompressionLevel int
}

func (a *ZstdArchiver) Create(srcDir, outPath string, excludes []string) (int64, error) {
	return archive.Create(srcDir, outPath, excludes, a.CompressionLevel)
}

// AgeEncryptor encrypts staged archives for the configured recipient.
type AgeEncryptor struct {
	recipient age.Recipient
}

func NewAgeEncryptor(publicKey string) (*AgeEncryptor, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse age public key: %w", err)
	}
	return &AgeEncryptor{recipient: recipient}, nil
}

func (e *AgeEncryptor) Encrypt(archivePath string) (string, string, error) {
	return crypto.EncryptArchive(archivePath, e.recipient)
}

// ShellHooks runs pre/post hooks through the shell in the service directory.
type ShellHooks struct{}

func (ShellHooks) Run(ctx context.Context, dir, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook %q failed: %w", command, err)
	}
	return nil
}
