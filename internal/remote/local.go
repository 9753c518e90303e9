package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Local stores archives in a flat directory on the same host.
type Local struct {
	root string
}

var _ Backend = (*Local)(nil)

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Upload(_ context.Context, localPath, remotePath, _ string) error {
	target := filepath.Join(l.root, remotePath)
	if err := copyFile(localPath, target); err != nil {
		return fmt.Errorf("failed to copy archive to backup directory: %w", err)
	}
	slog.Info("Stored archive", "path", target)
	return nil
}

func (l *Local) Download(_ context.Context, remotePath, localPath string) error {
	if err := copyFile(filepath.Join(l.root, remotePath), localPath); err != nil {
		return fmt.Errorf("failed to copy archive from backup directory: %w", err)
	}
	return nil
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if prefix != "" && !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (l *Local) Delete(_ context.Context, remotePath string) error {
	if err := os.Remove(filepath.Join(l.root, remotePath)); err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
