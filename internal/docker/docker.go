// Package docker wraps the docker CLI. Stop/start operates on a whole
// compose stack so a stop-start backup never leaves half of a service down.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Client is the container-engine surface the pipeline and the dump
// coordinator depend on. Tests substitute a scripted implementation.
type Client interface {
	// IsRunning reports whether the named container is in a running state.
	IsRunning(ctx context.Context, container string) (bool, error)
	// Exec runs a shell command inside the container, writing stdout to out.
	Exec(ctx context.Context, container, command string, out io.Writer) error
	// ExecInput runs a shell command inside the container with in as stdin.
	ExecInput(ctx context.Context, container, command string, in io.Reader) error
	// StopStack stops the compose stack rooted at dir.
	StopStack(ctx context.Context, dir string) error
	// StartStack starts the compose stack rooted at dir.
	StartStack(ctx context.Context, dir string) error
}

// CLI shells out to the docker binary.
type CLI struct{}

var _ Client = (*CLI)(nil)

func (c *CLI) IsRunning(ctx context.Context, container string) (bool, error) {
	cmd := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}}", container)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A missing container is simply not running.
		if strings.Contains(stderr.String(), "No such object") {
			return false, nil
		}
		return false, fmt.Errorf("docker inspect %s failed: %w", container, err)
	}

	return strings.TrimSpace(stdout.String()) == "true", nil
}

func (c *CLI) Exec(ctx context.Context, container, command string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, "docker", "exec", container, "sh", "-c", command)
	cmd.Stdout = out
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker exec in %s failed: %w", container, err)
	}
	return nil
}

func (c *CLI) ExecInput(ctx context.Context, container, command string, in io.Reader) error {
	cmd := exec.CommandContext(ctx, "docker", "exec", "-i", container, "sh", "-c", command)
	cmd.Stdin = in
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker exec in %s failed: %w", container, err)
	}
	return nil
}

func (c *CLI) StopStack(ctx context.Context, dir string) error {
	return c.compose(ctx, dir, "stop")
}

func (c *CLI) StartStack(ctx context.Context, dir string) error {
	return c.compose(ctx, dir, "start")
}

func (c *CLI) compose(ctx context.Context, dir, action string) error {
	cmd := exec.CommandContext(ctx, "docker", "compose", action)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker compose %s in %s failed: %w", action, dir, err)
	}
	return nil
}

// Ping verifies the docker daemon is reachable.
func (c *CLI) Ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "version", "--format", "{{.Server.Version}}")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker daemon not reachable: %w", err)
	}
	return nil
}
