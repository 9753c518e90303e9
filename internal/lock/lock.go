// Package lock provides run-level mutual exclusion. The pipeline assumes at
// most one active run system-wide; concurrent runs would race on staging
// paths and retention decisions, so the backup command takes this lock first.
package lock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrLocked = errors.New("another backup run is active")

// Holder records who owns the lock file. A holder whose process is gone is
// a leftover from a crashed run and may be reclaimed.
type Holder struct {
	Pid       int       `yaml:"pid"`
	Hostname  string    `yaml:"hostname"`
	StartedAt time.Time `yaml:"started_at"`
}

func readHolder(path string) (*Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}
	var holder Holder
	if err := yaml.Unmarshal(data, &holder); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &holder, nil
}

func writeHolder(path string, holder *Holder) error {
	data, err := yaml.Marshal(holder)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write lock file: %w", err)
	}
	return os.Rename(tmp, path)
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return !errors.Is(err, syscall.ESRCH)
}

// Acquire takes the run lock, reclaiming it when the recorded holder is no
// longer alive. Returns a release function to be deferred by the caller.
func Acquire(lockPath string) (func() error, error) {
	existing, err := readHolder(lockPath)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if alive(existing.Pid) {
			return nil, fmt.Errorf("%w: pid %d on %s since %s",
				ErrLocked, existing.Pid, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}
		slog.Warn("Reclaiming stale run lock", "pid", existing.Pid, "started_at", existing.StartedAt)
	}

	hostname, _ := os.Hostname()
	holder := &Holder{
		Pid:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
	}
	if err := writeHolder(lockPath, holder); err != nil {
		return nil, err
	}

	release := func() error {
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return release, nil
}
