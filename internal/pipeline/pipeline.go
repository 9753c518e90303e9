// Package pipeline drives the per-service backup stage sequence and
// aggregates the run summary.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/docker"
	"github.com/WaffleThief123/container-backup/internal/remote"
	"github.com/WaffleThief123/container-backup/internal/retention"
)

type Stage string

const (
	StagePending      Stage = "pending"
	StageConfiguring  Stage = "configuring"
	StagePreHook      Stage = "pre-hook"
	StageStopping     Stage = "stopping"
	StageDumping      Stage = "dumping"
	StageArchiving    Stage = "archiving"
	StageRestarting   Stage = "restarting"
	StagePostHook     Stage = "post-hook"
	StageEncrypting   Stage = "encrypting"
	StageTransferring Stage = "transferring"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// DumpDirName is created inside the service directory so dump output is
// captured by the filesystem archive, and removed again during cleanup.
const DumpDirName = ".db_dumps"

type StageResult struct {
	Stage Stage  `yaml:"stage"`
	Err   string `yaml:"error,omitempty"`
}

// Run tracks one service through one pipeline invocation. It is owned by
// the orchestrator and discarded at run end; only the summary survives.
type Run struct {
	Service   string
	Stage     Stage
	History   []StageResult
	Errors    []string
	Fatal     bool
	Archive   string
	SizeBytes int64
	Duration  time.Duration

	stopped        bool
	transferFailed bool
}

func (r *Run) enter(stage Stage) {
	r.Stage = stage
	r.History = append(r.History, StageResult{Stage: stage})
}

// recordError captures a stage error. Fatal errors abort the service's
// remaining stages; non-fatal ones are counted and the pipeline continues.
func (r *Run) recordError(err error, fatal bool) {
	msg := err.Error()
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", r.Stage, msg))
	if len(r.History) > 0 {
		r.History[len(r.History)-1].Err = msg
	}
	if fatal {
		r.Fatal = true
	}
}

// Collaborators. Concrete implementations live in adapters.go; tests
// substitute scripted ones.
type (
	Dumper interface {
		DumpAll(ctx context.Context, svc *config.ServiceDefinition, outDir string) []error
	}
	Archiver interface {
		Create(srcDir, outPath string, excludes []string) (int64, error)
	}
	Encryptor interface {
		Encrypt(archivePath string) (encryptedPath, checksum string, err error)
	}
	HookRunner interface {
		Run(ctx context.Context, dir, command string) error
	}
)

type Orchestrator struct {
	StagingDir string
	Retention  retention.Policy
	Docker     docker.Client
	Dumper     Dumper
	Archiver   Archiver
	Encryptor  Encryptor
	Backend    remote.Backend
	Hooks      HookRunner
	Now        func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ArchiveName builds the staged archive filename for one service run. The
// time-of-day part allows several archives per calendar date; retention
// matches on the date alone.
func ArchiveName(service string, t time.Time) string {
	return fmt.Sprintf("%s-%s.tar.zst", service, t.Format("2006-01-02_150405"))
}

// Run processes every service exactly once, then applies retention per
// service, and returns the aggregated summary. The summary's Failed flag
// is the process-level outcome.
func (o *Orchestrator) Run(ctx context.Context, services []*config.ServiceDefinition) *Summary {
	summary := NewSummary(o.now())

	for _, svc := range services {
		slog.Info("Backing up service", "service", svc.Name, "mode", svc.Mode)
		run := o.backupService(ctx, svc)
		summary.Record(run)
		if run.Fatal {
			slog.Error("Service backup failed", "service", svc.Name, "stage", run.Stage)
		} else {
			slog.Info("Service backup finished", "service", svc.Name, "archive", run.Archive, "errors", len(run.Errors))
		}
	}

	// Retention runs after all services completed. Failures here are
	// logged and counted but never block the summary.
	for _, svc := range services {
		deleted, errs := retention.Prune(ctx, o.Backend, svc.Name, o.Retention)
		summary.RecordPrune(svc.Name, deleted, errs)
	}

	summary.Finish(o.now())
	return summary
}

func (o *Orchestrator) backupService(ctx context.Context, svc *config.ServiceDefinition) *Run {
	run := &Run{Service: svc.Name, Stage: StagePending}
	start := o.now()
	defer func() {
		run.Duration = o.now().Sub(start)
	}()

	run.enter(StageConfiguring)
	stagingDir := filepath.Join(o.StagingDir, svc.Name)
	dumpDir := filepath.Join(svc.Dir, DumpDirName)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		run.recordError(fmt.Errorf("failed to create staging directory: %w", err), true)
		run.Stage = StageFailed
		return run
	}
	if err := os.MkdirAll(dumpDir, 0o755); err != nil {
		run.recordError(fmt.Errorf("failed to create dump directory: %w", err), true)
		run.Stage = StageFailed
		return run
	}
	// Staging artifacts go away regardless of outcome. The one exception
	// is an encrypted archive whose transfer failed: that is kept so the
	// operator can move it by hand.
	defer func() {
		if err := os.RemoveAll(dumpDir); err != nil {
			slog.Warn("Failed to clean up dump directory", "service", svc.Name, "error", err)
		}
		if run.transferFailed {
			slog.Warn("Keeping encrypted archive after transfer failure", "service", svc.Name, "dir", stagingDir)
			return
		}
		if err := os.RemoveAll(stagingDir); err != nil {
			slog.Warn("Failed to clean up staging directory", "service", svc.Name, "error", err)
		}
	}()

	if svc.PreHook != "" {
		run.enter(StagePreHook)
		if err := o.Hooks.Run(ctx, svc.Dir, svc.PreHook); err != nil {
			run.recordError(fmt.Errorf("pre-backup hook failed: %w", err), false)
		}
	}

	if svc.Mode == config.ModeStopStart {
		run.enter(StageStopping)
		if err := o.Docker.StopStack(ctx, svc.Dir); err != nil {
			// Containers are still up; carry on as a hot backup.
			run.recordError(fmt.Errorf("failed to stop containers: %w", err), false)
		} else {
			run.stopped = true
		}
	}

	run.enter(StageDumping)
	for _, err := range o.Dumper.DumpAll(ctx, svc, dumpDir) {
		run.recordError(err, false)
	}

	run.enter(StageArchiving)
	archiveName := ArchiveName(svc.Name, o.now())
	archivePath := filepath.Join(stagingDir, archiveName)
	size, archiveErr := o.Archiver.Create(svc.Dir, archivePath, svc.Exclude)
	if archiveErr != nil {
		run.recordError(fmt.Errorf("failed to create archive: %w", archiveErr), true)
	} else {
		run.SizeBytes = size
	}

	// Containers stopped by this run are restarted no matter what came
	// before: a service must never be left down because a backup failed.
	if run.stopped {
		run.enter(StageRestarting)
		if err := o.Docker.StartStack(ctx, svc.Dir); err != nil {
			run.recordError(fmt.Errorf("failed to restart containers: %w", err), false)
		}
	}

	if archiveErr != nil {
		run.Stage = StageFailed
		return run
	}

	if svc.PostHook != "" {
		run.enter(StagePostHook)
		if err := o.Hooks.Run(ctx, svc.Dir, svc.PostHook); err != nil {
			run.recordError(fmt.Errorf("post-backup hook failed: %w", err), false)
		}
	}

	run.enter(StageEncrypting)
	encryptedPath, checksum, err := o.Encryptor.Encrypt(archivePath)
	if err != nil {
		run.recordError(err, true)
		run.Stage = StageFailed
		return run
	}
	run.Archive = filepath.Base(encryptedPath)

	run.enter(StageTransferring)
	if err := o.Backend.Upload(ctx, encryptedPath, run.Archive, checksum); err != nil {
		run.recordError(fmt.Errorf("failed to transfer archive: %w", err), true)
		run.transferFailed = true
		run.Stage = StageFailed
		return run
	}

	run.Stage = StageDone
	return run
}
