package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type ServiceStatus struct {
	Service   string        `yaml:"service"`
	Stage     Stage         `yaml:"stage"`
	Archive   string        `yaml:"archive,omitempty"`
	SizeBytes int64         `yaml:"size_bytes"`
	Duration  string        `yaml:"duration"`
	History   []StageResult `yaml:"history"`
	Errors    []string      `yaml:"errors,omitempty"`
}

// Summary aggregates every service run of one invocation. It is the only
// artifact that outlives the run: it is persisted to the run directory and
// handed to the notifier.
type Summary struct {
	StartedAt  time.Time       `yaml:"started_at"`
	FinishedAt time.Time       `yaml:"finished_at"`
	Duration   string          `yaml:"duration"`
	Services   int             `yaml:"services"`
	Errors     int             `yaml:"errors"`
	SizeBytes  int64           `yaml:"size_bytes"`
	Deleted    int             `yaml:"deleted_archives"`
	Statuses   []ServiceStatus `yaml:"statuses"`
}

func NewSummary(start time.Time) *Summary {
	return &Summary{StartedAt: start}
}

func (s *Summary) Record(run *Run) {
	s.Services++
	s.Errors += len(run.Errors)
	s.SizeBytes += run.SizeBytes
	s.Statuses = append(s.Statuses, ServiceStatus{
		Service:   run.Service,
		Stage:     run.Stage,
		Archive:   run.Archive,
		SizeBytes: run.SizeBytes,
		Duration:  run.Duration.Round(time.Millisecond).String(),
		History:   run.History,
		Errors:    run.Errors,
	})
}

func (s *Summary) RecordPrune(service string, deleted int, errs []error) {
	s.Deleted += deleted
	s.Errors += len(errs)
	for i := range s.Statuses {
		if s.Statuses[i].Service != service {
			continue
		}
		for _, err := range errs {
			s.Statuses[i].Errors = append(s.Statuses[i].Errors, fmt.Sprintf("retention: %s", err))
		}
		return
	}
}

func (s *Summary) Finish(end time.Time) {
	s.FinishedAt = end
	s.Duration = end.Sub(s.StartedAt).Round(time.Millisecond).String()
}

// Failed is the process-level outcome: non-zero exit when any service
// recorded any error anywhere in its stages, dump sub-errors included.
func (s *Summary) Failed() bool {
	return s.Errors > 0
}

// Write persists the summary into the run directory, named by start time.
func (s *Summary) Write(baseDir string) (string, error) {
	runDir := filepath.Join(baseDir, "run")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	path := filepath.Join(runDir, fmt.Sprintf("summary-%s.yaml", s.StartedAt.Format("2006-01-02_150405")))
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
