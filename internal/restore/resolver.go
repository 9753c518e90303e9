package restore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/dump"
)

// Candidate is one discovered dump file with its resolved restore target.
type Candidate struct {
	File      string
	Container string
	Database  string
	Type      config.DBType
}

type Action int

const (
	Accept Action = iota
	Skip
	Edit
)

// Decision is one operator answer for a candidate. For Edit, Edited holds
// the overridden triple; the candidate is then presented again.
type Decision struct {
	Action Action
	Edited Candidate
}

// DecisionProvider answers accept/skip/edit for each resolved candidate.
// Production binds this to a terminal prompt; tests script the answers.
type DecisionProvider interface {
	Decide(c Candidate) (Decision, error)
}

type Restorer interface {
	RestoreDatabase(ctx context.Context, container string, dbType config.DBType, database, dumpFile string) error
}

type Result struct {
	Restored int
	Skipped  int
	Errored  int
}

func (r Result) Failed() bool {
	return r.Errored > 0
}

// Resolver maps extracted dump files back to their container, database and
// engine type, confirms each with the decision provider, and restores the
// accepted ones.
type Resolver struct {
	Restorer Restorer
	Decider  DecisionProvider
}

// configLookup keys resolved triples by "<container>_<database>", matching
// the dump filename stem. Definitions using the "all databases" sentinel
// contribute nothing: their database names are only known at dump time.
func configLookup(svc *config.ServiceDefinition) map[string]Candidate {
	lookup := map[string]Candidate{}
	if svc == nil {
		return lookup
	}
	for _, def := range svc.Databases {
		for _, name := range def.Names {
			lookup[def.Container+"_"+name] = Candidate{
				Container: def.Container,
				Database:  name,
				Type:      def.Type,
			}
		}
	}
	return lookup
}

// resolve derives the restore triple for one dump file. A config match on
// the filename stem wins outright; otherwise the stem splits on the first
// underscore and the type is inferred from the extension.
func resolve(filename string, lookup map[string]Candidate) Candidate {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	stem := strings.TrimSuffix(filename, "."+ext)

	if c, ok := lookup[stem]; ok {
		c.File = filename
		return c
	}

	dbType, _ := dump.TypeForExt(ext)
	container, database, _ := strings.Cut(stem, "_")
	return Candidate{
		File:      filename,
		Container: container,
		Database:  database,
		Type:      dbType,
	}
}

// Discover lists the dump files in dumpDir and resolves each one against
// the optional service definition.
func Discover(dumpDir string, svc *config.ServiceDefinition) ([]Candidate, error) {
	entries, err := os.ReadDir(dumpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dump directory: %w", err)
	}

	lookup := configLookup(svc)
	var candidates []Candidate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != "."+dump.ExtPostgres && ext != "."+dump.ExtMySQL {
			continue
		}
		candidates = append(candidates, resolve(entry.Name(), lookup))
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].File < candidates[j].File
	})
	return candidates, nil
}

// Run resolves every dump file in dumpDir and restores the accepted ones.
// Postgres failures are downgraded to warnings and counted as restored;
// benign "already exists" noise makes them unreliable as hard errors.
// MySQL failures count as errors.
func (r *Resolver) Run(ctx context.Context, dumpDir string, svc *config.ServiceDefinition) (Result, error) {
	candidates, err := Discover(dumpDir, svc)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for _, c := range candidates {
		decision, err := r.decide(c)
		if err != nil {
			return result, err
		}
		if decision.Action == Skip {
			slog.Info("Skipping dump file", "file", c.File)
			result.Skipped++
			continue
		}
		c = decision.Edited

		dumpFile := filepath.Join(dumpDir, c.File)
		restoreErr := r.Restorer.RestoreDatabase(ctx, c.Container, c.Type, c.Database, dumpFile)
		switch {
		case restoreErr == nil:
			slog.Info("Restored database", "database", c.Database, "container", c.Container)
			result.Restored++
		case c.Type == config.TypePostgres:
			slog.Warn("Postgres restore reported errors, continuing", "database", c.Database, "error", restoreErr)
			result.Restored++
		default:
			slog.Error("Failed to restore database", "database", c.Database, "error", restoreErr)
			result.Errored++
		}
	}
	return result, nil
}

// decide loops until the provider answers accept or skip. An edit replaces
// the candidate's triple and re-prompts.
func (r *Resolver) decide(c Candidate) (Decision, error) {
	for {
		decision, err := r.Decider.Decide(c)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to read restore decision: %w", err)
		}
		switch decision.Action {
		case Accept:
			decision.Edited = c
			return decision, nil
		case Skip:
			return decision, nil
		case Edit:
			edited := decision.Edited
			edited.File = c.File
			c = edited
		}
	}
}
