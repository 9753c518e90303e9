// Package dump coordinates database dumps and restores through an
// administrative client running inside the service's containers.
package dump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/WaffleThief123/container-backup/internal/config"
	"github.com/WaffleThief123/container-backup/internal/docker"
)

var (
	ErrContainerNotRunning = errors.New("container not running")
	ErrUnknownDatabaseType = errors.New("unknown database type")
)

const (
	ExtPostgres = "pgfc"
	ExtMySQL    = "sql"
)

// mysqlSystemDatabases are never dumped when a definition asks for "all".
var mysqlSystemDatabases = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"mysql":              true,
	"sys":                true,
}

const (
	// The postgres list query excludes template databases and the postgres
	// maintenance database itself.
	postgresListCommand = `psql -U "${POSTGRES_USER:-postgres}" -tA -c "SELECT datname FROM pg_database WHERE NOT datistemplate AND datname <> 'postgres'"`
	mysqlListCommand    = `exec mysql -uroot -p"${MYSQL_ROOT_PASSWORD}" -N -B -e 'SHOW DATABASES'`
)

// FileName builds the dump output name for one database. The restore
// resolver's fallback path parses this shape back apart, so the container
// comes first and is joined with a single underscore.
func FileName(container, database string, dbType config.DBType) string {
	ext := ExtMySQL
	if dbType == config.TypePostgres {
		ext = ExtPostgres
	}
	return fmt.Sprintf("%s_%s.%s", container, database, ext)
}

// TypeForExt infers the engine from a dump file extension.
func TypeForExt(ext string) (config.DBType, bool) {
	switch strings.TrimPrefix(ext, ".") {
	case ExtPostgres:
		return config.TypePostgres, true
	case ExtMySQL:
		return config.TypeMySQL, true
	}
	return "", false
}

// Coordinator dumps and restores databases for one service at a time.
type Coordinator struct {
	docker docker.Client
}

func NewCoordinator(client docker.Client) *Coordinator {
	return &Coordinator{docker: client}
}

// DumpAll processes every database definition of the service, writing dump
// files into outDir. Errors are collected per definition and per database
// name; one database's failure never blocks sibling databases.
func (c *Coordinator) DumpAll(ctx context.Context, svc *config.ServiceDefinition, outDir string) []error {
	var errs []error
	for _, def := range svc.Databases {
		errs = append(errs, c.dumpDefinition(ctx, def, outDir)...)
	}
	return errs
}

func (c *Coordinator) dumpDefinition(ctx context.Context, def config.DatabaseDefinition, outDir string) []error {
	if def.Type != config.TypePostgres && def.Type != config.TypeMySQL {
		return []error{fmt.Errorf("%w: %q for container %s", ErrUnknownDatabaseType, def.Type, def.Container)}
	}

	running, err := c.docker.IsRunning(ctx, def.Container)
	if err != nil {
		return []error{fmt.Errorf("failed to inspect container %s: %w", def.Container, err)}
	}
	if !running {
		return []error{fmt.Errorf("%w: %s", ErrContainerNotRunning, def.Container)}
	}

	names := def.Names
	if def.All {
		names, err = c.listDatabases(ctx, def)
		if err != nil {
			// No fallback to an empty list: the definition is aborted.
			return []error{fmt.Errorf("failed to list databases in %s: %w", def.Container, err)}
		}
	}

	var errs []error
	for _, name := range names {
		if err := c.dumpOne(ctx, def, name, outDir); err != nil {
			slog.Error("Database dump failed", "container", def.Container, "database", name, "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("Database dumped", "container", def.Container, "database", name)
	}
	return errs
}

func (c *Coordinator) listDatabases(ctx context.Context, def config.DatabaseDefinition) ([]string, error) {
	command := mysqlListCommand
	if def.Type == config.TypePostgres {
		command = postgresListCommand
	}

	var out bytes.Buffer
	if err := c.docker.Exec(ctx, def.Container, command, &out); err != nil {
		return nil, err
	}

	var names []string
	for _, line := range strings.Split(out.String(), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if def.Type == config.TypeMySQL && mysqlSystemDatabases[name] {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (c *Coordinator) dumpOne(ctx context.Context, def config.DatabaseDefinition, name, outDir string) error {
	command, err := c.dumpCommand(ctx, def, name)
	if err != nil {
		return err
	}

	outPath := filepath.Join(outDir, FileName(def.Container, name, def.Type))
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}

	if err := c.docker.Exec(ctx, def.Container, command, out); err != nil {
		out.Close()
		// Never leave a partial dump behind for the archive stage.
		if rmErr := os.Remove(outPath); rmErr != nil {
			slog.Warn("Failed to remove partial dump", "path", outPath, "error", rmErr)
		}
		return fmt.Errorf("dump of %s in %s failed: %w", name, def.Container, err)
	}

	return out.Close()
}

func (c *Coordinator) dumpCommand(ctx context.Context, def config.DatabaseDefinition, name string) (string, error) {
	if def.Type == config.TypePostgres {
		return fmt.Sprintf(`exec pg_dump -U "${POSTGRES_USER:-postgres}" --format=custom %s`, name), nil
	}

	bin, err := c.mysqlDumpBinary(ctx, def.Container)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`exec %s -uroot -p"${MYSQL_ROOT_PASSWORD}" --single-transaction %s`, bin, name), nil
}

// mysqlDumpBinary picks between the two known dump binaries on the target,
// preferring mariadb-dump when present.
func (c *Coordinator) mysqlDumpBinary(ctx context.Context, container string) (string, error) {
	for _, bin := range []string{"mariadb-dump", "mysqldump"} {
		if err := c.docker.Exec(ctx, container, "command -v "+bin, &bytes.Buffer{}); err == nil {
			return bin, nil
		}
	}
	return "", fmt.Errorf("no mysqldump variant found in container %s", container)
}
