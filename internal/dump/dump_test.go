package dump

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WaffleThief123/container-backup/internal/config"
)

// fakeDocker scripts container state and per-command stdout/errors.
type fakeDocker struct {
	running map[string]bool
	outputs map[string]string
	errors  map[string]error
	calls   []string
}

func newFakeDocker() *fakeDocker {
	return &fakeDocker{
		running: map[string]bool{},
		outputs: map[string]string{},
		errors:  map[string]error{},
	}
}

func (f *fakeDocker) IsRunning(_ context.Context, container string) (bool, error) {
	return f.running[container], nil
}

func (f *fakeDocker) Exec(_ context.Context, container, command string, out io.Writer) error {
	f.calls = append(f.calls, container+"|"+command)
	if err, ok := f.errors[command]; ok {
		return err
	}
	if output, ok := f.outputs[command]; ok {
		_, _ = out.Write([]byte(output))
	}
	return nil
}

func (f *fakeDocker) ExecInput(_ context.Context, container, command string, _ io.Reader) error {
	f.calls = append(f.calls, container+"|"+command)
	if err, ok := f.errors[command]; ok {
		return err
	}
	return nil
}

func (f *fakeDocker) StopStack(context.Context, string) error  { return nil }
func (f *fakeDocker) StartStack(context.Context, string) error { return nil }

func pgService(names string) *config.ServiceDefinition {
	return &config.ServiceDefinition{
		Name: "app",
		Databases: []config.DatabaseDefinition{
			mustDef("app-pg", "postgres", names),
		},
	}
}

func mustDef(container, dbType, names string) config.DatabaseDefinition {
	svc := config.DecodeService("x", "/x", map[string]string{
		"DB_1_CONTAINER": container,
		"DB_1_TYPE":      dbType,
		"DB_1_NAMES":     names,
	})
	return svc.Databases[0]
}

func pgDumpCommand(name string) string {
	return fmt.Sprintf(`exec pg_dump -U "${POSTGRES_USER:-postgres}" --format=custom %s`, name)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "app-pg_app_db.pgfc", FileName("app-pg", "app_db", config.TypePostgres))
	assert.Equal(t, "blog-db_blog.sql", FileName("blog-db", "blog", config.TypeMySQL))
}

func TestTypeForExt(t *testing.T) {
	got, ok := TypeForExt(".pgfc")
	require.True(t, ok)
	assert.Equal(t, config.TypePostgres, got)

	got, ok = TypeForExt("sql")
	require.True(t, ok)
	assert.Equal(t, config.TypeMySQL, got)

	_, ok = TypeForExt(".dump")
	assert.False(t, ok)
}

func TestDumpAllPostgresAll(t *testing.T) {
	docker := newFakeDocker()
	docker.running["app-pg"] = true
	docker.outputs[postgresListCommand] = "app_db\ntmp_test\n"

	outDir := t.TempDir()
	errs := NewCoordinator(docker).DumpAll(context.Background(), pgService("all"), outDir)
	require.Empty(t, errs)

	assert.FileExists(t, filepath.Join(outDir, "app-pg_app_db.pgfc"))
	assert.FileExists(t, filepath.Join(outDir, "app-pg_tmp_test.pgfc"))
}

func TestDumpAllContainerNotRunning(t *testing.T) {
	docker := newFakeDocker()
	docker.running["app-pg"] = false

	errs := NewCoordinator(docker).DumpAll(context.Background(), pgService("main"), t.TempDir())

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrContainerNotRunning)
	// The definition is skipped entirely, no partial attempt.
	assert.Empty(t, docker.calls)
}

func TestDumpAllListFailureAbortsDefinition(t *testing.T) {
	docker := newFakeDocker()
	docker.running["app-pg"] = true
	docker.errors[postgresListCommand] = fmt.Errorf("connection refused")

	outDir := t.TempDir()
	errs := NewCoordinator(docker).DumpAll(context.Background(), pgService("all"), outDir)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "failed to list databases")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDumpFailureDoesNotBlockSiblings(t *testing.T) {
	docker := newFakeDocker()
	docker.running["app-pg"] = true
	docker.errors[pgDumpCommand("broken")] = fmt.Errorf("exit status 1")

	outDir := t.TempDir()
	errs := NewCoordinator(docker).DumpAll(context.Background(), pgService("broken,healthy"), outDir)

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken")

	// The failed dump left no partial file; the sibling still got dumped.
	assert.NoFileExists(t, filepath.Join(outDir, "app-pg_broken.pgfc"))
	assert.FileExists(t, filepath.Join(outDir, "app-pg_healthy.pgfc"))
}

func TestDumpMySQLFiltersSystemDatabases(t *testing.T) {
	docker := newFakeDocker()
	docker.running["blog-db"] = true
	docker.outputs[mysqlListCommand] = "information_schema\nblog\nmysql\nperformance_schema\nsys\n"
	// mariadb-dump is absent, mysqldump is present
	docker.errors["command -v mariadb-dump"] = fmt.Errorf("exit status 1")

	svc := &config.ServiceDefinition{
		Name:      "blog",
		Databases: []config.DatabaseDefinition{mustDef("blog-db", "mysql", "all")},
	}

	outDir := t.TempDir()
	errs := NewCoordinator(docker).DumpAll(context.Background(), svc, outDir)
	require.Empty(t, errs)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blog-db_blog.sql", entries[0].Name())

	dumped := false
	for _, call := range docker.calls {
		if strings.Contains(call, "mysqldump") && strings.Contains(call, "--single-transaction") {
			dumped = true
		}
	}
	assert.True(t, dumped, "expected a mysqldump --single-transaction invocation")
}

func TestDumpMariaDBPrefersMariadbDump(t *testing.T) {
	docker := newFakeDocker()
	docker.running["wiki-db"] = true

	svc := &config.ServiceDefinition{
		Name:      "wiki",
		Databases: []config.DatabaseDefinition{mustDef("wiki-db", "mariadb", "wiki")},
	}

	errs := NewCoordinator(docker).DumpAll(context.Background(), svc, t.TempDir())
	require.Empty(t, errs)

	usedMariadbDump := false
	for _, call := range docker.calls {
		if strings.Contains(call, "mariadb-dump") && strings.Contains(call, "wiki") {
			usedMariadbDump = true
		}
	}
	assert.True(t, usedMariadbDump)
}

func TestDumpUnknownTypeFatalToDefinition(t *testing.T) {
	docker := newFakeDocker()
	docker.running["cache"] = true

	svc := &config.ServiceDefinition{
		Name:      "app",
		Databases: []config.DatabaseDefinition{mustDef("cache", "redis", "0")},
	}

	errs := NewCoordinator(docker).DumpAll(context.Background(), svc, t.TempDir())

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnknownDatabaseType)
}

func TestRestoreDatabaseNotRunning(t *testing.T) {
	docker := newFakeDocker()

	dumpFile := filepath.Join(t.TempDir(), "app-pg_app_db.pgfc")
	require.NoError(t, os.WriteFile(dumpFile, []byte("dump"), 0o644))

	err := NewCoordinator(docker).RestoreDatabase(context.Background(), "app-pg", config.TypePostgres, "app_db", dumpFile)
	assert.ErrorIs(t, err, ErrContainerNotRunning)
}

func TestRestoreDatabaseMySQL(t *testing.T) {
	docker := newFakeDocker()
	docker.running["blog-db"] = true

	dumpFile := filepath.Join(t.TempDir(), "blog-db_blog.sql")
	require.NoError(t, os.WriteFile(dumpFile, []byte("-- dump"), 0o644))

	err := NewCoordinator(docker).RestoreDatabase(context.Background(), "blog-db", config.TypeMySQL, "blog", dumpFile)
	require.NoError(t, err)

	require.Len(t, docker.calls, 1)
	assert.Contains(t, docker.calls[0], "mysql -uroot")
	assert.Contains(t, docker.calls[0], "blog")
}
