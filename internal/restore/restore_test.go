package restore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WaffleThief123/container-backup/internal/archive"
	"github.com/WaffleThief123/container-backup/internal/crypto"
	"github.com/WaffleThief123/container-backup/internal/pipeline"
	"github.com/WaffleThief123/container-backup/internal/remote"
)

type fakeDocker struct {
	execs []string
}

func (f *fakeDocker) IsRunning(context.Context, string) (bool, error) { return true, nil }

func (f *fakeDocker) Exec(_ context.Context, _, command string, _ io.Writer) error {
	f.execs = append(f.execs, command)
	return nil
}

func (f *fakeDocker) ExecInput(_ context.Context, _, command string, _ io.Reader) error {
	f.execs = append(f.execs, command)
	return nil
}

func (f *fakeDocker) StopStack(context.Context, string) error  { return nil }
func (f *fakeDocker) StartStack(context.Context, string) error { return nil }

// buildArchive produces an encrypted archive of a service directory that
// contains one postgres dump, stored in a local backend.
func buildArchive(t *testing.T, root string) (remote.Backend, string) {
	t.Helper()

	svcDir := filepath.Join(t.TempDir(), "blog")
	dumpDir := filepath.Join(svcDir, pipeline.DumpDirName)
	require.NoError(t, os.MkdirAll(dumpDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svcDir, "docker-compose.yml"), []byte("services: {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dumpDir, "app-pg_app_db.pgfc"), []byte("PGDMP"), 0o644))

	staging := t.TempDir()
	tarPath := filepath.Join(staging, "blog-2026-08-30_153000.tar.zst")
	_, err := archive.Create(svcDir, tarPath, nil, 3)
	require.NoError(t, err)

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "key.txt"), []byte(identity.String()+"\n"), 0o600))

	encPath := tarPath + ".age"
	require.NoError(t, crypto.Encrypt(tarPath, encPath, identity.Recipient()))

	backend, err := remote.NewLocal(filepath.Join(root, "store"))
	require.NoError(t, err)
	require.NoError(t, backend.Upload(context.Background(), encPath, filepath.Base(encPath), ""))
	return backend, filepath.Join(root, "key.txt")
}

func TestRestoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	backend, identityFile := buildArchive(t, root)

	docker := &fakeDocker{}
	runner := &Runner{
		Backend: backend,
		Docker:  docker,
		Decider: &scriptedDecider{},
	}

	destDir := filepath.Join(root, "restored")
	result, err := runner.Restore(context.Background(), Options{
		Archive:      "blog-2026-08-30_153000.tar.zst.age",
		DestDir:      destDir,
		IdentityFile: identityFile,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Restored: 1}, result)

	assert.FileExists(t, filepath.Join(destDir, "docker-compose.yml"))
	require.Len(t, docker.execs, 1)
	assert.Contains(t, docker.execs[0], "pg_restore")
}

func TestRestoreRejectsWrongSuffix(t *testing.T) {
	runner := &Runner{}
	_, err := runner.Restore(context.Background(), Options{Archive: "blog.tar.gz"})
	require.Error(t, err)
}

func TestRestoreWithoutDumpsSkipsResolver(t *testing.T) {
	root := t.TempDir()

	svcDir := filepath.Join(t.TempDir(), "static")
	require.NoError(t, os.MkdirAll(svcDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svcDir, "index.html"), []byte("<html>"), 0o644))

	tarPath := filepath.Join(t.TempDir(), "static-2026-08-30.tar.zst")
	_, err := archive.Create(svcDir, tarPath, nil, 3)
	require.NoError(t, err)

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	identityFile := filepath.Join(root, "key.txt")
	require.NoError(t, os.WriteFile(identityFile, []byte(identity.String()+"\n"), 0o600))
	require.NoError(t, crypto.Encrypt(tarPath, tarPath+".age", identity.Recipient()))

	backend, err := remote.NewLocal(filepath.Join(root, "store"))
	require.NoError(t, err)
	require.NoError(t, backend.Upload(context.Background(), tarPath+".age", "static-2026-08-30.tar.zst.age", ""))

	runner := &Runner{Backend: backend, Decider: &scriptedDecider{}}
	result, err := runner.Restore(context.Background(), Options{
		Archive:      "static-2026-08-30.tar.zst.age",
		DestDir:      filepath.Join(root, "restored"),
		IdentityFile: identityFile,
	})
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestListArchives(t *testing.T) {
	backend, err := remote.NewLocal(t.TempDir())
	require.NoError(t, err)
	src := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	for _, name := range []string{
		"blog-2026-08-29.tar.zst.age",
		"blog-2026-08-30_153000.tar.zst.age",
		"wiki-2026-08-30.tar.zst.age",
		"stray-file.txt",
	} {
		require.NoError(t, backend.Upload(context.Background(), src, name, ""))
	}

	archives, err := ListArchives(context.Background(), backend, "")
	require.NoError(t, err)
	require.Len(t, archives, 3)
	assert.Equal(t, "blog-2026-08-30_153000.tar.zst.age", archives[0].Name)
	assert.Equal(t, "153000", archives[0].Time)
	assert.Equal(t, "blog", archives[0].Service)

	blogOnly, err := ListArchives(context.Background(), backend, "blog")
	require.NoError(t, err)
	require.Len(t, blogOnly, 2)
	for _, a := range blogOnly {
		assert.Equal(t, "blog", a.Service)
	}
}
