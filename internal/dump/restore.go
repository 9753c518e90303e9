package dump

import (
	"context"
	"fmt"
	"os"

	"github.com/WaffleThief123/container-backup/internal/config"
)

// RestoreDatabase feeds a dump file back into the engine inside the
// container. Callers decide how to treat failures per engine: postgres
// restores commonly emit harmless "already exists" errors.
func (c *Coordinator) RestoreDatabase(ctx context.Context, container string, dbType config.DBType, database, dumpFile string) error {
	running, err := c.docker.IsRunning(ctx, container)
	if err != nil {
		return fmt.Errorf("failed to inspect container %s: %w", container, err)
	}
	if !running {
		return fmt.Errorf("%w: %s", ErrContainerNotRunning, container)
	}

	var command string
	switch dbType {
	case config.TypePostgres:
		command = fmt.Sprintf(`pg_restore -U "${POSTGRES_USER:-postgres}" -d %s --clean --if-exists`, database)
	case config.TypeMySQL:
		command = fmt.Sprintf(`exec mysql -uroot -p"${MYSQL_ROOT_PASSWORD}" %s`, database)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDatabaseType, dbType)
	}

	in, err := os.Open(dumpFile)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer in.Close()

	if err := c.docker.ExecInput(ctx, container, command, in); err != nil {
		return fmt.Errorf("restore of %s into %s failed: %w", database, container, err)
	}
	return nil
}
