package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/subosito/gotenv"
)

// ServiceConfigFile is the per-service definition file looked up inside each
// service directory. A missing file yields an all-default definition.
const ServiceConfigFile = "backup.env"

type BackupMode string

const (
	ModeHot       BackupMode = "hot"
	ModeStopStart BackupMode = "stop-start"
)

type DBType string

const (
	TypePostgres DBType = "postgres"
	TypeMySQL    DBType = "mysql"
)

// DatabaseDefinition describes one administrative dump target: a container
// running a database engine and the databases to dump from it. Names empty
// with All set means "every user database" resolved at dump time.
type DatabaseDefinition struct {
	Container string
	Type      DBType
	Names     []string
	All       bool
}

type ServiceDefinition struct {
	Name      string
	Dir       string
	Mode      BackupMode
	Exclude   []string
	PreHook   string
	PostHook  string
	Databases []DatabaseDefinition
}

// DecodeService builds a ServiceDefinition from the flat key/value pairs of a
// backup.env file. Database definitions are scanned from DB_1_* upward and
// enumeration stops at the first missing DB_<i>_CONTAINER: contiguity from 1
// is a hard requirement, a gap terminates discovery even if higher indices
// exist.
func DecodeService(name, dir string, values map[string]string) *ServiceDefinition {
	svc := &ServiceDefinition{
		Name: name,
		Dir:  dir,
		Mode: decodeMode(values["BACKUP_MODE"]),
	}

	if raw := values["EXCLUDE"]; raw != "" {
		for _, pat := range strings.Split(raw, ",") {
			if pat = strings.TrimSpace(pat); pat != "" {
				svc.Exclude = append(svc.Exclude, pat)
			}
		}
	}
	svc.PreHook = values["PRE_BACKUP_HOOK"]
	svc.PostHook = values["POST_BACKUP_HOOK"]

	for i := 1; ; i++ {
		container, ok := values[fmt.Sprintf("DB_%d_CONTAINER", i)]
		if !ok || container == "" {
			break
		}
		def := DatabaseDefinition{
			Container: container,
			Type:      decodeDBType(values[fmt.Sprintf("DB_%d_TYPE", i)]),
		}
		names := strings.TrimSpace(values[fmt.Sprintf("DB_%d_NAMES", i)])
		if strings.EqualFold(names, "all") {
			def.All = true
		} else {
			for _, n := range strings.Split(names, ",") {
				if n = strings.TrimSpace(n); n != "" {
					def.Names = append(def.Names, n)
				}
			}
		}
		svc.Databases = append(svc.Databases, def)
	}

	return svc
}

func decodeMode(raw string) BackupMode {
	// Absent or invalid modes fall back to hot.
	switch BackupMode(strings.TrimSpace(raw)) {
	case ModeStopStart:
		return ModeStopStart
	default:
		return ModeHot
	}
}

func decodeDBType(raw string) DBType {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "mariadb" {
		return TypeMySQL
	}
	return DBType(t)
}

// LoadService reads the backup.env of a single service directory.
func LoadService(dir string) (*ServiceDefinition, error) {
	name := filepath.Base(dir)

	envPath := filepath.Join(dir, ServiceConfigFile)
	f, err := os.Open(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DecodeService(name, dir, nil), nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", envPath, err)
	}
	defer f.Close()

	values, err := gotenv.StrictParse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", envPath, err)
	}

	return DecodeService(name, dir, values), nil
}

// LoadServices discovers every service under servicesDir. Each subdirectory
// is one service; discovery order is stable (sorted by name).
func LoadServices(servicesDir string) ([]*ServiceDefinition, error) {
	entries, err := os.ReadDir(servicesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read services directory: %w", err)
	}

	var services []*ServiceDefinition
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		svc, err := LoadService(filepath.Join(servicesDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})

	return services, nil
}
