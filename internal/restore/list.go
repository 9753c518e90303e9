package restore

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/WaffleThief123/container-backup/internal/remote"
)

// archiveNameRe matches the archive filename grammar: service, date, and
// an optional time-of-day part.
var archiveNameRe = regexp.MustCompile(`^(.+)-(\d{4}-\d{2}-\d{2})(?:_(\d{6}))?\.tar\.zst\.age$`)

type ArchiveInfo struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Date    string `json:"date"`
	Time    string `json:"time,omitempty"`
}

// ListArchives returns the stored archives, newest first per service.
// A non-empty service filters to that service's archives.
func ListArchives(ctx context.Context, backend remote.Backend, service string) ([]ArchiveInfo, error) {
	prefix := ""
	if service != "" {
		prefix = service + "-"
	}

	names, err := backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	var archives []ArchiveInfo
	for _, name := range names {
		m := archiveNameRe.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if service != "" && m[1] != service {
			continue
		}
		archives = append(archives, ArchiveInfo{
			Name:    name,
			Service: m[1],
			Date:    m[2],
			Time:    m[3],
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Service != archives[j].Service {
			return archives[i].Service < archives[j].Service
		}
		return archives[i].Name > archives[j].Name
	})
	return archives, nil
}
