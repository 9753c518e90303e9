// Package retention implements the three-tier GFS (grandfather-father-son)
// policy over a service's archive set. Decisions operate on the calendar
// date embedded in archive names; time-of-day is ignored, so every file
// sharing a retained date survives.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/WaffleThief123/container-backup/internal/remote"
)

type Policy struct {
	Daily   int
	Weekly  int
	Monthly int
}

type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
)

// Date is a plain calendar date. Plain integer fields keep the weekday
// arithmetic below independent of any host calendar type.
type Date struct {
	Year  int
	Month int
	Day   int
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// sakamotoOffsets is the month offset table for the weekday computation.
var sakamotoOffsets = [12]int{0, 3, 2, 5, 0, 3, 5, 1, 4, 6, 2, 4}

// DayOfWeek returns the ISO weekday (Monday = 1 .. Sunday = 7) for a
// proleptic Gregorian date, using Sakamoto's method.
func DayOfWeek(d Date) int {
	y := d.Year
	if d.Month < 3 {
		y--
	}
	dow := (y + y/4 - y/100 + y/400 + sakamotoOffsets[d.Month-1] + d.Day) % 7
	if dow == 0 {
		return 7 // Sunday
	}
	return dow
}

// ParseArchiveName extracts the calendar date from an archive filename of
// the form "<service>-<YYYY-MM-DD>[_<HHMMSS>].tar.zst.age". The optional
// time-of-day suffix is deliberately discarded.
func ParseArchiveName(service, filename string) (Date, bool) {
	prefix := service + "-"
	if !strings.HasPrefix(filename, prefix) {
		return Date{}, false
	}
	rest := filename[len(prefix):]
	if len(rest) < 10 {
		return Date{}, false
	}

	var d Date
	if _, err := fmt.Sscanf(rest[:10], "%4d-%2d-%2d", &d.Year, &d.Month, &d.Day); err != nil {
		return Date{}, false
	}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
		return Date{}, false
	}

	// The date must be followed by the archive suffix or a time-of-day part.
	switch {
	case strings.HasPrefix(rest[10:], "."):
	case strings.HasPrefix(rest[10:], "_"):
	default:
		return Date{}, false
	}
	return d, true
}

// Decision is the outcome of one GFS computation for one service.
type Decision struct {
	Service string
	// Keep maps each retained date to the tier(s) that justified it.
	Keep map[Date][]Tier
	// Delete lists the filenames whose date is absent from Keep.
	Delete []string
}

// Plan computes which archive files to keep and which to delete. Filenames
// that do not parse as archives of this service are left untouched.
func Plan(service string, files []string, pol Policy) Decision {
	dates := make(map[Date][]string)
	for _, f := range files {
		if d, ok := ParseArchiveName(service, f); ok {
			dates[d] = append(dates[d], f)
		}
	}

	// Distinct dates, most recent first.
	distinct := make([]Date, 0, len(dates))
	for d := range dates {
		distinct = append(distinct, d)
	}
	sort.Slice(distinct, func(i, j int) bool {
		return distinct[i].String() > distinct[j].String()
	})

	keep := make(map[Date][]Tier)

	// Daily tier: the most recent dates, unconditionally.
	for i, d := range distinct {
		if i >= pol.Daily {
			break
		}
		keep[d] = append(keep[d], TierDaily)
	}

	// Weekly tier: Sundays. A date already kept by the daily tier still
	// counts against the weekly limit; tiers select independently.
	kept := 0
	for _, d := range distinct {
		if kept >= pol.Weekly {
			break
		}
		if DayOfWeek(d) == 7 {
			keep[d] = append(keep[d], TierWeekly)
			kept++
		}
	}

	// Monthly tier: first of the month, at most one per year-month.
	kept = 0
	seenMonth := make(map[[2]int]bool)
	for _, d := range distinct {
		if kept >= pol.Monthly {
			break
		}
		if d.Day != 1 {
			continue
		}
		ym := [2]int{d.Year, d.Month}
		if seenMonth[ym] {
			continue
		}
		seenMonth[ym] = true
		keep[d] = append(keep[d], TierMonthly)
		kept++
	}

	dec := Decision{Service: service, Keep: keep}
	for _, d := range distinct {
		if _, ok := keep[d]; ok {
			continue
		}
		dec.Delete = append(dec.Delete, dates[d]...)
	}
	sort.Strings(dec.Delete)
	return dec
}

// Apply deletes the planned files from the backend. Each deletion is
// independent: one failure is logged and counted but does not stop the rest.
func Apply(ctx context.Context, backend remote.Backend, dec Decision) (int, []error) {
	deleted := 0
	var errs []error
	for _, name := range dec.Delete {
		if err := backend.Delete(ctx, name); err != nil {
			slog.Warn("Failed to delete expired archive", "service", dec.Service, "file", name, "error", err)
			errs = append(errs, err)
			continue
		}
		slog.Info("Deleted expired archive", "service", dec.Service, "file", name)
		deleted++
	}
	return deleted, errs
}

// Prune lists the service's archives on the backend, plans retention, and
// applies it. Returns the number of files deleted.
func Prune(ctx context.Context, backend remote.Backend, service string, pol Policy) (int, []error) {
	files, err := backend.List(ctx, service+"-")
	if err != nil {
		return 0, []error{fmt.Errorf("failed to list archives for %s: %w", service, err)}
	}
	return Apply(ctx, backend, Plan(service, files, pol))
}
