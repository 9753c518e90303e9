package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveName(service string, d Date) string {
	return fmt.Sprintf("%s-%s.tar.zst.age", service, d)
}

func TestDayOfWeekAgainstReferenceCalendar(t *testing.T) {
	// Walk every date from 1900-01-01 through 2100-12-31 and compare with
	// the proleptic Gregorian weekday of the standard library.
	start := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2101, 1, 1, 0, 0, 0, 0, time.UTC)

	for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, 1) {
		want := int(cur.Weekday()) // time.Sunday == 0
		if want == 0 {
			want = 7
		}
		got := DayOfWeek(Date{Year: cur.Year(), Month: int(cur.Month()), Day: cur.Day()})
		if got != want {
			t.Fatalf("DayOfWeek(%s) = %d, want %d", cur.Format("2006-01-02"), got, want)
		}
	}
}

func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		name     string
		service  string
		filename string
		want     Date
		ok       bool
	}{
		{
			name:     "date only",
			service:  "blog",
			filename: "blog-2026-02-08.tar.zst.age",
			want:     Date{2026, 2, 8},
			ok:       true,
		},
		{
			name:     "date with time of day",
			service:  "blog",
			filename: "blog-2026-02-08_153000.tar.zst.age",
			want:     Date{2026, 2, 8},
			ok:       true,
		},
		{
			name:     "service containing dash",
			service:  "my-app",
			filename: "my-app-2026-12-01.tar.zst.age",
			want:     Date{2026, 12, 1},
			ok:       true,
		},
		{
			name:     "other service",
			service:  "blog",
			filename: "wiki-2026-02-08.tar.zst.age",
			ok:       false,
		},
		{
			name:     "no date",
			service:  "blog",
			filename: "blog-latest.tar.zst.age",
			ok:       false,
		},
		{
			name:     "month out of range",
			service:  "blog",
			filename: "blog-2026-13-08.tar.zst.age",
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseArchiveName(tt.service, tt.filename)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// Twelve consecutive daily archives, 2026-02-01 through 2026-02-12.
func twelveDays() []string {
	var files []string
	for day := 1; day <= 12; day++ {
		files = append(files, archiveName("blog", Date{2026, 2, day}))
	}
	return files
}

func TestPlanDailyTierKeepsMostRecent(t *testing.T) {
	dec := Plan("blog", twelveDays(), Policy{Daily: 7})

	// The 7 most recent dates are retained regardless of weekday.
	for day := 6; day <= 12; day++ {
		assert.Contains(t, dec.Keep, Date{2026, 2, day})
		assert.Contains(t, dec.Keep[Date{2026, 2, day}], TierDaily)
	}
	for day := 2; day <= 5; day++ {
		assert.NotContains(t, dec.Keep, Date{2026, 2, day})
	}
}

func TestPlanWeeklyTagOverlapsDaily(t *testing.T) {
	dec := Plan("blog", twelveDays(), Policy{Daily: 7, Weekly: 4})

	// 2026-02-08 is a Sunday inside the daily window: tagged by both tiers.
	require.Equal(t, 7, DayOfWeek(Date{2026, 2, 8}))
	assert.ElementsMatch(t, []Tier{TierDaily, TierWeekly}, dec.Keep[Date{2026, 2, 8}])

	// 2026-02-01 is also a Sunday, outside the daily window: weekly only.
	require.Equal(t, 7, DayOfWeek(Date{2026, 2, 1}))
	assert.Equal(t, []Tier{TierWeekly}, dec.Keep[Date{2026, 2, 1}])
}

func TestPlanTierBounds(t *testing.T) {
	// Three months of daily archives.
	var files []string
	for d := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); d.Month() <= 3; d = d.AddDate(0, 0, 1) {
		files = append(files, archiveName("app", Date{d.Year(), int(d.Month()), d.Day()}))
	}

	pol := Policy{Daily: 7, Weekly: 4, Monthly: 6}
	dec := Plan("app", files, pol)

	counts := map[Tier]int{}
	months := map[[2]int]int{}
	for d, tiers := range dec.Keep {
		for _, tier := range tiers {
			counts[tier]++
			switch tier {
			case TierWeekly:
				assert.Equal(t, 7, DayOfWeek(d), "weekly tier must only keep Sundays")
			case TierMonthly:
				assert.Equal(t, 1, d.Day, "monthly tier must only keep the first of the month")
				months[[2]int{d.Year, d.Month}]++
			}
		}
	}

	assert.LessOrEqual(t, counts[TierDaily], pol.Daily)
	assert.LessOrEqual(t, counts[TierWeekly], pol.Weekly)
	assert.LessOrEqual(t, counts[TierMonthly], pol.Monthly)
	for ym, n := range months {
		assert.Equal(t, 1, n, "year-month %v kept more than once by monthly tier", ym)
	}
}

func TestPlanFewerDatesThanLimits(t *testing.T) {
	files := []string{
		archiveName("blog", Date{2026, 8, 29}),
		archiveName("blog", Date{2026, 8, 30}),
	}

	dec := Plan("blog", files, Policy{Daily: 7, Weekly: 4, Monthly: 6})
	assert.Len(t, dec.Keep, 2)
	assert.Empty(t, dec.Delete)
}

func TestPlanSameDayFilesAllSurvive(t *testing.T) {
	// A service archived twice on the same retained date keeps both files.
	files := []string{
		"blog-2026-08-30_060000.tar.zst.age",
		"blog-2026-08-30_180000.tar.zst.age",
		"blog-2026-08-01_060000.tar.zst.age",
	}

	dec := Plan("blog", files, Policy{Daily: 1})
	assert.Contains(t, dec.Keep, Date{2026, 8, 30})
	assert.Equal(t, []string{"blog-2026-08-01_060000.tar.zst.age"}, dec.Delete)
}

func TestPlanIgnoresForeignFiles(t *testing.T) {
	files := []string{
		archiveName("blog", Date{2026, 8, 30}),
		"wiki-2026-08-30.tar.zst.age",
		"notes.txt",
	}

	dec := Plan("blog", files, Policy{Daily: 1})
	assert.Empty(t, dec.Delete)
	assert.Len(t, dec.Keep, 1)
}

type fakeBackend struct {
	files   map[string]bool
	failing map[string]bool
	deleted []string
}

func newFakeBackend(files []string) *fakeBackend {
	fb := &fakeBackend{files: map[string]bool{}, failing: map[string]bool{}}
	for _, f := range files {
		fb.files[f] = true
	}
	return fb
}

func (f *fakeBackend) Upload(context.Context, string, string, string) error { return nil }
func (f *fakeBackend) Download(context.Context, string, string) error       { return nil }

func (f *fakeBackend) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	for name := range f.files {
		if len(prefix) == 0 || (len(name) >= len(prefix) && name[:len(prefix)] == prefix) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (f *fakeBackend) Delete(_ context.Context, name string) error {
	if f.failing[name] {
		return fmt.Errorf("delete %s: permission denied", name)
	}
	delete(f.files, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func TestPruneIdempotent(t *testing.T) {
	backend := newFakeBackend(twelveDays())
	pol := Policy{Daily: 7, Weekly: 4, Monthly: 6}

	deleted, errs := Prune(context.Background(), backend, "blog", pol)
	require.Empty(t, errs)
	assert.Positive(t, deleted)

	// Second application with no new archives deletes nothing further.
	deleted, errs = Prune(context.Background(), backend, "blog", pol)
	require.Empty(t, errs)
	assert.Zero(t, deleted)
}

func TestApplyDeletionFailureIsolated(t *testing.T) {
	files := twelveDays()
	backend := newFakeBackend(files)
	backend.failing[archiveName("blog", Date{2026, 2, 2})] = true

	dec := Plan("blog", files, Policy{Daily: 7, Weekly: 4})
	require.NotEmpty(t, dec.Delete)

	deleted, errs := Apply(context.Background(), backend, dec)

	require.Len(t, errs, 1)
	assert.Equal(t, len(dec.Delete)-1, deleted)
}
