package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const recentReports = 5

func isReport(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv") && !strings.HasPrefix(name, ".")
}

// GetReportStats counts CSV reports and lists the most recently modified.
func (e *Engine) GetReportStats() (Stats, error) {
	dirEntries, err := os.ReadDir(e.dir)
	if err != nil {
		return Stats{}, fmt.Errorf("reading reports directory: %w", err)
	}

	type file struct {
		name    string
		modTime time.Time
	}
	var files []file
	for _, d := range dirEntries {
		if d.IsDir() || !isReport(d.Name()) {
			continue
		}
		var modTime time.Time
		if info, err := d.Info(); err == nil {
			modTime = info.ModTime()
		}
		files = append(files, file{name: d.Name(), modTime: modTime})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].name < files[j].name
	})

	stats := Stats{TotalReports: len(files), RecentReports: []string{}}
	for i, f := range files {
		if i == recentReports {
			break
		}
		stats.RecentReports = append(stats.RecentReports, f.name)
	}
	return stats, nil
}

// CleanupOldReports deletes CSV reports last modified more than daysOld days
// ago. A file that cannot be inspected or removed is skipped and reported in
// the joined error; the count covers files actually deleted.
func (e *Engine) CleanupOldReports(daysOld int) (int, error) {
	if daysOld < 0 {
		return 0, fmt.Errorf("days must not be negative: %d", daysOld)
	}
	dirEntries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, fmt.Errorf("reading reports directory: %w", err)
	}

	cutoff := e.timeSource.Now().Add(-time.Duration(daysOld) * 24 * time.Hour)
	deleted := 0
	var errs []error
	for _, d := range dirEntries {
		if d.IsDir() || !isReport(d.Name()) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %s: %w", d.Name(), err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := e.remove(filepath.Join(e.dir, d.Name())); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", d.Name(), err))
			continue
		}
		deleted++
	}

	if deleted > 0 || len(errs) > 0 {
		slog.Info("Old reports cleaned up", "deleted", deleted, "failed", len(errs), "days", daysOld)
	}
	return deleted, errors.Join(errs...)
}
