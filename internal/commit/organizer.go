package commit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	yearLayout = "2006"
	dayLayout  = "2006-01-02"
)

// Organizer decides which directory split files land in. With date
// organization enabled the layout is <base>/<YYYY>/<YYYY-MM-DD>.
type Organizer struct {
	base   string
	byDate bool
	now    func() time.Time
}

// NewOrganizer creates an Organizer rooted at base.
func NewOrganizer(base string, byDate bool) *Organizer {
	return &Organizer{base: base, byDate: byDate, now: time.Now}
}

// Dir returns the directory for files written now.
func (o *Organizer) Dir() string {
	if !o.byDate {
		return o.base
	}
	now := o.now()
	return filepath.Join(o.base, now.Format(yearLayout), now.Format(dayLayout))
}

// Cleanup removes dated folders older than retention and any year folders
// left empty. It returns the number of dated folders removed.
func (o *Organizer) Cleanup(retention time.Duration) (int, error) {
	years, err := os.ReadDir(o.base)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	now := o.now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(-retention)
	removed := 0

	for _, year := range years {
		if !year.IsDir() {
			continue
		}
		if _, err := time.Parse(yearLayout, year.Name()); err != nil {
			continue
		}
		yearDir := filepath.Join(o.base, year.Name())
		days, err := os.ReadDir(yearDir)
		if err != nil {
			return removed, fmt.Errorf("failed to read %s: %w", yearDir, err)
		}

		remaining := len(days)
		for _, day := range days {
			if !day.IsDir() {
				continue
			}
			date, err := time.ParseInLocation(dayLayout, day.Name(), now.Location())
			if err != nil || !date.Before(cutoff) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(yearDir, day.Name())); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", day.Name(), err)
			}
			removed++
			remaining--
		}

		if remaining == 0 {
			if err := os.Remove(yearDir); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", yearDir, err)
			}
		}
	}
	return removed, nil
}
