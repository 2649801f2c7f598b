// Package commit writes each page group to its own file. Writes go through
// a temporary file in the destination directory followed by an atomic
// rename, with retries while the destination is locked, one regeneration
// when the temporary file disappears, and numbered fallback names once the
// retry budget is spent.
package commit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docsplit/internal/document"
	"docsplit/internal/logger"
	"docsplit/pkg/models"

	"github.com/rs/zerolog"
)

// Options controls naming, placement and the retry budget.
type Options struct {
	Dir               string        `mapstructure:"dir"`
	Pattern           string        `mapstructure:"naming_pattern"`
	OrganizeByDate    bool          `mapstructure:"organize_by_date"`
	RetentionDays     int           `mapstructure:"retention_days"`
	MaxFilenameLength int           `mapstructure:"max_filename_length"`
	SpaceReplacement  string        `mapstructure:"space_replacement"`
	Retries           int           `mapstructure:"commit_retries"`
	Backoff           time.Duration `mapstructure:"commit_backoff"`
	MaxFallbackNames  int           `mapstructure:"max_fallback_names"`

	// DryRun computes destinations without touching the file system.
	DryRun bool `mapstructure:"-"`
}

// DefaultOptions returns the default output settings.
func DefaultOptions() Options {
	return Options{
		Dir:               "output",
		Pattern:           DefaultPattern,
		OrganizeByDate:    true,
		RetentionDays:     90,
		MaxFilenameLength: 100,
		SpaceReplacement:  "_",
		Retries:           3,
		Backoff:           200 * time.Millisecond,
		MaxFallbackNames:  10,
	}
}

// Retention returns the retention period for dated folders.
func (o Options) Retention() time.Duration {
	return time.Duration(o.RetentionDays) * 24 * time.Hour
}

// Writer commits page groups to disk.
type Writer struct {
	opts      Options
	organizer *Organizer
	rename    func(oldpath, newpath string) error
	sleep     func(ctx context.Context, d time.Duration) error
	log       zerolog.Logger
}

// NewWriter creates a Writer. Zero retry settings fall back to defaults.
func NewWriter(opts Options) *Writer {
	def := DefaultOptions()
	if opts.Retries < 1 {
		opts.Retries = def.Retries
	}
	if opts.MaxFallbackNames < 1 {
		opts.MaxFallbackNames = def.MaxFallbackNames
	}
	if opts.Pattern == "" {
		opts.Pattern = def.Pattern
	}
	return &Writer{
		opts:      opts,
		organizer: NewOrganizer(opts.Dir, opts.OrganizeByDate),
		rename:    osReplace,
		sleep:     sleepContext,
		log:       logger.WithComponent("commit"),
	}
}

// Organizer returns the directory organizer used by the writer.
func (w *Writer) Organizer() *Organizer {
	return w.organizer
}

// Commit writes one file per group and returns one SplitUnit per group in
// the same order. A failing group never stops its siblings.
func (w *Writer) Commit(ctx context.Context, src document.Materializer, original string, groups []models.Group) []models.SplitUnit {
	dir := w.organizer.Dir()
	namer := NewNamer(w.opts.Pattern, original, w.opts.MaxFilenameLength, w.opts.SpaceReplacement)

	units := make([]models.SplitUnit, len(groups))
	for i, group := range groups {
		units[i] = w.commitGroup(ctx, src, group, dir, namer.Name(group, i))
	}
	return units
}

func (w *Writer) commitGroup(ctx context.Context, src document.Materializer, group models.Group, dir, name string) models.SplitUnit {
	dest := filepath.Join(dir, name)
	unit := models.SplitUnit{Group: group, Destination: dest, Status: models.SplitPending}
	log := w.log.With().Str("destination", dest).Int("start", group.StartPage+1).Int("end", group.EndPage+1).Logger()

	if w.opts.DryRun {
		log.Debug().Msg("Dry run, skipping write")
		return unit
	}
	if err := ctx.Err(); err != nil {
		return w.fail(log, unit, &CommitError{Op: "commit", Path: dest, Err: err})
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return w.fail(log, unit, &CommitError{Op: "mkdir", Path: dir, Err: err})
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	generate := func() (string, error) {
		data, err := src.Materialize(ctx, group.StartPage, group.EndPage)
		if err != nil {
			return "", &CommitError{Op: "materialize", Path: dest, Err: err}
		}
		return writeTemp(dir, stem, data)
	}

	tmp, err := generate()
	if err != nil {
		return w.fail(log, unit, err)
	}
	defer func() { _ = os.Remove(tmp) }()

	var lastErr error
	for attempt := 1; attempt <= w.opts.Retries; attempt++ {
		if attempt > 1 {
			if err := w.sleep(ctx, w.backoff(attempt-1)); err != nil {
				return w.fail(log, unit, &CommitError{Op: "rename", Path: dest, Err: err})
			}
		}
		fatal, err := w.place(&unit, &tmp, dest, generate)
		if err == nil {
			return w.committed(log, unit, dest, dir)
		}
		if fatal {
			return w.fail(log, unit, err)
		}
		lastErr = err
		if !isLocked(err) {
			break
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("Destination locked, retrying")
	}

	base := strings.TrimSuffix(dest, ".pdf")
	for k := 1; k <= w.opts.MaxFallbackNames; k++ {
		alt := fmt.Sprintf("%s_%d.pdf", base, k)
		if _, err := os.Stat(alt); err == nil {
			continue
		}
		fatal, err := w.place(&unit, &tmp, alt, generate)
		if err == nil {
			unit.UsedFallback = true
			log.Warn().Err(lastErr).Str("fallback", alt).Msg("Committed under fallback name")
			return w.committed(log, unit, alt, dir)
		}
		if fatal {
			return w.fail(log, unit, err)
		}
		lastErr = err
	}

	if isLocked(lastErr) {
		lastErr = fmt.Errorf("%w: %v", ErrDestinationLocked, lastErr)
	} else {
		lastErr = fmt.Errorf("%w: %v", ErrCommitFailed, lastErr)
	}
	return w.fail(log, unit, &CommitError{Op: "rename", Path: dest, Err: lastErr})
}

// place renames the temporary file onto dest. When the temporary file has
// vanished it is regenerated once and the rename repeated. fatal reports
// errors that end the unit.
func (w *Writer) place(unit *models.SplitUnit, tmp *string, dest string, generate func() (string, error)) (fatal bool, err error) {
	unit.Attempts++
	err = w.rename(*tmp, dest)
	if err == nil || !vanished(*tmp) {
		return false, err
	}
	if unit.Regenerated {
		return true, &CommitError{Op: "rename", Path: *tmp, Err: ErrTempVanished}
	}

	w.log.Warn().Str("temp", *tmp).Msg("Temporary file disappeared, regenerating")
	fresh, gerr := generate()
	if gerr != nil {
		return true, gerr
	}
	*tmp = fresh
	unit.Regenerated = true
	unit.Attempts++
	return false, w.rename(*tmp, dest)
}

func (w *Writer) committed(log zerolog.Logger, unit models.SplitUnit, dest, dir string) models.SplitUnit {
	_ = syncDir(dir)
	unit.Destination = dest
	unit.Status = models.SplitCommitted
	log.Info().Str("file", filepath.Base(dest)).Int("attempts", unit.Attempts).Msg("Split committed")
	return unit
}

func (w *Writer) fail(log zerolog.Logger, unit models.SplitUnit, err error) models.SplitUnit {
	unit.Status = models.SplitFailed
	unit.Err = err.Error()
	log.Error().Err(err).Int("attempts", unit.Attempts).Msg("Split commit failed")
	return unit
}

// backoff returns the wait before retry n (1-based): Backoff * 3^(n-1).
func (w *Writer) backoff(n int) time.Duration {
	d := w.opts.Backoff
	for i := 1; i < n; i++ {
		d *= 3
	}
	return d
}

func writeTemp(dir, stem string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, "."+stem+"-*.tmp")
	if err != nil {
		return "", &CommitError{Op: "create temp", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, 0o644)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", &CommitError{Op: "write temp", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", &CommitError{Op: "sync temp", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", &CommitError{Op: "close temp", Path: tmpPath, Err: err}
	}
	return tmpPath, nil
}

func vanished(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
