// Package pipeline runs one document through page extraction, grouping,
// commit and audit. Pages are processed by a bounded worker pool where
// every worker owns its own recognition engines.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docsplit/internal/audit"
	"docsplit/internal/commit"
	"docsplit/internal/config"
	"docsplit/internal/document"
	"docsplit/internal/extract"
	"docsplit/internal/grouping"
	"docsplit/internal/header"
	"docsplit/internal/logger"
	"docsplit/internal/ocr"
	"docsplit/internal/preprocess"
	"docsplit/pkg/models"
)

// ErrNoPages is returned for documents without pages.
var ErrNoPages = errors.New("document has no pages")

// ProgressFunc is called after each page with the number of pages done.
// Calls are serialized.
type ProgressFunc func(done, total int, page models.PageResult)

// Deps are the collaborators of a Processor.
type Deps struct {
	Open      document.Opener
	Generator *extract.Generator
	Grouper   *grouping.Grouper
	Writer    *commit.Writer
	Sink      audit.Sink

	// Primary is required. Fallback may be nil.
	Primary  ocr.EngineFactory
	Fallback ocr.EngineFactory

	// Workers is the page worker count per job.
	Workers int

	// Progress is optional.
	Progress ProgressFunc
}

// Processor processes documents. It is safe for concurrent use; each call
// to Process runs its own worker pool.
type Processor struct {
	deps Deps
}

// New creates a Processor.
func New(deps Deps) *Processor {
	if deps.Sink == nil {
		deps.Sink = audit.NopSink{}
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}
	return &Processor{deps: deps}
}

// NewFromConfig wires a Processor from configuration. dryRun computes
// destinations without writing files.
func NewFromConfig(cfg *config.Config, primary, fallback ocr.EngineFactory, sink audit.Sink, dryRun bool) (*Processor, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary engine factory is required")
	}
	variants, err := preprocess.Build(cfg.PreprocessOptions())
	if err != nil {
		return nil, err
	}

	validator := header.NewValidator(cfg.Header)
	selector := extract.NewSelector(cfg.Selection, cfg.OCR.EarlyExitScore, cfg.OCR.EscalationScore)

	output := cfg.Output
	output.DryRun = dryRun

	return New(Deps{
		Open:      document.NewOpener(document.Options{RasterizerBin: cfg.OCR.RasterizerBin}),
		Generator: extract.NewGenerator(validator, selector, variants, cfg.Policy(), cfg.ROI),
		Grouper:   grouping.New(validator, cfg.Grouping),
		Writer:    commit.NewWriter(output),
		Sink:      sink,
		Primary:   primary,
		Fallback:  fallback,
		Workers:   cfg.PageWorkers(),
	}), nil
}

// WithProgress returns a copy of p reporting page progress to fn.
func (p *Processor) WithProgress(fn ProgressFunc) *Processor {
	deps := p.deps
	deps.Progress = fn
	return &Processor{deps: deps}
}

// Writer returns the split writer.
func (p *Processor) Writer() *commit.Writer {
	return p.deps.Writer
}

// Process runs the full pipeline on the document at path. Only an
// unreadable source, a missing primary engine or cancellation fail the
// job; everything else is reflected in the result.
func (p *Processor) Process(ctx context.Context, path string) (*JobResult, error) {
	result := &JobResult{
		JobID:     uuid.NewString(),
		File:      path,
		StartedAt: time.Now(),
	}
	log := logger.WithJob("pipeline", result.JobID, filepath.Base(path))

	src, err := p.deps.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	result.PageCount = src.PageCount()
	if result.PageCount == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}
	log.Info().Int("pages", result.PageCount).Int("workers", p.deps.Workers).Msg("Processing document")

	stageStart := time.Now()
	pages, err := p.extractPages(ctx, src, result.PageCount, log)
	if err != nil {
		return nil, err
	}
	result.Timings.Pages = time.Since(stageStart)

	sort.Slice(pages, func(i, j int) bool { return pages[i].PageIndex < pages[j].PageIndex })
	result.Pages = pages
	for _, page := range pages {
		if page.LowConfidence() {
			result.LowConfidence++
			log.Warn().
				Int("page", page.PageIndex+1).
				Str("header", page.Label()).
				Int("score", page.Winner.Score).
				Msg("No strictly valid header found")
		}
		p.deps.Sink.Submit(audit.PageRecord(result.JobID, path, page))
	}

	stageStart = time.Now()
	result.Groups = p.deps.Grouper.Group(pages)
	result.Timings.Grouping = time.Since(stageStart)
	for _, g := range result.Groups {
		log.Info().
			Str("header", g.Label).
			Int("start", g.StartPage+1).
			Int("end", g.EndPage+1).
			Msg("Group formed")
	}

	stageStart = time.Now()
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	result.Splits = p.deps.Writer.Commit(ctx, src, stem, result.Groups)
	result.Timings.Commit = time.Since(stageStart)
	for _, unit := range result.Splits {
		if unit.Status == models.SplitFailed {
			result.FailedSplits++
		}
		p.deps.Sink.Submit(audit.SplitRecord(result.JobID, path, unit))
	}

	result.Duration = time.Since(result.StartedAt)
	log.Info().
		Int("groups", len(result.Groups)).
		Int("low_confidence", result.LowConfidence).
		Int("failed_splits", result.FailedSplits).
		Dur("duration", result.Duration).
		Msg("Document processed")

	return result, ctx.Err()
}

// pageJob is one page queued for a worker.
type pageJob struct {
	Page  int
	Index int
}

type workerEngines struct {
	extract.Engines
}

func (w workerEngines) close() {
	_ = w.Primary.Close()
	if w.Fallback != nil {
		_ = w.Fallback.Close()
	}
}

// extractPages runs the page worker pool. Engines are created up front so
// a broken primary engine fails the job before any work starts.
func (p *Processor) extractPages(ctx context.Context, src document.Source, total int, log zerolog.Logger) ([]models.PageResult, error) {
	numWorkers := p.deps.Workers
	if numWorkers > total {
		numWorkers = total
	}

	engines := make([]workerEngines, 0, numWorkers)
	defer func() {
		for _, e := range engines {
			e.close()
		}
	}()
	for w := 0; w < numWorkers; w++ {
		e, err := p.newEngines(ctx, log)
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}

	jobs := make(chan pageJob, total)
	results := make([]models.PageResult, total)

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int, own workerEngines) {
			defer wg.Done()

			for job := range jobs {
				if ctx.Err() != nil {
					results[job.Index] = models.PageResult{PageIndex: job.Page}
					continue
				}
				log.Debug().Int("worker", workerID).Int("page", job.Page+1).Msg("Worker processing page")

				results[job.Index] = p.deps.Generator.Extract(ctx, src, job.Page, own.Engines)

				if p.deps.Progress != nil {
					mu.Lock()
					processedCount++
					p.deps.Progress(processedCount, total, results[job.Index])
					mu.Unlock()
				}
			}
		}(w, engines[w])
	}

	for i := 0; i < total; i++ {
		jobs <- pageJob{Page: i, Index: i}
	}
	close(jobs)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) newEngines(ctx context.Context, log zerolog.Logger) (workerEngines, error) {
	primary, err := p.deps.Primary(ctx)
	if err != nil {
		return workerEngines{}, fmt.Errorf("failed to create primary engine: %w", err)
	}
	e := workerEngines{extract.Engines{Primary: primary}}

	if p.deps.Fallback != nil {
		fallback, err := p.deps.Fallback(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Fallback engine unavailable, continuing without it")
		} else {
			e.Fallback = fallback
		}
	}
	return e, nil
}
