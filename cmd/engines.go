package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"docsplit/internal/audit"
	"docsplit/internal/config"
	"docsplit/internal/ocr"
	"docsplit/internal/ocr/tesseract"
	"docsplit/internal/pipeline"
)

// auditCloseTimeout bounds the drain of queued audit records on exit.
const auditCloseTimeout = 10 * time.Second

// createProcessor wires engines, the audit sink and the pipeline. The
// returned close function drains the audit sink.
func createProcessor(ctx context.Context, cfg *config.Config, dryRun bool, log zerolog.Logger) (*pipeline.Processor, func(), error) {
	primary := tesseract.Factory(tesseract.Options{
		Languages: cfg.Languages(),
		Whitelist: cfg.OCR.Whitelist,
	})

	fallback, err := createFallbackFactory(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	sink, closeSink := createAuditSink(ctx, cfg, log)

	processor, err := pipeline.NewFromConfig(cfg, primary, fallback, sink, dryRun)
	if err != nil {
		closeSink()
		return nil, nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return processor, closeSink, nil
}

// createFallbackFactory returns the configured cloud engine factory, or nil.
func createFallbackFactory(cfg *config.Config, log zerolog.Logger) (ocr.EngineFactory, error) {
	name := cfg.OCR.FallbackEngine
	if name == "" {
		return nil, nil
	}

	// Check if credentials are configured before attempting to create engines
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
	if !hasCredentials {
		log.Warn().
			Str("engine", name).
			Msg("Google Cloud credentials not configured, falling back to application default credentials")
	}

	factory, err := ocr.CloudFactory(name, cfg.CloudSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to configure fallback engine: %w", err)
	}
	log.Debug().Str("engine", name).Msg("Fallback engine configured")
	return factory, nil
}

// createAuditSink returns the audit sink. Audit problems never stop
// processing: an unreachable target degrades to a no-op sink.
func createAuditSink(ctx context.Context, cfg *config.Config, log zerolog.Logger) (audit.Sink, func()) {
	if !cfg.Audit.Enabled {
		return audit.NopSink{}, func() {}
	}

	transport, err := audit.NewTransport(ctx, cfg.Audit)
	if err != nil {
		log.Warn().Err(err).Msg("Audit transport unavailable, audit records will be discarded")
		return audit.NopSink{}, func() {}
	}

	sink := audit.NewAsyncSink(transport, cfg.Audit)
	return sink, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), auditCloseTimeout)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil && !errors.Is(err, audit.ErrSinkClosed) {
			log.Warn().Err(err).Msg("Audit sink did not drain cleanly")
		}
		stats := sink.Stats()
		if stats.Dropped() > 0 || stats.Failed > 0 {
			log.Warn().
				Int64("dropped", stats.Dropped()).
				Int64("failed", stats.Failed).
				Msg("Some audit records were not delivered")
		}
	}
}
