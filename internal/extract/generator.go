// Package extract produces and votes on header candidates for single pages.
package extract

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"docsplit/internal/document"
	"docsplit/internal/header"
	"docsplit/internal/logger"
	"docsplit/internal/ocr"
	"docsplit/internal/preprocess"
	"docsplit/pkg/models"
)

// MethodDirect marks candidates read from the embedded text layer.
const MethodDirect = "direct"

// Policy bounds the work spent on one page.
type Policy struct {
	// Scales are the render tiers, ascending.
	Scales []float64
	// Segmentations are tried in order for every variant.
	Segmentations []ocr.Segmentation
	// MaxAttempts caps primary engine calls per page.
	MaxAttempts int
}

// PageSource is what the generator needs from a document.
type PageSource interface {
	document.Rasterizer
	document.TextExtractor
}

// Engines are the recognition engines owned by one worker. Fallback may be nil.
type Engines struct {
	Primary  ocr.Engine
	Fallback ocr.Engine
}

// Stats describes the work done for a page.
type Stats struct {
	Attempts        int
	EscalationLevel int
	FallbackUsed    bool
}

// Generator runs the escalation loop for single pages. It is stateless
// between calls and can be shared by workers; engines are passed per call.
type Generator struct {
	validator *header.Validator
	selector  *Selector
	variants  []preprocess.Variant
	policy    Policy
	roi       document.Rect
	log       zerolog.Logger
}

// NewGenerator creates a generator.
func NewGenerator(validator *header.Validator, selector *Selector, variants []preprocess.Variant, policy Policy, roi document.Rect) *Generator {
	if len(policy.Segmentations) == 0 {
		policy.Segmentations = []ocr.Segmentation{ocr.SegmentSingleLine}
	}
	return &Generator{
		validator: validator,
		selector:  selector,
		variants:  variants,
		policy:    policy,
		roi:       roi,
		log:       logger.WithComponent("extract"),
	}
}

// Extract generates candidates for page and returns the selected result.
func (g *Generator) Extract(ctx context.Context, src PageSource, page int, engines Engines) models.PageResult {
	start := time.Now()
	cands, stats := g.Generate(ctx, src, page, engines)
	winner := g.selector.Select(cands)

	result := models.PageResult{
		PageIndex:       page,
		Winner:          winner,
		Elapsed:         time.Since(start),
		EscalationLevel: stats.EscalationLevel,
		Attempts:        stats.Attempts,
		FallbackUsed:    stats.FallbackUsed,
		CandidateCount:  len(cands),
	}

	g.log.Debug().
		Int("page", page+1).
		Str("header", winner.NormalizedText).
		Int("score", winner.Score).
		Bool("strict", winner.StrictValid).
		Str("method", winner.SourceMethod).
		Int("attempts", stats.Attempts).
		Int("level", stats.EscalationLevel).
		Dur("elapsed", result.Elapsed).
		Msg("Page header selected")
	return result
}

// Generate produces the candidate set for page, stopping as soon as the
// selector is satisfied. Cancellation is observed between attempts.
func (g *Generator) Generate(ctx context.Context, src PageSource, page int, engines Engines) ([]models.Candidate, Stats) {
	var cands []models.Candidate
	var stats Stats

	text, err := src.ExtractText(ctx, page, g.roi)
	if err != nil {
		g.log.Debug().Err(err).Int("page", page+1).Msg("Text layer read failed")
	}
	if strings.TrimSpace(text) != "" {
		direct := g.candidate(text, MethodDirect, 100)
		if direct.StrictValid {
			return []models.Candidate{direct}, stats
		}
		cands = append(cands, direct)
	}

	primaryAttempts := 0
	var lastImage image.Image
	var lastScale float64

	for tier, scale := range g.policy.Scales {
		if ctx.Err() != nil || primaryAttempts >= g.policy.MaxAttempts {
			break
		}
		stats.EscalationLevel = tier

		img, err := src.RenderRegion(ctx, page, g.roi, scale)
		if err != nil {
			g.log.Warn().Err(err).Int("page", page+1).Float64("scale", scale).Msg("Render failed, skipping scale")
			continue
		}
		lastImage, lastScale = img, scale

		stop := g.runTier(ctx, img, scale, engines.Primary, &cands, &primaryAttempts)
		if stop || g.selector.GoodEnough(cands) {
			break
		}
	}
	stats.Attempts = primaryAttempts

	if engines.Fallback == nil || lastImage == nil || ctx.Err() != nil {
		return cands, stats
	}
	if !g.selector.NeedsFallback(g.selector.Select(cands)) {
		return cands, stats
	}

	method := fmt.Sprintf("%s@%gx", engines.Fallback.Name(), lastScale)
	rec, err := engines.Fallback.Recognize(ctx, lastImage, g.policy.Segmentations[0])
	stats.Attempts++
	stats.FallbackUsed = true
	if err != nil {
		g.log.Warn().Err(err).Int("page", page+1).Str("engine", engines.Fallback.Name()).Msg("Fallback recognition failed")
		return append(cands, failedCandidate(method, err)), stats
	}
	return append(cands, g.candidate(rec.Text, method, rec.Confidence)), stats
}

// runTier tries every variant and segmentation at one scale. It reports
// true when generation must stop: early exit, attempt cap or cancellation.
func (g *Generator) runTier(ctx context.Context, img image.Image, scale float64, engine ocr.Engine, cands *[]models.Candidate, attempts *int) bool {
	for _, variant := range g.variants {
		var processed image.Image
		seen := make(map[string]bool)

		for _, seg := range g.policy.Segmentations {
			if *attempts >= g.policy.MaxAttempts || ctx.Err() != nil {
				return true
			}
			if processed == nil {
				processed = variant.Apply(img)
			}

			method := fmt.Sprintf("%s/%s/psm%d@%gx", engine.Name(), variant.Name, seg, scale)
			rec, err := engine.Recognize(ctx, processed, seg)
			*attempts++
			if err != nil {
				*cands = append(*cands, failedCandidate(method, err))
				continue
			}

			c := g.candidate(rec.Text, method, rec.Confidence)
			if seen[c.NormalizedText] {
				continue
			}
			seen[c.NormalizedText] = true
			*cands = append(*cands, c)

			if g.selector.Satisfied(c) {
				return true
			}
		}
	}
	return false
}

func (g *Generator) candidate(raw, method string, confidence float64) models.Candidate {
	res := g.validator.Validate(raw)
	return models.Candidate{
		RawText:          raw,
		NormalizedText:   res.Normalized,
		SourceMethod:     method,
		EngineConfidence: confidence,
		Score:            res.Score,
		StrictValid:      res.StrictValid,
	}
}

func failedCandidate(method string, err error) models.Candidate {
	return models.Candidate{SourceMethod: method, Err: err.Error()}
}
