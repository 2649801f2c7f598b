// Package grouping turns ordered page decisions into contiguous document
// groups.
//
// Grouping runs in three passes over the page-sorted results:
//
//  1. contiguous runs of matching labels
//  2. single-page outliers folded into a neighbour when they look like a
//     misread of its label
//  3. a canonical label chosen for each finished group
//
// The passes only ever merge adjacent runs, so the result always partitions
// the page range. When in doubt a page is left on its own: a spurious split
// is cheaper than two documents glued together.
package grouping

import (
	"sort"

	"github.com/rs/zerolog"

	"docsplit/internal/header"
	"docsplit/internal/logger"
	"docsplit/pkg/models"
)

// Options tunes matching and correction.
type Options struct {
	// SimilarityThreshold at 1 or above means exact label matching.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	SerialBasedMatching bool    `mapstructure:"serial_based_matching"`
	OutlierCorrection   bool    `mapstructure:"outlier_correction"`
	MaxSerialEdits      int     `mapstructure:"max_serial_edits"`
	MaterialScoreGap    int     `mapstructure:"material_score_gap"`
}

// DefaultOptions returns exact matching with outlier correction enabled.
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 1.0,
		SerialBasedMatching: true,
		OutlierCorrection:   true,
		MaxSerialEdits:      1,
		MaterialScoreGap:    20,
	}
}

// Grouper builds groups. It is stateless and safe for concurrent use.
type Grouper struct {
	validator *header.Validator
	opts      Options
	log       zerolog.Logger
}

// New creates a grouper.
func New(validator *header.Validator, opts Options) *Grouper {
	return &Grouper{
		validator: validator,
		opts:      opts,
		log:       logger.WithComponent("grouping"),
	}
}

// Group partitions results into finalized groups. The input may arrive in
// any order; it is sorted by page index first.
func (g *Grouper) Group(results []models.PageResult) []models.Group {
	if len(results) == 0 {
		return nil
	}
	pages := append([]models.PageResult(nil), results...)
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageIndex < pages[j].PageIndex
	})

	groups := g.contiguous(pages)
	if g.opts.OutlierCorrection {
		groups = g.correctOutliers(groups)
	}
	for i := range groups {
		groups[i].Label = CanonicalLabel(groups[i].Members)
	}
	return groups
}

// contiguous starts a new group whenever a page's label does not match the
// previous page's label.
func (g *Grouper) contiguous(pages []models.PageResult) []models.Group {
	groups := []models.Group{newGroup(pages[0])}
	for i := 1; i < len(pages); i++ {
		prev, page := pages[i-1], pages[i]
		if g.validator.Match(prev.Label(), page.Label(), g.opts.SimilarityThreshold, g.opts.SerialBasedMatching) {
			last := &groups[len(groups)-1]
			last.Members = append(last.Members, page)
			last.EndPage = page.PageIndex
			continue
		}
		groups = append(groups, newGroup(page))
	}
	return groups
}

func newGroup(page models.PageResult) models.Group {
	return models.Group{
		StartPage: page.PageIndex,
		EndPage:   page.PageIndex,
		Label:     page.Label(),
		Members:   []models.PageResult{page},
	}
}
