package models

import "time"

// Candidate is one recognized header string for a page together with its
// validation outcome. Candidates are never modified after creation.
type Candidate struct {
	RawText          string  `json:"raw_text"`          // Text as returned by the engine or text layer
	NormalizedText   string  `json:"normalized_text"`   // Canonical form used for voting and grouping
	SourceMethod     string  `json:"source_method"`     // e.g. "direct", "tesseract/otsu/psm7@2x"
	EngineConfidence float64 `json:"engine_confidence"` // 0-100
	Score            int     `json:"score"`             // Signed structural score
	StrictValid      bool    `json:"strict_valid"`      // Serial passed the strict gate
	Err              string  `json:"error,omitempty"`   // Set when the recognition call failed
}

// Empty reports whether the candidate carries no usable text.
func (c Candidate) Empty() bool {
	return c.NormalizedText == ""
}

// PageResult is the decision for a single page.
type PageResult struct {
	PageIndex       int           `json:"page_index"` // 0-based
	Winner          Candidate     `json:"winner"`
	Elapsed         time.Duration `json:"elapsed"`
	EscalationLevel int           `json:"escalation_level"` // Index of the last render tier used
	Attempts        int           `json:"attempts"`         // Recognition calls made
	FallbackUsed    bool          `json:"fallback_used"`
	CandidateCount  int           `json:"candidate_count"`
}

// Label returns the normalized header chosen for the page.
func (p PageResult) Label() string {
	return p.Winner.NormalizedText
}

// LowConfidence flags pages that should be reviewed by a human.
func (p PageResult) LowConfidence() bool {
	return !p.Winner.StrictValid || p.Winner.Score <= 0
}

// Group is a contiguous run of pages sharing one logical header.
type Group struct {
	StartPage int          `json:"start_page"` // 0-based, inclusive
	EndPage   int          `json:"end_page"`   // 0-based, inclusive
	Label     string       `json:"label"`      // Canonical label
	Members   []PageResult `json:"members"`
}

// PageCount returns the number of pages in the group.
func (g Group) PageCount() int {
	return g.EndPage - g.StartPage + 1
}

// SplitStatus is the lifecycle state of a SplitUnit.
type SplitStatus string

const (
	SplitPending   SplitStatus = "pending"
	SplitCommitted SplitStatus = "committed"
	SplitFailed    SplitStatus = "failed"
)

// SplitUnit tracks the output file written for one group.
type SplitUnit struct {
	Group        Group       `json:"group"`
	Destination  string      `json:"destination"` // Final path, fallback name included
	Status       SplitStatus `json:"status"`
	Attempts     int         `json:"attempts"`
	UsedFallback bool        `json:"used_fallback"`
	Regenerated  bool        `json:"regenerated"`
	Err          string      `json:"error,omitempty"`
}
