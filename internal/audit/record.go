package audit

import (
	"time"

	"github.com/google/uuid"

	"docsplit/pkg/models"
)

// Kind distinguishes page decisions from split outcomes.
type Kind string

const (
	KindPage  Kind = "page"
	KindSplit Kind = "split"
)

// Status summarizes a record for downstream review.
type Status string

const (
	StatusOK            Status = "ok"
	StatusLowConfidence Status = "low_confidence"
	StatusCommitted     Status = "committed"
	StatusFallback      Status = "fallback"
	StatusFailed        Status = "failed"
	StatusDryRun        Status = "dry_run"
)

// Record is one audit entry. Page numbers are 1-based.
type Record struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	File        string    `json:"file"`
	Kind        Kind      `json:"kind"`
	Status      Status    `json:"status"`
	StartPage   int       `json:"start_page"`
	EndPage     int       `json:"end_page"`
	Label       string    `json:"label"`
	Score       int       `json:"score"`
	StrictValid bool      `json:"strict_valid"`
	Method      string    `json:"method,omitempty"`
	Confidence  float64   `json:"confidence"`
	Attempts    int       `json:"attempts"`
	Destination string    `json:"destination,omitempty"`
	Error       string    `json:"error,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// PageRecord builds the audit entry for one page decision.
func PageRecord(jobID, file string, p models.PageResult) Record {
	status := StatusOK
	if p.LowConfidence() {
		status = StatusLowConfidence
	}
	return Record{
		ID:          uuid.NewString(),
		JobID:       jobID,
		File:        file,
		Kind:        KindPage,
		Status:      status,
		StartPage:   p.PageIndex + 1,
		EndPage:     p.PageIndex + 1,
		Label:       p.Label(),
		Score:       p.Winner.Score,
		StrictValid: p.Winner.StrictValid,
		Method:      p.Winner.SourceMethod,
		Confidence:  p.Winner.EngineConfidence,
		Attempts:    p.Attempts,
		Error:       p.Winner.Err,
		ElapsedMs:   p.Elapsed.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}
}

// SplitRecord builds the audit entry for one committed (or failed) split.
func SplitRecord(jobID, file string, u models.SplitUnit) Record {
	var status Status
	switch {
	case u.Status == models.SplitFailed:
		status = StatusFailed
	case u.Status == models.SplitPending:
		status = StatusDryRun
	case u.UsedFallback:
		status = StatusFallback
	default:
		status = StatusCommitted
	}

	var score int
	strict := len(u.Group.Members) > 0
	for _, m := range u.Group.Members {
		if m.Label() == u.Group.Label && m.Winner.Score > score {
			score = m.Winner.Score
		}
		strict = strict && m.Winner.StrictValid
	}

	return Record{
		ID:          uuid.NewString(),
		JobID:       jobID,
		File:        file,
		Kind:        KindSplit,
		Status:      status,
		StartPage:   u.Group.StartPage + 1,
		EndPage:     u.Group.EndPage + 1,
		Label:       u.Group.Label,
		Score:       score,
		StrictValid: strict,
		Attempts:    u.Attempts,
		Destination: u.Destination,
		Error:       u.Err,
		Timestamp:   time.Now().UTC(),
	}
}
