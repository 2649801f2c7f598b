package pipeline

import (
	"time"

	"docsplit/pkg/models"
)

// Timings are the per-stage durations of a job.
type Timings struct {
	Pages    time.Duration `json:"pages"`
	Grouping time.Duration `json:"grouping"`
	Commit   time.Duration `json:"commit"`
}

// JobResult is everything one document produced.
type JobResult struct {
	JobID         string              `json:"job_id"`
	File          string              `json:"file"`
	PageCount     int                 `json:"page_count"`
	Pages         []models.PageResult `json:"pages"`
	Groups        []models.Group      `json:"groups"`
	Splits        []models.SplitUnit  `json:"splits"`
	LowConfidence int                 `json:"low_confidence_pages"`
	FailedSplits  int                 `json:"failed_splits"`
	StartedAt     time.Time           `json:"started_at"`
	Duration      time.Duration       `json:"duration"`
	Timings       Timings             `json:"timings"`
}

// Status summarizes the job: "success", "warning" when pages need review,
// or "error" when a split could not be written.
func (r *JobResult) Status() string {
	switch {
	case r.FailedSplits > 0:
		return "error"
	case r.LowConfidence > 0:
		return "warning"
	default:
		return "success"
	}
}
