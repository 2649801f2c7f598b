package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docsplit/internal/document"
	"docsplit/internal/logger"
	"docsplit/internal/ocr"
	"docsplit/internal/pipeline"
	"docsplit/pkg/models"
)

var splitCmd = &cobra.Command{
	Use:   "split [pdf-file]",
	Short: "Split a scanned PDF into one file per page header",
	Long: `Read the header of every page, group consecutive pages with the same header
and write each group to its own PDF.

Pages whose header cannot be read with confidence are kept with their
neighbors when the surrounding pages make the intended header clear, and are
otherwise written as their own group. Low-confidence pages are listed in the
output so they can be reviewed.

Requirements:
  tesseract (libtesseract) - primary recognition engine
  pdftoppm (poppler-utils) - page rendering, configurable via DOCSPLIT_OCR_RASTERIZER_BIN

Optional secondary engine (DOCSPLIT_OCR_FALLBACK_ENGINE=vision|documentai):
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Split scan.pdf into ./output/<YYYY>/<YYYY-MM-DD>/
  docsplit split scan.pdf

  # Show the planned files without writing anything
  docsplit split scan.pdf --dry-run

  # Write into a specific folder and save a JSON report
  docsplit split scan.pdf --output-dir ./splits --json -o report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

// SplitOutput represents the JSON output structure when --json flag is used
type SplitOutput struct {
	FileName           string        `json:"file_name"`
	JobID              string        `json:"job_id"`
	PageCount          int           `json:"page_count"`
	Status             string        `json:"status"`
	DryRun             bool          `json:"dry_run"`
	Groups             []GroupOutput `json:"groups"`
	LowConfidencePages []int         `json:"low_confidence_pages,omitempty"`
	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration string        `json:"processing_duration"`
}

// GroupOutput describes one written (or planned) split.
type GroupOutput struct {
	Header       string `json:"header"`
	StartPage    int    `json:"start_page"`
	EndPage      int    `json:"end_page"`
	Destination  string `json:"destination"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts,omitempty"`
	UsedFallback bool   `json:"used_fallback,omitempty"`
	Error        string `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringP("output", "o", "", "Report file path (default: stdout)")
	splitCmd.Flags().String("output-dir", "", "Directory for split files (overrides output.dir)")
	splitCmd.Flags().Bool("dry-run", false, "Compute groups and file names without writing")
	splitCmd.Flags().Bool("json", false, "Output report as JSON")
	splitCmd.Flags().Bool("verbose", false, "Show per-page progress")
	splitCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runSplit(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("split")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Get flags
	outputPath, _ := cmd.Flags().GetString("output")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	pdfPath := args[0]
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}

	log.Info().
		Str("file", pdfPath).
		Str("output_dir", cfg.Output.Dir).
		Bool("dry_run", dryRun).
		Int("timeout", timeoutSecs).
		Msg("Starting split")

	// Validate and get file info
	if _, err := validatePDFFile(pdfPath, log); err != nil {
		return err
	}

	// Create context with timeout and signal handling
	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	processor, closeAudit, err := createProcessor(ctx, cfg, dryRun, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	if verbose {
		processor = processor.WithProgress(func(done, total int, page models.PageResult) {
			fmt.Fprintf(os.Stderr, "[%d/%d] page %d - %s (%d)\n",
				done, total, page.PageIndex+1, displayHeader(page.Label()), page.Winner.Score)
		})
	}

	startTime := time.Now()
	result, err := processor.Process(ctx, pdfPath)
	if err != nil {
		return handleSplitError(err, log)
	}

	log.Info().
		Int("page_count", result.PageCount).
		Int("groups", len(result.Groups)).
		Int("low_confidence", result.LowConfidence).
		Dur("duration", time.Since(startTime)).
		Msg("Split completed")

	if err := outputSplitResults(result, outputPath, jsonOutput, dryRun, log); err != nil {
		return err
	}
	if result.FailedSplits > 0 {
		return fmt.Errorf("%d of %d splits could not be written", result.FailedSplits, len(result.Splits))
	}
	return nil
}

// validatePDFFile checks if the file exists, is readable, and appears to be a PDF
func validatePDFFile(pdfPath string, log zerolog.Logger) (os.FileInfo, error) {
	// Check if file exists and get info
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("PDF file not found")
			return nil, fmt.Errorf("PDF file not found: %s", pdfPath)
		}
		if os.IsPermission(err) {
			log.Error().
				Str("file", pdfPath).
				Msg("Permission denied accessing PDF file")
			return nil, fmt.Errorf("permission denied accessing PDF file: %s", pdfPath)
		}
		return nil, fmt.Errorf("error accessing PDF file: %w", err)
	}

	// Check if it's a regular file
	if !fileInfo.Mode().IsRegular() {
		log.Error().
			Str("file", pdfPath).
			Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", pdfPath)
	}

	// Check file extension (basic validation)
	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().
			Str("file", pdfPath).
			Msg("PDF file is empty")
		return nil, fmt.Errorf("PDF file is empty: %s", pdfPath)
	}

	return fileInfo, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
			// Context completed normally
		}
	}()

	return ctx, cancel
}

// handleSplitError provides user-friendly error messages for job failures
func handleSplitError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Split failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout or lowering ocr.max_attempts")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	case errors.Is(err, document.ErrRasterizerUnavailable):
		return fmt.Errorf("pdftoppm not found. Install poppler-utils or set DOCSPLIT_OCR_RASTERIZER_BIN: %w", err)
	case errors.Is(err, document.ErrInvalidDocument):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity: %w", err)
	case errors.Is(err, pipeline.ErrNoPages):
		return fmt.Errorf("the PDF has no pages")
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials are required for the configured fallback engine: %w", err)
	case strings.Contains(errStr, "primary engine"):
		return fmt.Errorf("Tesseract could not be initialized. Check that tesseract and the configured language data (ocr.language) are installed: %w", err)
	default:
		return fmt.Errorf("split failed: %w", err)
	}
}

// outputSplitResults formats and outputs the split report
func outputSplitResults(result *pipeline.JobResult, outputPath string, jsonOutput, dryRun bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		data, err := json.MarshalIndent(buildSplitOutput(result, dryRun), "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = append(data, '\n')
	} else {
		outputData = []byte(formatSplitReport(result, dryRun))
	}

	return writeOutput(outputData, outputPath, log)
}

func buildSplitOutput(result *pipeline.JobResult, dryRun bool) SplitOutput {
	out := SplitOutput{
		FileName:           filepath.Base(result.File),
		JobID:              result.JobID,
		PageCount:          result.PageCount,
		Status:             result.Status(),
		DryRun:             dryRun,
		ProcessedAt:        result.StartedAt,
		ProcessingDuration: result.Duration.String(),
	}
	for _, unit := range result.Splits {
		out.Groups = append(out.Groups, GroupOutput{
			Header:       unit.Group.Label,
			StartPage:    unit.Group.StartPage + 1,
			EndPage:      unit.Group.EndPage + 1,
			Destination:  unit.Destination,
			Status:       string(unit.Status),
			Attempts:     unit.Attempts,
			UsedFallback: unit.UsedFallback,
			Error:        unit.Err,
		})
	}
	for _, page := range result.Pages {
		if page.LowConfidence() {
			out.LowConfidencePages = append(out.LowConfidencePages, page.PageIndex+1)
		}
	}
	return out
}

func formatSplitReport(result *pipeline.JobResult, dryRun bool) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("=== Split Results for %s ===\n", filepath.Base(result.File)))
	output.WriteString(fmt.Sprintf("Pages: %d\n", result.PageCount))
	output.WriteString(fmt.Sprintf("Groups: %d\n", len(result.Groups)))
	output.WriteString(fmt.Sprintf("Processing time: %v\n", result.Duration.Round(time.Millisecond)))
	if dryRun {
		output.WriteString("Dry run: no files written\n")
	}
	output.WriteString("\n")

	for _, unit := range result.Splits {
		output.WriteString(fmt.Sprintf("%s pages %d-%d  %s -> %s",
			getSplitStatusEmoji(unit),
			unit.Group.StartPage+1,
			unit.Group.EndPage+1,
			displayHeader(unit.Group.Label),
			unit.Destination))
		if unit.UsedFallback {
			output.WriteString(" (fallback name)")
		}
		if unit.Err != "" {
			output.WriteString(fmt.Sprintf(" (%s)", unit.Err))
		}
		output.WriteString("\n")
	}

	var review []string
	for _, page := range result.Pages {
		if page.LowConfidence() {
			review = append(review, fmt.Sprintf("%d", page.PageIndex+1))
		}
	}
	if len(review) > 0 {
		output.WriteString(fmt.Sprintf("\n⚠️  Pages to review: %s\n", strings.Join(review, ", ")))
	}
	return output.String()
}

// writeOutput writes data to outputPath or stdout
func writeOutput(data []byte, outputPath string, log zerolog.Logger) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Report written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// getSplitStatusEmoji returns an emoji for the split status
func getSplitStatusEmoji(unit models.SplitUnit) string {
	switch {
	case unit.Status == models.SplitFailed:
		return "❌"
	case unit.Status == models.SplitPending:
		return "📝"
	case unit.UsedFallback:
		return "⚠️"
	default:
		return "✅"
	}
}

func displayHeader(label string) string {
	if label == "" {
		return "(no header)"
	}
	return label
}
