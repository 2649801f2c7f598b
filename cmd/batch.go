package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docsplit/internal/logger"
	"docsplit/internal/pipeline"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder]",
	Short: "Split every PDF in a folder",
	Long: `Split all PDF files found in a folder (recursively).

Documents are processed concurrently, up to workers.max_concurrent_jobs at a
time, and every document uses its own page worker pool. A document that fails
does not stop the others; failures are listed in the summary.`,
	Example: `  # Split every PDF under ./scans
  docsplit batch ./scans

  # Plan only, with a JSON report
  docsplit batch ./scans --dry-run --json -o plan.json

  # Limit to one document at a time
  docsplit batch ./scans --jobs 1`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// BatchOutput is the JSON report of a batch run.
type BatchOutput struct {
	Folder    string        `json:"folder"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Warnings  int           `json:"warnings"`
	Errors    int           `json:"errors"`
	Documents []SplitOutput `json:"documents"`
	Failures  []BatchError  `json:"failures,omitempty"`
}

// BatchError is a document that could not be processed.
type BatchError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringP("output", "o", "", "Report file path (default: stdout)")
	batchCmd.Flags().String("output-dir", "", "Directory for split files (overrides output.dir)")
	batchCmd.Flags().Bool("dry-run", false, "Compute groups and file names without writing")
	batchCmd.Flags().Bool("json", false, "Output report as JSON")
	batchCmd.Flags().Int("jobs", 0, "Documents processed concurrently (overrides workers.max_concurrent_jobs)")
	batchCmd.Flags().Int("timeout", 3600, "Processing timeout in seconds for the whole batch")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Get flags
	folderPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	outputDir, _ := cmd.Flags().GetString("output-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	jobs, _ := cmd.Flags().GetInt("jobs")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if jobs > 0 {
		cfg.Workers.MaxConcurrentJobs = jobs
	}

	// Validate folder path
	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	log.Info().
		Str("folder", folderPath).
		Str("output_dir", cfg.Output.Dir).
		Bool("dry_run", dryRun).
		Int("jobs", cfg.Workers.MaxConcurrentJobs).
		Msg("Starting batch split")

	// Find all PDF files, skipping anything already in the output folder
	pdfFiles, err := findPDFFiles(folderPath, cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("failed to find PDF files: %w", err)
	}

	if len(pdfFiles) == 0 {
		fmt.Fprintln(os.Stderr, "No PDF files found in folder.")
		return nil
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	processor, closeAudit, err := createProcessor(ctx, cfg, dryRun, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	fmt.Fprintf(os.Stderr, "Processing %d PDFs, %d at a time...\n", len(pdfFiles), cfg.Workers.MaxConcurrentJobs)

	processedCount := 0
	items := processor.ProcessAll(ctx, pdfFiles, cfg.Workers.MaxConcurrentJobs, func(item pipeline.BatchItem) {
		processedCount++
		status := "error"
		if item.Err == nil {
			status = item.Result.Status()
		}
		fmt.Fprintf(os.Stderr, "[%d/%d] %s - %s", processedCount, len(pdfFiles), filepath.Base(item.File), getStatusEmoji(status))
		if item.Err != nil {
			fmt.Fprintf(os.Stderr, " (%s)", item.Err.Error())
		} else {
			fmt.Fprintf(os.Stderr, " (%d groups)", len(item.Result.Groups))
		}
		fmt.Fprintln(os.Stderr)
	})

	report := BatchOutput{Folder: folderPath, Total: len(items)}
	for _, item := range items {
		if item.Err != nil {
			report.Errors++
			report.Failures = append(report.Failures, BatchError{FileName: filepath.Base(item.File), Error: item.Err.Error()})
			continue
		}
		switch item.Result.Status() {
		case "success":
			report.Succeeded++
		case "warning":
			report.Warnings++
		default:
			report.Errors++
		}
		report.Documents = append(report.Documents, buildSplitOutput(item.Result, dryRun))
	}

	log.Info().
		Int("total", report.Total).
		Int("success", report.Succeeded).
		Int("warnings", report.Warnings).
		Int("errors", report.Errors).
		Msg("Batch split completed")

	var data []byte
	if jsonOutput {
		data, err = json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(formatBatchSummary(report))
	}
	if err := writeOutput(data, outputPath, log); err != nil {
		return err
	}

	if report.Errors > 0 {
		return fmt.Errorf("%d of %d documents had errors", report.Errors, report.Total)
	}
	return nil
}

func formatBatchSummary(report BatchOutput) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString("                 SUMMARY\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	b.WriteString(fmt.Sprintf("Succeeded: %d\n", report.Succeeded))
	if report.Warnings > 0 {
		b.WriteString(fmt.Sprintf("With warnings: %d\n", report.Warnings))
	}
	if report.Errors > 0 {
		b.WriteString(fmt.Sprintf("Errors: %d\n", report.Errors))
	}
	for _, doc := range report.Documents {
		b.WriteString(fmt.Sprintf("\n%s %s (%d pages)\n", getStatusEmoji(doc.Status), doc.FileName, doc.PageCount))
		for _, g := range doc.Groups {
			b.WriteString(fmt.Sprintf("  pages %d-%d  %s -> %s\n", g.StartPage, g.EndPage, displayHeader(g.Header), g.Destination))
		}
		if len(doc.LowConfidencePages) > 0 {
			b.WriteString(fmt.Sprintf("  review pages: %v\n", doc.LowConfidencePages))
		}
	}
	for _, f := range report.Failures {
		b.WriteString(fmt.Sprintf("\n❌ %s: %s\n", f.FileName, f.Error))
	}
	b.WriteString(fmt.Sprintf("\nFinished at %s\n", time.Now().Format(time.RFC3339)))
	return b.String()
}

// findPDFFiles finds all PDF files in the specified folder, skipping skipDir
func findPDFFiles(folderPath, skipDir string) ([]string, error) {
	var pdfFiles []string

	skip, _ := filepath.Abs(skipDir)

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if abs, _ := filepath.Abs(path); skipDir != "" && abs == skip {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(strings.ToLower(info.Name()), ".pdf") {
			pdfFiles = append(pdfFiles, path)
		}

		return nil
	})

	return pdfFiles, err
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(status string) string {
	switch status {
	case "success":
		return "✅"
	case "warning":
		return "⚠️"
	case "error":
		return "❌"
	default:
		return "❓"
	}
}
