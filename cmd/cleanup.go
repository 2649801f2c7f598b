package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"docsplit/internal/commit"
	"docsplit/internal/logger"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove dated output folders older than the retention period",
	Long: `Delete <output_dir>/<YYYY>/<YYYY-MM-DD> folders older than output.retention_days
and remove year folders left empty. Only applies to date-organized output.`,
	Example: `  docsplit cleanup
  docsplit cleanup --days 30 --output-dir ./splits`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().String("output-dir", "", "Output directory (overrides output.dir)")
	cleanupCmd.Flags().Int("days", 0, "Retention in days (overrides output.retention_days)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cleanup")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	outputDir, _ := cmd.Flags().GetString("output-dir")
	days, _ := cmd.Flags().GetInt("days")
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if days > 0 {
		cfg.Output.RetentionDays = days
	}
	if cfg.Output.RetentionDays < 1 {
		return fmt.Errorf("retention must be at least one day, got %d", cfg.Output.RetentionDays)
	}

	organizer := commit.NewOrganizer(cfg.Output.Dir, true)
	removed, err := organizer.Cleanup(cfg.Output.Retention())
	if err != nil {
		log.Error().Err(err).Str("output_dir", cfg.Output.Dir).Msg("Cleanup failed")
		return fmt.Errorf("cleanup failed: %w", err)
	}

	log.Info().
		Str("output_dir", cfg.Output.Dir).
		Int("retention_days", cfg.Output.RetentionDays).
		Int("removed", removed).
		Msg("Cleanup completed")
	fmt.Printf("Removed %d folders older than %d days\n", removed, cfg.Output.RetentionDays)
	return nil
}
