package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"docsplit/internal/config"
	"docsplit/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "docsplit",
	Short: "docsplit - split scanned PDFs by their page headers",
	Long: `docsplit reads the structured header printed at the top of every page of a
scanned multi-page PDF (for example "B-HK-WFE-S17975643"), groups consecutive
pages that belong to the same header and writes each group to its own file.

Headers are read from the embedded text layer when present and otherwise
recognized with Tesseract, escalating through render scales and image
variants. Google Cloud Vision or Document AI can be configured as a
secondary engine for pages Tesseract cannot settle.

Configuration comes from defaults, an optional config file (--config or
./docsplit.yaml) and DOCSPLIT_* environment variables.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("docsplit executed")

		fmt.Println("Welcome to docsplit!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, toml or json; default ./docsplit.yaml, env DOCSPLIT_CONFIG)")
}

// loadConfig loads the configuration named by --config or DOCSPLIT_CONFIG
// and re-initializes the logger from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("DOCSPLIT_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
