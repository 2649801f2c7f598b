package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"docsplit/internal/header"
	"docsplit/internal/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate [text...]",
	Short: "Show how header strings are normalized and scored",
	Long: `Run the header validator on one or more strings and print the normalized
form, segments, structural score and whether the serial passes the strict
gate. Useful for tuning the header.* configuration against real OCR output.

With --compare the first string is compared against every other string
using the grouping rules (exact or fuzzy match and close-serial test).`,
	Example: `  docsplit validate "B-HK-WFE-S17975643" "8HK WFE S1797S643"
  docsplit validate --compare "B-E-UUY-R40925274" "B-E-UUY-R409252745"
  DOCSPLIT_HEADER_SERIAL_DIGITS=7 docsplit validate --json "B-HK-S1234567"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

// ValidationOutput is the JSON form of one validation.
type ValidationOutput struct {
	Raw         string   `json:"raw"`
	Normalized  string   `json:"normalized"`
	Segments    []string `json:"segments"`
	Score       int      `json:"score"`
	StrictValid bool     `json:"strict_valid"`
	NoiseChars  int      `json:"noise_chars"`
}

// ComparisonOutput is the JSON form of one pairwise comparison.
type ComparisonOutput struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Similarity  float64 `json:"similarity"`
	Match       bool    `json:"match"`
	CloseSerial bool    `json:"close_serial"`
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().Bool("json", false, "Output as JSON")
	validateCmd.Flags().Bool("compare", false, "Compare the first string against the others")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	compare, _ := cmd.Flags().GetBool("compare")

	validator := header.NewValidator(cfg.Header)

	results := make([]ValidationOutput, len(args))
	for i, text := range args {
		r := validator.Validate(text)
		results[i] = ValidationOutput{
			Raw:         r.Raw,
			Normalized:  r.Normalized,
			Segments:    r.Segments,
			Score:       r.Score,
			StrictValid: r.StrictValid,
			NoiseChars:  r.NoiseChars,
		}
	}

	var comparisons []ComparisonOutput
	if compare && len(results) > 1 {
		threshold := cfg.Grouping.SimilarityThreshold
		a := results[0].Normalized
		for _, other := range results[1:] {
			b := other.Normalized
			comparisons = append(comparisons, ComparisonOutput{
				A:           a,
				B:           b,
				Similarity:  header.Similarity(a, b),
				Match:       validator.Match(a, b, threshold, cfg.Grouping.SerialBasedMatching),
				CloseSerial: validator.CloseSerial(a, b, cfg.Grouping.MaxSerialEdits),
			})
		}
	}

	log.Debug().Int("inputs", len(args)).Bool("compare", compare).Msg("Validation completed")

	if jsonOutput {
		payload := map[string]interface{}{"results": results}
		if comparisons != nil {
			payload["comparisons"] = comparisons
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	}

	for _, r := range results {
		mark := "❌"
		if r.StrictValid {
			mark = "✅"
		}
		fmt.Printf("%s %q\n", mark, r.Raw)
		fmt.Printf("   normalized: %s\n", displayHeader(r.Normalized))
		fmt.Printf("   segments:   %s\n", strings.Join(r.Segments, " | "))
		fmt.Printf("   score:      %d (noise chars: %d)\n", r.Score, r.NoiseChars)
	}
	for _, c := range comparisons {
		fmt.Printf("\n%s vs %s\n", displayHeader(c.A), displayHeader(c.B))
		fmt.Printf("   similarity:   %.3f\n", c.Similarity)
		fmt.Printf("   match:        %t\n", c.Match)
		fmt.Printf("   close serial: %t\n", c.CloseSerial)
	}
	return nil
}
