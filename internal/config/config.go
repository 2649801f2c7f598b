package config

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docsplit/internal/audit"
	"docsplit/internal/commit"
	"docsplit/internal/document"
	"docsplit/internal/extract"
	"docsplit/internal/grouping"
	"docsplit/internal/header"
	"docsplit/internal/logger"
	"docsplit/internal/ocr"
	"docsplit/internal/preprocess"
)

// Config holds all application configuration.
type Config struct {
	ROI       document.Rect    `mapstructure:"roi"`
	Header    header.Grammar   `mapstructure:"header"`
	OCR       OCRConfig        `mapstructure:"ocr"`
	Google    GoogleConfig     `mapstructure:"google"`
	Selection extract.Weights  `mapstructure:"selection"`
	Grouping  grouping.Options `mapstructure:"grouping"`
	Output    commit.Options   `mapstructure:"output"`
	Audit     audit.Options    `mapstructure:"audit"`
	Workers   WorkersConfig    `mapstructure:"workers"`
	Log       LogConfig        `mapstructure:"log"`
}

// OCRConfig holds candidate generation settings.
type OCRConfig struct {
	RenderScales    []float64     `mapstructure:"render_scales"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	EarlyExitScore  int           `mapstructure:"early_exit_score"`
	EscalationScore int           `mapstructure:"escalation_score"`
	Segmentation    []int         `mapstructure:"segmentation"`
	Language        string        `mapstructure:"language"`
	Whitelist       string        `mapstructure:"whitelist"`
	BlackFilter     bool          `mapstructure:"black_filter"`
	BlackThreshold  int           `mapstructure:"black_threshold"`
	Variants        []string      `mapstructure:"variants"`
	FallbackEngine  string        `mapstructure:"fallback_engine"`
	RasterizerBin   string        `mapstructure:"rasterizer_bin"`
	CloudTimeout    time.Duration `mapstructure:"cloud_timeout"`
}

// GoogleConfig holds Google Cloud settings for the secondary engines.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.
type GoogleConfig struct {
	Project          string `mapstructure:"project"`
	Location         string `mapstructure:"location"`
	ProcessorID      string `mapstructure:"processor_id"`
	ProcessorVersion string `mapstructure:"processor_version"`
}

// WorkersConfig holds concurrency limits.
type WorkersConfig struct {
	PageWorkers       int `mapstructure:"page_workers"`
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
	Output     string `mapstructure:"output"`
}

// Load reads configuration from defaults, an optional config file and
// environment variables with the DOCSPLIT_ prefix, in increasing order of
// precedence. An empty path looks for docsplit.{yaml,toml,json} in the
// working directory and carries on without one.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCSPLIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("docsplit")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	// ROI defaults (percent of the page)
	v.SetDefault("roi.top", 0)
	v.SetDefault("roi.left", 0)
	v.SetDefault("roi.width", 100)
	v.SetDefault("roi.height", 15)

	// Header grammar defaults
	g := header.DefaultGrammar()
	v.SetDefault("header.separator", g.Separator)
	v.SetDefault("header.prefix_length", g.PrefixLength)
	v.SetDefault("header.region_min", g.RegionMin)
	v.SetDefault("header.region_max", g.RegionMax)
	v.SetDefault("header.code_min", g.CodeMin)
	v.SetDefault("header.code_max", g.CodeMax)
	v.SetDefault("header.serial_min", g.SerialMin)
	v.SetDefault("header.serial_max", g.SerialMax)
	v.SetDefault("header.serial_prefixes", g.SerialPrefixes)
	v.SetDefault("header.serial_digits", g.SerialDigits)
	v.SetDefault("header.invalid_serial_cap", g.InvalidCap)
	v.SetDefault("header.ambiguity_repair", g.AmbiguityRepair)
	v.SetDefault("header.weights.structure4", g.Weights.Structure4)
	v.SetDefault("header.weights.structure3", g.Weights.Structure3)
	v.SetDefault("header.weights.bad_structure", g.Weights.BadStructure)
	v.SetDefault("header.weights.segment_ok", g.Weights.SegmentOK)
	v.SetDefault("header.weights.segment_bad", g.Weights.SegmentBad)
	v.SetDefault("header.weights.serial_ok", g.Weights.SerialOK)
	v.SetDefault("header.weights.serial_bad", g.Weights.SerialBad)
	v.SetDefault("header.weights.serial_ideal", g.Weights.SerialIdeal)
	v.SetDefault("header.weights.serial_bad_tail", g.Weights.SerialBadTail)
	v.SetDefault("header.weights.serial_bad_prefix", g.Weights.SerialBadPrefix)
	v.SetDefault("header.weights.noise_per_char", g.Weights.NoisePerChar)

	// OCR defaults
	v.SetDefault("ocr.render_scales", []float64{2, 3, 6})
	v.SetDefault("ocr.max_attempts", 16)
	v.SetDefault("ocr.early_exit_score", 90)
	v.SetDefault("ocr.escalation_score", 70)
	v.SetDefault("ocr.segmentation", []int{int(ocr.SegmentSingleLine), int(ocr.SegmentBlock)})
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.whitelist", "A-Z0-9-")
	v.SetDefault("ocr.black_filter", true)
	v.SetDefault("ocr.black_threshold", 100)
	v.SetDefault("ocr.variants", preprocess.DefaultVariants)
	v.SetDefault("ocr.fallback_engine", "")
	v.SetDefault("ocr.rasterizer_bin", "pdftoppm")
	v.SetDefault("ocr.cloud_timeout", "30s")

	// Google defaults
	v.SetDefault("google.project", "")
	v.SetDefault("google.location", "us")
	v.SetDefault("google.processor_id", "")
	v.SetDefault("google.processor_version", "")

	// Selection defaults
	w := extract.DefaultWeights()
	v.SetDefault("selection.score_weight", w.Score)
	v.SetDefault("selection.confidence_weight", w.Confidence)
	v.SetDefault("selection.frequency_weight", w.Frequency)

	// Grouping defaults
	gr := grouping.DefaultOptions()
	v.SetDefault("grouping.similarity_threshold", gr.SimilarityThreshold)
	v.SetDefault("grouping.serial_based_matching", gr.SerialBasedMatching)
	v.SetDefault("grouping.outlier_correction", gr.OutlierCorrection)
	v.SetDefault("grouping.max_serial_edits", gr.MaxSerialEdits)
	v.SetDefault("grouping.material_score_gap", gr.MaterialScoreGap)

	// Output defaults
	out := commit.DefaultOptions()
	v.SetDefault("output.dir", out.Dir)
	v.SetDefault("output.naming_pattern", out.Pattern)
	v.SetDefault("output.organize_by_date", out.OrganizeByDate)
	v.SetDefault("output.retention_days", out.RetentionDays)
	v.SetDefault("output.max_filename_length", out.MaxFilenameLength)
	v.SetDefault("output.space_replacement", out.SpaceReplacement)
	v.SetDefault("output.commit_retries", out.Retries)
	v.SetDefault("output.commit_backoff", out.Backoff.String())
	v.SetDefault("output.max_fallback_names", out.MaxFallbackNames)

	// Audit defaults
	au := audit.DefaultOptions()
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.url", "")
	v.SetDefault("audit.dsn", "")
	v.SetDefault("audit.table", au.Table)
	v.SetDefault("audit.sheet_url", "")
	v.SetDefault("audit.sheet_name", au.SheetName)
	v.SetDefault("audit.queue_size", au.QueueSize)
	v.SetDefault("audit.timeout", au.Timeout.String())
	v.SetDefault("audit.breaker_threshold", au.BreakerThreshold)
	v.SetDefault("audit.breaker_cooldown", au.BreakerCooldown.String())

	// Worker defaults
	v.SetDefault("workers.page_workers", 0)
	v.SetDefault("workers.max_concurrent_jobs", 2)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.time_format", time.RFC3339)
	v.SetDefault("log.output", "stdout")
}

func (c *Config) validate() error {
	if err := c.ROI.Validate(); err != nil {
		return err
	}
	if len(c.OCR.RenderScales) == 0 {
		return fmt.Errorf("ocr.render_scales must not be empty")
	}
	if !sort.Float64sAreSorted(c.OCR.RenderScales) || c.OCR.RenderScales[0] <= 0 {
		return fmt.Errorf("ocr.render_scales must be positive and ascending")
	}
	if c.OCR.MaxAttempts < 1 {
		return fmt.Errorf("ocr.max_attempts must be at least 1")
	}
	if len(c.OCR.Segmentation) == 0 {
		return fmt.Errorf("ocr.segmentation must not be empty")
	}
	if c.OCR.BlackThreshold < 0 || c.OCR.BlackThreshold > 255 {
		return fmt.Errorf("ocr.black_threshold must be within 0-255")
	}
	switch c.OCR.FallbackEngine {
	case "", ocr.EngineVision:
	case ocr.EngineDocumentAI:
		if c.Google.Project == "" || c.Google.ProcessorID == "" {
			return fmt.Errorf("google.project and google.processor_id are required for the documentai engine")
		}
	default:
		return fmt.Errorf("unknown ocr.fallback_engine %q", c.OCR.FallbackEngine)
	}
	if c.Header.SerialDigits < 1 {
		return fmt.Errorf("header.serial_digits must be at least 1")
	}
	if len(c.Header.SerialPrefixes) == 0 {
		return fmt.Errorf("header.serial_prefixes must not be empty")
	}
	if c.Grouping.SimilarityThreshold <= 0 || c.Grouping.SimilarityThreshold > 1 {
		return fmt.Errorf("grouping.similarity_threshold must be within (0, 1]")
	}
	if c.Output.Retries < 1 {
		return fmt.Errorf("output.commit_retries must be at least 1")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Audit.Enabled && c.Audit.URL == "" && c.Audit.DSN == "" && c.Audit.SheetURL == "" {
		return fmt.Errorf("audit.url, audit.dsn or audit.sheet_url is required when audit is enabled")
	}
	if c.Workers.PageWorkers < 0 || c.Workers.MaxConcurrentJobs < 1 {
		return fmt.Errorf("workers.page_workers must be >= 0 and workers.max_concurrent_jobs >= 1")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

// PreprocessOptions returns the preprocessing variant settings.
func (c *Config) PreprocessOptions() preprocess.Options {
	return preprocess.Options{
		Variants:       c.OCR.Variants,
		BlackFilter:    c.OCR.BlackFilter,
		BlackThreshold: uint8(c.OCR.BlackThreshold),
	}
}

// Policy returns the candidate generation budget.
func (c *Config) Policy() extract.Policy {
	segs := make([]ocr.Segmentation, len(c.OCR.Segmentation))
	for i, s := range c.OCR.Segmentation {
		segs[i] = ocr.Segmentation(s)
	}
	return extract.Policy{
		Scales:        c.OCR.RenderScales,
		Segmentations: segs,
		MaxAttempts:   c.OCR.MaxAttempts,
	}
}

// Languages splits the Tesseract language setting ("eng+deu").
func (c *Config) Languages() []string {
	var langs []string
	for _, l := range strings.Split(c.OCR.Language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	return langs
}

// CloudSettings returns the settings for the secondary cloud engines.
func (c *Config) CloudSettings() ocr.CloudSettings {
	return ocr.CloudSettings{
		Vision: ocr.VisionOptions{
			LanguageHints: c.Languages(),
			Timeout:       c.OCR.CloudTimeout,
		},
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:        c.Google.Project,
			Location:         c.Google.Location,
			ProcessorID:      c.Google.ProcessorID,
			ProcessorVersion: c.Google.ProcessorVersion,
			Timeout:          c.OCR.CloudTimeout,
		},
	}
}

// PageWorkers returns the page worker count, defaulting to the CPU count.
func (c *Config) PageWorkers() int {
	if c.Workers.PageWorkers > 0 {
		return c.Workers.PageWorkers
	}
	return runtime.NumCPU()
}
