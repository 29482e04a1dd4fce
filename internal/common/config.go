package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Browser     BrowserConfig   `toml:"browser"`
	Downloads   DownloadsConfig `toml:"downloads"`
	JazzHR      JazzHRConfig    `toml:"jazzhr"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gt=0,lte=65535"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format     string   `toml:"format"` // "json" or "text"
	Output     []string `toml:"output"` // "stdout", "file"
	TimeFormat string   `toml:"time_format"`
}

// BrowserConfig contains the browser automation settings. The durations are
// tuned for JazzHR's candidate list, which loads rows as the page scrolls.
type BrowserConfig struct {
	BaseURL             string        `toml:"base_url" validate:"url"`
	Headless            bool          `toml:"headless"`
	UserAgent           string        `toml:"user_agent"`
	PageSettle          time.Duration `toml:"page_settle"`           // wait after navigation before inspecting the DOM
	ScrollSettle        time.Duration `toml:"scroll_settle"`         // wait after each scroll for rows to load
	ScrollMaxIterations int           `toml:"scroll_max_iterations"` // hard cap on scroll passes
	ScrollStableSamples int           `toml:"scroll_stable_samples"` // consecutive unchanged heights before stopping
	LoginWait           time.Duration `toml:"login_wait"`            // max wait for interactive login
	LoginPollInterval   time.Duration `toml:"login_poll_interval"`
	LoginLogInterval    time.Duration `toml:"login_log_interval"` // how often to log while waiting for login
	DownloadWait        time.Duration `toml:"download_wait"`      // max wait for a triggered download to land
	DownloadPoll        time.Duration `toml:"download_poll"`
	FallbackScanWindow  time.Duration `toml:"fallback_scan_window"` // age cutoff when scanning the browser download dir
	CandidateDelay      time.Duration `toml:"candidate_delay"`      // pacing delay between candidates
	EmptyRetryDelay     time.Duration `toml:"empty_retry_delay"`    // wait before retrying an empty enumeration
}

// DownloadsConfig controls where resumes land and how long run records are kept.
type DownloadsConfig struct {
	OutputDir     string        `toml:"output_dir"`
	Retention     time.Duration `toml:"retention"`      // how long terminal runs stay in the registry
	PruneSchedule string        `toml:"prune_schedule"` // cron spec for the registry janitor
}

// JazzHRConfig contains the REST API client settings.
type JazzHRConfig struct {
	APIKey            string        `toml:"api_key"`
	BaseURL           string        `toml:"base_url" validate:"url"`
	RequestsPerMinute int           `toml:"requests_per_minute" validate:"gt=0"`
	RequestTimeout    time.Duration `toml:"request_timeout"`
	MaxAttempts       int           `toml:"max_attempts" validate:"gte=1"`
}

// NewDefaultConfig returns the configuration with all defaults applied
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Browser: BrowserConfig{
			BaseURL:             "https://app.jazz.co",
			Headless:            false,
			PageSettle:          3 * time.Second,
			ScrollSettle:        2 * time.Second,
			ScrollMaxIterations: 50,
			ScrollStableSamples: 3,
			LoginWait:           10 * time.Minute,
			LoginPollInterval:   3 * time.Second,
			LoginLogInterval:    15 * time.Second,
			DownloadWait:        10 * time.Second,
			DownloadPoll:        500 * time.Millisecond,
			FallbackScanWindow:  2 * time.Minute,
			CandidateDelay:      2 * time.Second,
			EmptyRetryDelay:     10 * time.Second,
		},
		Downloads: DownloadsConfig{
			OutputDir:     "./resumes",
			Retention:     24 * time.Hour,
			PruneSchedule: "@every 10m",
		},
		JazzHR: JazzHRConfig{
			BaseURL:           "https://api.resumatorapi.com/v1",
			RequestsPerMinute: 80,
			RequestTimeout:    120 * time.Second,
			MaxAttempts:       3,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: defaults -> file1 -> file2 -> ... -> env
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HARVEST_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("HARVEST_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("HARVEST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("HARVEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("HARVEST_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Browser configuration
	if baseURL := os.Getenv("HARVEST_BROWSER_BASE_URL"); baseURL != "" {
		config.Browser.BaseURL = baseURL
	}
	if headless := os.Getenv("HARVEST_BROWSER_HEADLESS"); headless != "" {
		if h, err := strconv.ParseBool(headless); err == nil {
			config.Browser.Headless = h
		}
	}
	if userAgent := os.Getenv("HARVEST_BROWSER_USER_AGENT"); userAgent != "" {
		config.Browser.UserAgent = userAgent
	}

	// Downloads configuration
	if outputDir := os.Getenv("HARVEST_OUTPUT_DIR"); outputDir != "" {
		config.Downloads.OutputDir = outputDir
	}

	// JazzHR API configuration
	if apiKey := os.Getenv("JAZZHR_API_KEY"); apiKey != "" {
		config.JazzHR.APIKey = apiKey
	}
	if baseURL := os.Getenv("JAZZHR_BASE_URL"); baseURL != "" {
		config.JazzHR.BaseURL = baseURL
	}
}

// ApplyFlagOverrides applies CLI flag overrides to config (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string, headless *bool) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
	if headless != nil {
		config.Browser.Headless = *headless
	}
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
