package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PIXSCRAPE_"

// Config holds all configuration options for a harvest run
type Config struct {
	// Pixabay API access
	Pixabay PixabayConfig `yaml:"pixabay" json:"pixabay"`

	// Ordered query table; the output follows this order
	Queries []QueryJob `yaml:"queries" json:"queries"`

	// Scrape behaviour
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output file settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PixabayConfig holds the fixed parameters shared by every search request
type PixabayConfig struct {
	APIKey    string        `yaml:"api_key" json:"-"`
	Profile   string        `yaml:"profile" json:"profile"`
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	ImageType string        `yaml:"image_type" json:"image_type"`
	PerPage   int           `yaml:"per_page" json:"per_page"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// QueryJob pairs a search term with the number of records wanted for it
type QueryJob struct {
	Query  string `yaml:"query" json:"query"`
	Target int    `yaml:"target" json:"target"`
}

// ScrapeConfig holds driver settings
type ScrapeConfig struct {
	// VerifyOutput reads the file back after writing and checks the row count
	VerifyOutput bool `yaml:"verify_output" json:"verify_output"`
}

// RateLimitConfig holds request pacing configuration
type RateLimitConfig struct {
	// RequestsPerMinute of 0 disables pacing
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds output file configuration
type OutputConfig struct {
	Path   string   `yaml:"path" json:"path"`
	Fields []string `yaml:"fields" json:"fields"`
}

// MetricsConfig holds the optional metrics listener address
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultQueries is the query table used when none is configured
func DefaultQueries() []QueryJob {
	return []QueryJob{
		{Query: "yellow flowers", Target: 4000},
		{Query: "nature", Target: 4000},
		{Query: "lion", Target: 4000},
		{Query: "laptop", Target: 4000},
		{Query: "clothes", Target: 4000},
		{Query: "cat", Target: 4000},
		{Query: "money", Target: 4000},
	}
}

// DefaultFields is the column list of the output file
func DefaultFields() []string {
	return []string{"tags", "views", "downloads", "likes", "user", "comments"}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pixabay: PixabayConfig{
			Profile:   "default",
			BaseURL:   "https://pixabay.com/api/",
			ImageType: "photo",
			PerPage:   200,
			Timeout:   30 * time.Second,
			UserAgent: "pixscrape/1.0",
		},
		Queries: DefaultQueries(),
		Scrape: ScrapeConfig{
			VerifyOutput: true,
		},
		RateLimit: RateLimitConfig{
			// Pixabay allows 100 requests per 60 seconds
			RequestsPerMinute: 100,
		},
		Output: OutputConfig{
			Path:   "images.csv",
			Fields: DefaultFields(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if apiKey := os.Getenv(envPrefix + "API_KEY"); apiKey != "" {
		c.Pixabay.APIKey = apiKey
	}
	if profile := os.Getenv(envPrefix + "PROFILE"); profile != "" {
		c.Pixabay.Profile = profile
	}
	if baseURL := os.Getenv(envPrefix + "BASE_URL"); baseURL != "" {
		c.Pixabay.BaseURL = baseURL
	}
	if imageType := os.Getenv(envPrefix + "IMAGE_TYPE"); imageType != "" {
		c.Pixabay.ImageType = imageType
	}
	if perPage := os.Getenv(envPrefix + "PER_PAGE"); perPage != "" {
		val, err := strconv.Atoi(perPage)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sPER_PAGE: %w", envPrefix, err))
		} else {
			c.Pixabay.PerPage = val
		}
	}
	if timeout := os.Getenv(envPrefix + "TIMEOUT"); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTIMEOUT: %w", envPrefix, err))
		} else {
			c.Pixabay.Timeout = val
		}
	}

	if rpm := os.Getenv(envPrefix + "REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREQUESTS_PER_MINUTE: %w", envPrefix, err))
		} else {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if verify := os.Getenv(envPrefix + "VERIFY_OUTPUT"); verify != "" {
		val, err := strconv.ParseBool(verify)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sVERIFY_OUTPUT: %w", envPrefix, err))
		} else {
			c.Scrape.VerifyOutput = val
		}
	}

	if output := os.Getenv(envPrefix + "OUTPUT"); output != "" {
		c.Output.Path = output
	}
	if fields := os.Getenv(envPrefix + "FIELDS"); fields != "" {
		c.Output.Fields = splitList(fields)
	}

	if addr := os.Getenv(envPrefix + "METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}

	if logLevel := os.Getenv(envPrefix + "LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv(envPrefix + "LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"pixscrape.yaml",
		"pixscrape.yml",
		".pixscrape.yaml",
		filepath.Join(home, ".config", "pixscrape", "config.yaml"),
		filepath.Join(home, ".pixscrape.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The API key is not checked
// here because it may still be resolved from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Pixabay.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	} else if u, err := url.Parse(c.Pixabay.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid base URL: %w", err))
	} else if u.Host == "" {
		errs = append(errs, errors.New("base URL must include a host"))
	}
	if !validImageTypes[strings.ToLower(c.Pixabay.ImageType)] {
		errs = append(errs, fmt.Errorf("invalid image type %q", c.Pixabay.ImageType))
	}
	if c.Pixabay.PerPage < 3 || c.Pixabay.PerPage > 200 {
		errs = append(errs, fmt.Errorf("per page must be between 3 and 200, got %d", c.Pixabay.PerPage))
	}
	if c.Pixabay.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Output.Path == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if err := ValidateFields(c.Output.Fields); err != nil {
		errs = append(errs, err)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

var validImageTypes = map[string]bool{
	"all": true, "photo": true, "illustration": true, "vector": true,
}

// ValidateFields checks that an output column list is non-empty and holds
// distinct, non-empty names.
func ValidateFields(fields []string) error {
	if len(fields) == 0 {
		return errors.New("at least one output field is required")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" {
			return errors.New("output field names cannot be empty")
		}
		if seen[f] {
			return fmt.Errorf("duplicate output field %q", f)
		}
		seen[f] = true
	}
	return nil
}

// Save saves the configuration to a file. The API key is never written.
func (c *Config) Save(path string) error {
	clean := *c
	clean.Pixabay.APIKey = ""

	data, err := yaml.Marshal(&clean)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.Pixabay.APIKey = apiKey
	}
	if profile, ok := flags["profile"].(string); ok && profile != "" {
		c.Pixabay.Profile = profile
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Pixabay.BaseURL = baseURL
	}
	if imageType, ok := flags["image-type"].(string); ok && imageType != "" {
		c.Pixabay.ImageType = imageType
	}
	if perPage, ok := flags["per-page"].(int); ok && perPage > 0 {
		c.Pixabay.PerPage = perPage
	}
	if queries, ok := flags["queries"].([]QueryJob); ok && len(queries) > 0 {
		c.Queries = queries
	}
	if verify, ok := flags["verify-output"].(bool); ok {
		c.Scrape.VerifyOutput = verify
	}
	if rpm, ok := flags["requests-per-minute"].(int); ok && rpm >= 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.Path = output
	}
	if fields, ok := flags["fields"].([]string); ok && len(fields) > 0 {
		c.Output.Fields = fields
	}
	if addr, ok := flags["metrics-addr"].(string); ok && addr != "" {
		c.Metrics.Addr = addr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// ParseQueryJob parses a "term=count" pair. The last '=' separates the
// count so terms may contain '=' themselves.
func ParseQueryJob(s string) (QueryJob, error) {
	idx := strings.LastIndex(s, "=")
	if idx < 0 {
		return QueryJob{}, fmt.Errorf("query %q: expected term=count", s)
	}
	target, err := strconv.Atoi(strings.TrimSpace(s[idx+1:]))
	if err != nil {
		return QueryJob{}, fmt.Errorf("query %q: invalid count: %w", s, err)
	}
	return QueryJob{Query: strings.TrimSpace(s[:idx]), Target: target}, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are not an error
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pixscrape.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
