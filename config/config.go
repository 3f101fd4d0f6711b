package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// LetterPlaceholder is replaced by the partition letter in ListingURLTemplate.
const LetterPlaceholder = "{letter}"

// Drivers understood by the scraper.
const (
	DriverBrowser = "browser"
	DriverHTTP    = "http"
)

// Config holds scraper configuration.
type Config struct {
	ListingURLTemplate string
	DetailURLPrefix    string
	Letters            []string
	SchemaFile         string

	Driver         string // browser or http
	Workers        int
	Timeout        time.Duration
	SettleSelector string
	Headless       bool
	NoSandbox      bool
	BrowserBin     string
	Proxy          string
	UserAgent      string

	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration

	OutputFile    string
	OutputFormat  string // csv, json, or dual
	MissingReport string
	ErrorReport   string
	ArchiveDir    string

	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int

	MetricsAddr string
	LogFile     string
	Verbose     bool
}

// DefaultConfig returns defaults for the GSA eLibrary contractor directory.
func DefaultConfig() *Config {
	return &Config{
		ListingURLTemplate: "https://www.gsaelibrary.gsa.gov/ElibMain/contractorList.do?contractorListFor=" + LetterPlaceholder,
		DetailURLPrefix:    "https://www.gsaelibrary.gsa.gov/ElibMain/contractorInfo.do",
		Letters:            Alphabet(),
		Driver:             DriverBrowser,
		Workers:            1,
		Timeout:            30 * time.Second,
		Headless:           true,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		RequestsPerSecond:  2,
		Burst:              1,
		MaxRetries:         1,
		RetryBackoff:       500 * time.Millisecond,
		RetryBackoffMax:    5 * time.Second,
		OutputFile:         "output/contractors.csv",
		OutputFormat:       "csv",
		MissingReport:      "output/missing_contractors.txt",
		ErrorReport:        "output/error_links.txt",
		ArchiveDir:         "output/contractor_html_pages",
		PipelineBufferSize: 256,
		BatchSize:          16,
		DedupeMaxSize:      100000,
	}
}

// Alphabet returns the partition keys A through Z.
func Alphabet() []string {
	letters := make([]string, 0, 26)
	for c := 'A'; c <= 'Z'; c++ {
		letters = append(letters, string(c))
	}
	return letters
}

// ListingURL returns the index page URL for letter.
func (c *Config) ListingURL(letter string) string {
	return strings.ReplaceAll(c.ListingURLTemplate, LetterPlaceholder, strings.ToUpper(letter))
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if !strings.Contains(c.ListingURLTemplate, LetterPlaceholder) {
		return fmt.Errorf("listing URL template must contain %s", LetterPlaceholder)
	}
	listing, err := url.Parse(c.ListingURL("A"))
	if err != nil {
		return fmt.Errorf("invalid listing URL template: %w", err)
	}
	if listing.Host == "" {
		return fmt.Errorf("listing URL template must include a host")
	}

	if c.DetailURLPrefix == "" {
		return fmt.Errorf("detail URL prefix cannot be empty")
	}
	detail, err := url.Parse(c.DetailURLPrefix)
	if err != nil {
		return fmt.Errorf("invalid detail URL prefix: %w", err)
	}
	if detail.Host == "" {
		return fmt.Errorf("detail URL prefix must include a host")
	}

	if len(c.Letters) == 0 {
		return fmt.Errorf("letters cannot be empty")
	}
	for _, l := range c.Letters {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("letters cannot contain blanks")
		}
	}

	if c.Driver != DriverBrowser && c.Driver != DriverHTTP {
		return fmt.Errorf("driver must be %s or %s", DriverBrowser, DriverHTTP)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}

	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.MissingReport == "" || c.ErrorReport == "" {
		return fmt.Errorf("missing and error report paths cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvFloat parses key as a float.
func EnvFloat(key string) (float64, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return f, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// EnvDuration parses key as a time.Duration.
func EnvDuration(key string) (time.Duration, bool, error) {
	v, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// EnvList splits key on commas, dropping blanks.
func EnvList(key string) ([]string, bool) {
	v, ok := EnvString(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}

// ApplyEnv overlays GSA_* environment variables onto c.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"GSA_LISTING_URL":     &c.ListingURLTemplate,
		"GSA_DETAIL_PREFIX":   &c.DetailURLPrefix,
		"GSA_SCHEMA":          &c.SchemaFile,
		"GSA_DRIVER":          &c.Driver,
		"GSA_SETTLE_SELECTOR": &c.SettleSelector,
		"GSA_BROWSER_BIN":     &c.BrowserBin,
		"GSA_PROXY":           &c.Proxy,
		"GSA_USER_AGENT":      &c.UserAgent,
		"GSA_OUTPUT":          &c.OutputFile,
		"GSA_FORMAT":          &c.OutputFormat,
		"GSA_MISSING_REPORT":  &c.MissingReport,
		"GSA_ERROR_REPORT":    &c.ErrorReport,
		"GSA_ARCHIVE_DIR":     &c.ArchiveDir,
		"GSA_METRICS_ADDR":    &c.MetricsAddr,
		"GSA_LOG_FILE":        &c.LogFile,
	}
	for key, dst := range strs {
		if v, ok := EnvString(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"GSA_WORKERS":     &c.Workers,
		"GSA_BURST":       &c.Burst,
		"GSA_MAX_RETRIES": &c.MaxRetries,
		"GSA_BATCH_SIZE":  &c.BatchSize,
	}
	for key, dst := range ints {
		v, ok, err := EnvInt(key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
	}

	if v, ok, err := EnvFloat("GSA_RPS"); err != nil {
		return err
	} else if ok {
		c.RequestsPerSecond = v
	}
	if v, ok, err := EnvDuration("GSA_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = v
	}
	if v, ok, err := EnvBool("GSA_HEADLESS"); err != nil {
		return err
	} else if ok {
		c.Headless = v
	}
	if v, ok, err := EnvBool("GSA_NO_SANDBOX"); err != nil {
		return err
	} else if ok {
		c.NoSandbox = v
	}
	if v, ok := EnvList("GSA_LETTERS"); ok {
		c.Letters = v
	}
	return nil
}
