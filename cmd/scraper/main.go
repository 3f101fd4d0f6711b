package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cvantienen/gsaScrape/config"
	"github.com/cvantienen/gsaScrape/models"
	"github.com/cvantienen/gsaScrape/parser"
	"github.com/cvantienen/gsaScrape/pipeline"
	"github.com/cvantienen/gsaScrape/scraper"
)

func main() {
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "scraper",
		Short:         "Scrape the GSA eLibrary contractor directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), cfg, modeScrape)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ListingURLTemplate, "listing-url", cfg.ListingURLTemplate, "Index page URL template; {letter} is replaced")
	flags.StringVar(&cfg.DetailURLPrefix, "detail-prefix", cfg.DetailURLPrefix, "Only links starting with this prefix are followed")
	flags.StringSliceVar(&cfg.Letters, "letters", cfg.Letters, "Partition letters to walk")
	flags.StringVar(&cfg.SchemaFile, "schema", cfg.SchemaFile, "YAML field schema (built-in schema when empty)")
	flags.StringVar(&cfg.Driver, "driver", cfg.Driver, "Page driver: browser or http")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent workers, each with its own session")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-page navigation timeout")
	flags.StringVar(&cfg.SettleSelector, "settle-selector", cfg.SettleSelector, "CSS selector that marks a page as rendered")
	flags.BoolVar(&cfg.Headless, "headless", cfg.Headless, "Run the browser headless")
	flags.BoolVar(&cfg.NoSandbox, "no-sandbox", cfg.NoSandbox, "Disable the browser sandbox")
	flags.StringVar(&cfg.BrowserBin, "browser-bin", cfg.BrowserBin, "Browser binary (downloaded when empty)")
	flags.StringVar(&cfg.Proxy, "proxy", cfg.Proxy, "Proxy URL for all requests")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header")
	flags.Float64Var(&cfg.RequestsPerSecond, "rps", cfg.RequestsPerSecond, "Navigation rate limit shared by all workers (0 = unlimited)")
	flags.IntVar(&cfg.Burst, "burst", cfg.Burst, "Rate limiter burst")
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries per detail page after a timeout")
	flags.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	flags.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	flags.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Output file path")
	flags.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	flags.StringVar(&cfg.MissingReport, "missing-report", cfg.MissingReport, "Report of contractors without a record")
	flags.StringVar(&cfg.ErrorReport, "error-report", cfg.ErrorReport, "Report of links that failed navigation")
	flags.StringVar(&cfg.ArchiveDir, "archive-dir", cfg.ArchiveDir, "Directory for archived detail pages")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Records per output flush")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Also write logs to this rotating file")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "scrape",
			Short: "Extract contractor records to the output file (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd.Context(), cfg, modeScrape)
			},
		},
		&cobra.Command{
			Use:   "archive",
			Short: "Save the raw HTML of every detail page",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCommand(cmd.Context(), cfg, modeArchive)
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the field schema as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				schema, err := loadSchema(cfg)
				if err != nil {
					return err
				}
				data, err := schema.YAML()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
	)
	return root
}

type mode int

const (
	modeScrape mode = iota
	modeArchive
)

func runCommand(parent context.Context, cfg *config.Config, m mode) error {
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	cfg.Driver = strings.ToLower(cfg.Driver)

	runID := uuid.NewString()
	logger, closeLog := newLogger(cfg.Verbose, cfg.LogFile)
	defer closeLog()
	slog.SetDefault(logger.With(slog.String("run_id", runID)))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return err
	}
	schema, err := loadSchema(cfg)
	if err != nil {
		slog.Error("loading schema", slog.Any("error", err))
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	metrics := scraper.NewMetrics()
	stopMetrics := serveMetrics(cfg.MetricsAddr, metrics)
	defer stopMetrics()

	driver, err := newDriver(cfg)
	if err != nil {
		slog.Error("initialising driver", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := driver.Close(); err != nil {
			slog.Warn("close driver", slog.Any("error", err))
		}
	}()

	ledger := pipeline.NewLedger()
	defer func() {
		if err := ledger.Flush(cfg.MissingReport, cfg.ErrorReport); err != nil {
			slog.Error("writing reports", slog.Any("error", err))
		}
	}()

	slog.Info("starting run",
		slog.String("mode", m.String()),
		slog.String("driver", cfg.Driver),
		slog.Int("letters", len(cfg.Letters)),
		slog.Int("workers", cfg.Workers),
	)

	switch m {
	case modeArchive:
		return runArchive(ctx, cfg, driver, ledger, metrics)
	default:
		return runScrape(ctx, cfg, schema, driver, ledger, metrics)
	}
}

func runScrape(ctx context.Context, cfg *config.Config, schema *parser.Schema, driver scraper.Driver, ledger *pipeline.Ledger, metrics *scraper.Metrics) error {
	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	// The pipeline outlives ctx so records already extracted are still written
	// after an interrupt.
	p := pipeline.NewPipeline(context.WithoutCancel(ctx), writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	s := scraper.NewScraper(cfg, driver, scraper.NewRecordSink(schema, p, metrics), ledger, metrics)
	startTime := time.Now()
	result, runErr := s.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("scraping failed", slog.Any("error", runErr))
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		return err
	}
	if err := writer.Validate(); err != nil {
		slog.Warn("output validation failed", slog.Any("error", err))
	}

	printSummary(result, time.Since(startTime), s.RetryCount(), ledger.Len(), cfg.OutputFile, p.GetMetrics())
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func runArchive(ctx context.Context, cfg *config.Config, driver scraper.Driver, ledger *pipeline.Ledger, metrics *scraper.Metrics) error {
	archive, err := pipeline.NewArchive(cfg.ArchiveDir)
	if err != nil {
		slog.Error("creating archive", slog.Any("error", err))
		return err
	}

	s := scraper.NewScraper(cfg, driver, scraper.NewArchiveSink(archive), ledger, metrics)
	startTime := time.Now()
	result, runErr := s.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("archiving failed", slog.Any("error", runErr))
	}

	printSummary(result, time.Since(startTime), s.RetryCount(), ledger.Len(), cfg.ArchiveDir, map[string]interface{}{
		"processed_records": int64(archive.Saved()),
	})
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (m mode) String() string {
	if m == modeArchive {
		return "archive"
	}
	return "scrape"
}

func loadSchema(cfg *config.Config) (*parser.Schema, error) {
	if cfg.SchemaFile == "" {
		return parser.DefaultSchema(), nil
	}
	return parser.LoadSchema(cfg.SchemaFile)
}

func newDriver(cfg *config.Config) (scraper.Driver, error) {
	if cfg.Driver == config.DriverHTTP {
		return scraper.NewCollyDriver(cfg), nil
	}
	return scraper.NewRodDriver(cfg)
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(result *models.RunResult, duration time.Duration, retries, ledgerEntries int, output string, metrics map[string]interface{}) {
	if result == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}

	fmt.Printf("  Letters:       %d\n", result.LetterCount)
	if len(result.SkippedLetters) > 0 {
		fmt.Printf("  Skipped:       %v\n", result.SkippedLetters)
	}
	if len(result.FailedLetters) > 0 {
		fmt.Printf("  Failed:        %v\n", result.FailedLetters)
	}
	fmt.Printf("  Links:         %d\n", result.LinkCount)
	fmt.Printf("  Records:       %d (partial %d)\n", result.RecordCount, result.PartialCount)
	fmt.Printf("  Written:       %d\n", written)
	fmt.Printf("  Failures:      %d\n", result.FailureCount)
	fmt.Printf("  Ledger:        %d\n", ledgerEntries)
	fmt.Printf("  Retries:       %d\n", retries)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Printf("  Validation:    %v\n", valErrors)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Output:        %s\n", output)
	fmt.Println(separator)
}
