package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/logger"
	"github.com/kareemsasa3/orbweaver/internal/report"
	"github.com/kareemsasa3/orbweaver/internal/scraper"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <sitemap>",
		Short: "Crawl a site described by a sitemap and print extracted data",
		Long: `Crawl loads a sitemap (.json, .yaml or .yml), walks the site depth-first from
its start URL and prints the data of the pages reached through one origin rule.

Examples:
  # Print the start page and its pagination continuations
  orbweaver crawl books.json

  # Print pages reached through the "book" link rule, at most 20 sub-pages
  orbweaver crawl --origin book --max-pages 20 books.json

  # Every origin as a Markdown report, fetched without a browser
  orbweaver crawl --renderer static --origin '*' --format markdown -o out/books.md books.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxSubPages, "Maximum number of sub-pages to visit beyond the start page")
	cmd.Flags().StringP("renderer", "r", config.DefaultRenderer, "Page renderer: chrome, rod or static")
	cmd.Flags().String("query", config.DefaultQueryLanguage, "Selector language: css or xpath")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout, "Navigation timeout per page")
	cmd.Flags().Int("retries", config.DefaultRetryAttempts, "Attempts per page fetch (1 = no retry)")
	cmd.Flags().Bool("no-sandbox", false, "Launch the browser with --no-sandbox")
	cmd.Flags().String("chrome-path", "", "Browser binary to use instead of auto-detection")

	cmd.Flags().String("origin", types.RootSelectorID, "Print pages reached through this rule id ('*' for all)")
	cmd.Flags().StringP("format", "f", report.FormatJSON, "Output format: json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write output to this file (creates directories if needed)")
	cmd.Flags().Bool("no-progress", false, "Do not show the progress spinner")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	sitemap, err := config.LoadSitemap(args[0])
	if err != nil {
		return err
	}

	origin, _ := cmd.Flags().GetString("origin")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	// Fail on a bad format before spending a crawl on it.
	if _, err := report.NewWriter(format, io.Discard); err != nil {
		return err
	}

	log := newLogger(cfg)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spin *spinner.Spinner
	if !noProgress {
		spin = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriterFile(os.Stderr))
		spin.Suffix = " crawling " + sitemap.RootURL()
		spin.Start()
	}
	rep, err := crawl(ctx, cfg, sitemap, origin, log)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), output, format, rep)
}

// buildCrawlConfig loads the layered config and applies the crawl flags the
// user set explicitly.
func buildCrawlConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("max-pages") {
		cfg.MaxSubPages, _ = flags.GetInt("max-pages")
	}
	if flags.Changed("renderer") {
		cfg.Renderer, _ = flags.GetString("renderer")
	}
	if flags.Changed("query") {
		cfg.QueryLanguage, _ = flags.GetString("query")
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("retries") {
		cfg.RetryAttempts, _ = flags.GetInt("retries")
	}
	if flags.Changed("no-sandbox") {
		cfg.HeadlessNoSandbox, _ = flags.GetBool("no-sandbox")
	}
	if flags.Changed("chrome-path") {
		cfg.ChromePath, _ = flags.GetString("chrome-path")
	}
	return cfg, nil
}

func crawl(ctx context.Context, cfg *config.Config, sitemap *types.Sitemap, origin string, log *logger.Logger) (*report.Report, error) {
	s, err := scraper.NewScraper(sitemap, scraper.WithConfig(cfg), scraper.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("Failed to shut down renderer: %v", err)
		}
	}()

	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	if err := s.ScrapeData(ctx); err != nil {
		return nil, err
	}
	return report.New(sitemap, s.Index(), s.Stats(), origin), nil
}

// writeReport writes to path, or to stdout when path is empty
func writeReport(stdout io.Writer, path, format string, rep *report.Report) error {
	if path == "" {
		w, err := report.NewWriter(format, stdout)
		if err != nil {
			return err
		}
		return w.Write(rep)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w, err := report.NewWriter(format, f)
	if err != nil {
		f.Close()
		return err
	}
	if err := w.Write(rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
