package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/logger"
)

// NewRootCmd creates the root command for orbweaver.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orbweaver",
		Short: "Sitemap-driven web scraper with headless rendering",
		Long: `orbweaver crawls a website depth-first from a sitemap: a start URL plus a
tree of selector rules. Link rules lead to sub-pages, pagination rules continue
a listing, and text/html rules extract data from each rendered page.

Settings are read from ` + config.DefaultConfigFile() + `,
then ORBWEAVER_* environment variables, then command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path (default: "+config.DefaultConfigFile()+")")
	cmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-file", "", "Write rotated JSON logs to this file instead of stderr")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewDiffCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers the config file and environment under the persistent
// flags the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if cmd.Flags().Changed("log-level") {
		if cfg.LogLevel, err = cmd.Flags().GetString("log-level"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("log-file") {
		if cfg.LogFile, err = cmd.Flags().GetString("log-file"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
}
