// Package main is the shitsumon CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/cli"
	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shitsumon/config.yaml"

var (
	// Global flags
	configPath string
	debugFlag  bool
	jsonOutput bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "shitsumon",
	Short: "shitsumon - ask your database questions in plain language",
	Long: `shitsumon turns natural-language questions (Korean or English) into SQL.

Questions are normalized with a business-term lexicon, enriched with related documents
and similar past examples, answered by a language model and executed read-only or
read-write against the target database. Every execution is logged to the query history.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		var loadedFrom string
		cfg, loadedFrom, err = loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		debug := cfg.Debug || debugFlag
		logger, err = utils.NewLogger(debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger.Debug("config loaded", zap.String("config_path", loadedFrom), zap.Bool("debug", debug))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(
		serveCmd, watchCmd,
		askCmd, execCmd,
		ingestCmd, docsCmd,
		termsCmd, examplesCmd, schemaCmd, historyCmd,
	)
}

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory is preferred if present; when neither exists the built-in defaults
// are used. Returns the config and the path it came from ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				c, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return c, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			c := config.Default()
			config.ApplyEnv(c)
			return c, "", c.Validate()
		}
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return c, path, nil
}

func outputFormat() cli.OutputFormat {
	if jsonOutput {
		return cli.OutputJSON
	}
	return cli.OutputText
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
