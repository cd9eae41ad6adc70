// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hassctl/internal/config"
	"hassctl/internal/issue"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string
	// assumeYes skips confirmation prompts on destructive commands
	assumeYes bool

	// cfg is the loaded configuration, available to all RunE handlers.
	cfg *config.Config

	// logger writes structured output to stderr, keeping stdout clean for
	// exports and tables.
	logger = log.New(os.Stderr)

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "hassctl",
		Short: "Home Assistant entity registry maintenance",
		Long: TitleStyle.Render("hassctl") + SubtitleStyle.Render(" - Home Assistant entity registry maintenance") + `

hassctl backs up and restores the entity registry over SSH, edits
automation metadata (areas, icons, labels) through the WebSocket API,
and migrates automation unique_ids without losing that metadata.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Export HASS_SERVER and HASS_TOKEN (and HASS_SSH_* for file access)
  2. Run 'hassctl meta stats' to see metadata coverage
  3. Run 'hassctl backup create' before changing anything

` + SubtitleStyle.Render("Examples:") + `
  hassctl backup create           Snapshot the registry locally
  hassctl meta export > meta.yaml Export automation metadata
  hassctl meta apply meta.yaml    Apply an edited metadata plan
  hassctl migrate generate        Plan numeric-id migrations`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/hassctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")

	// Add subcommands
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(migrateCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	if cfgFile != "" {
		config.SetConfigFilePathOverride(cfgFile)
	}

	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
	}
	if loaded != nil {
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
