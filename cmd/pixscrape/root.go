package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"pixscrape/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "pixscrape",
	Short: "Export Pixabay image search metadata to CSV",
	Long: `pixscrape pages through the Pixabay image search API for a table of
queries and writes selected fields of every hit to a single CSV file.

Each query is fetched until its target count is reached or the API has no
more results. Requests are paced to stay inside Pixabay's rate limit.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		ui.SetNoColor(noColor)
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: ./pixscrape.yaml or ~/.config/pixscrape/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`pixscrape {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pixscrape %s\n", rootCmd.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\nOS/Arch: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
