package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pixscrape/pkg/auth"
	"pixscrape/pkg/config"
	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage pixscrape configuration files.

Configuration is merged from, highest priority first:
  - command line flags
  - PIXSCRAPE_* environment variables (and a .env file)
  - the configuration file
  - built-in defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "pixscrape.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return apperrors.New(apperrors.ErrorTypeConfig, "configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, err, "failed to write configuration")
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.PrintInfo("Next", "pixscrape auth set, then pixscrape scrape")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, err, "failed to load configuration")
	}

	display := *cfg
	if display.Pixabay.APIKey != "" {
		display.Pixabay.APIKey = auth.MaskKey(display.Pixabay.APIKey)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(configFile, nil); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeConfig, err, "configuration is invalid")
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
