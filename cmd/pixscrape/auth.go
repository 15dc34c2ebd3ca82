package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pixscrape/pkg/auth"
	"pixscrape/pkg/config"
	apperrors "pixscrape/pkg/errors"
	"pixscrape/pkg/ui"
)

var authProfile string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored Pixabay API key",
	Long: `Store, show or delete the Pixabay API key kept for a profile.

Keys go to the system keyring when one is available and to an encrypted file
in the user config directory otherwise. Set PIXSCRAPE_PASSPHRASE to choose the
passphrase of the encrypted file.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an API key (read from a hidden prompt)",
	Args:  cobra.NoArgs,
	RunE:  runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key, masked",
	Args:  cobra.NoArgs,
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the stored API key",
	Args:  cobra.NoArgs,
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authShowCmd, authDeleteCmd)
	authCmd.PersistentFlags().StringVarP(&authProfile, "profile", "p", "", "credential profile (default from config, usually \"default\")")
}

// activeProfile returns the --profile flag or the configured profile
func activeProfile() string {
	if authProfile != "" {
		return authProfile
	}
	cfg, err := config.Load(configFile, nil)
	if err != nil || cfg.Pixabay.Profile == "" {
		return config.DefaultConfig().Pixabay.Profile
	}
	return cfg.Pixabay.Profile
}

func credentialManager() (*auth.Manager, error) {
	manager, err := auth.NewDefaultManager()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeAuth, err, "failed to initialize credential store")
	}
	return manager, nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	profile := activeProfile()
	manager, err := credentialManager()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Pixabay API key for profile %q: ", profile)
	key, err := readSecret()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeAuth, err, "failed to read API key")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return apperrors.New(apperrors.ErrorTypeAuth, "API key cannot be empty")
	}

	store, err := manager.Store(&auth.Credential{Profile: profile, APIKey: key})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeAuth, err, "failed to store API key")
	}

	ui.PrintSuccess("API key stored")
	ui.PrintInfo("Profile", profile)
	ui.PrintInfo("Store", store)
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	profile := activeProfile()
	manager, err := credentialManager()
	if err != nil {
		return err
	}

	cred, err := manager.Retrieve(profile)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			ui.PrintWarning("No API key stored for profile " + profile)
			return nil
		}
		return apperrors.Wrap(apperrors.ErrorTypeAuth, err, "failed to read API key")
	}

	ui.PrintInfo("Profile", cred.Profile)
	ui.PrintInfo("API key", auth.MaskKey(cred.APIKey))
	if !cred.LastModified.IsZero() {
		ui.PrintInfo("Stored", cred.LastModified.Format("2006-01-02 15:04:05"))
	}
	ui.PrintInfo("Stores", strings.Join(manager.StoreNames(), ", "))
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	profile := activeProfile()
	manager, err := credentialManager()
	if err != nil {
		return err
	}

	if err := manager.Delete(profile); err != nil {
		return apperrors.Wrap(apperrors.ErrorTypeAuth, err, "failed to delete API key")
	}
	ui.PrintSuccess("API key deleted for profile " + profile)
	return nil
}

// readSecret reads a line from stdin without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err == nil {
			return string(secret), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return input, nil
}
