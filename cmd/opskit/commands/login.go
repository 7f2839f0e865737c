package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fivetwenty-io/opskit/internal/constants"
	"github.com/fivetwenty-io/opskit/pkg/opsclient"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// NewLoginCommand creates the login command
func NewLoginCommand() *cobra.Command {
	var (
		apiEndpoint string
		apiKey      string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save API credentials",
		Long:  "Record the API endpoint and key in the config file for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Get API endpoint
			if apiEndpoint == "" {
				apiEndpoint = viper.GetString("api")
			}

			if apiEndpoint == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("API endpoint: ")
				apiEndpoint, _ = reader.ReadString('\n')
				apiEndpoint = strings.TrimSpace(apiEndpoint)
			}

			if apiEndpoint == "" {
				return ErrAPIEndpointRequired
			}

			if apiKey == "" {
				fmt.Print("API key (blank for none): ")

				byteKey, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}

				apiKey = strings.TrimSpace(string(byteKey))

				fmt.Println()
			}

			// Validate the endpoint by constructing a client against it
			if _, err := opsclient.New(&opskit.Config{
				Endpoint: apiEndpoint,
				APIKey:   apiKey,
			}); err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			viper.Set("api", apiEndpoint)
			viper.Set("token", apiKey)

			if err := saveConfig(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Credentials saved for %s\n", apiEndpoint)

			return nil
		},
	}

	cmd.Flags().StringVarP(&apiEndpoint, "api", "a", "", "API endpoint URL")
	cmd.Flags().StringVarP(&apiKey, "key", "k", "", "API key")

	return cmd
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear saved credentials",
		Long:  "Remove the stored API key from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			viper.Set("token", "")

			if err := saveConfig(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Println("Successfully logged out")

			return nil
		},
	}
}

// saveConfig writes the current viper state to the active config file,
// creating $HOME/.opskit/config.yml when none is in use yet.
func saveConfig() error {
	if viper.ConfigFileUsed() != "" {
		return viper.WriteConfig()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to determine home directory: %w", err)
	}

	configDir := filepath.Join(home, ".opskit")
	if err := os.MkdirAll(configDir, constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, "config.yml")

	if err := viper.WriteConfigAs(configFile); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
