package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbutler/safer-illinois-app/internal/cli"
	"github.com/sbutler/safer-illinois-app/internal/client"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "healthstatus",
	Short: "CLI tool for health status records and rules",
	Long: `Healthstatus seals and evaluates encrypted health history records and
manages the rule document served by the health status API.

Examples:
  healthstatus keygen --out ./keys
  healthstatus seal --in history.yaml --public-key keys/pub.pem --out records.json
  healthstatus evaluate --records records.json --private-key keys/key.pem --rules rules.json
  healthstatus rules get --env prod
  healthstatus rules push rules.json --env prod`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the health status API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment from the config file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}

// newClient builds an API client for the selected environment.
func newClient(needKey bool) (*client.Client, error) {
	ec, _, err := cli.ResolveEnv(env, baseURL, apiKey, needKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(ec.BaseURL, ec.APIKey), nil
}

// output returns the writer for command results; --quiet discards them.
func output(cmd *cobra.Command) io.Writer {
	if quiet {
		return io.Discard
	}
	return cmd.OutOrStdout()
}

// openOutput returns a file for path, or stdout when path is empty or "-".
func openOutput(cmd *cobra.Command, path string, perm os.FileMode) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}
