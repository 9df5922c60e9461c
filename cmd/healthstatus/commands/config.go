package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sbutler/safer-illinois-app/internal/cli"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the healthstatus CLI configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a starter configuration file at ~/.healthstatus/config.yaml
(or $HEALTHSTATUS_CONFIG).

Example:
  healthstatus config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cli.InitConfig(configForce)
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		fmt.Fprintf(output(cmd), "Configuration file created at: %s\n", path)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		w := output(cmd)
		fmt.Fprintf(w, "Default Environment: %s\n\n", cfg.DefaultEnv)
		fmt.Fprintln(w, "Environments:")
		names := make([]string, 0, len(cfg.Environments))
		for name := range cfg.Environments {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ec := cfg.Environments[name]
			fmt.Fprintf(w, "  %s:\n", name)
			fmt.Fprintf(w, "    base_url: %s\n", ec.BaseURL)
			fmt.Fprintf(w, "    api_key: %s\n", maskKey(ec.APIKey))
		}
		return nil
	},
}

func maskKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) > 4 {
		return key[:4] + "***"
	}
	return "***"
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
