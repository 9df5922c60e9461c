package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbutler/safer-illinois-app/internal/cli"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

var (
	rulesOutput string
	rulesLimit  int
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the rule document",
}

var rulesGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Download the active rule document",
	Long: `Download the active rule document of an environment.

Examples:
  healthstatus rules get --env prod
  healthstatus rules get --env prod --output rules.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(false)
		if err != nil {
			return err
		}
		res, err := c.GetRules(cmd.Context(), "")
		if err != nil {
			return fmt.Errorf("failed to get rules: %w", err)
		}

		w, closeOut, err := openOutput(cmd, rulesOutput, 0o644)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(res.Document, '\n')); err != nil {
			closeOut()
			return err
		}
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "etag: %s\n", res.ETag)
		}
		return closeOut()
	},
}

var rulesPushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Upload a rule document",
	Long: `Upload a rule document as the new version for an environment. The
document is parsed locally first.

Example:
  healthstatus rules push rules.json --env prod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read rule document: %w", err)
		}
		rs, err := rules.Parse(doc)
		if err != nil {
			return err
		}

		c, err := newClient(true)
		if err != nil {
			return err
		}
		res, err := c.PushRules(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("failed to push rules: %w", err)
		}
		fmt.Fprintf(output(cmd), "Pushed version %d (%d statuses, %d constants), etag %s\n",
			res.Version, rs.StatusCount(), rs.ConstantCount(), res.ETag)
		return nil
	},
}

var rulesVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List stored rule document versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(true)
		if err != nil {
			return err
		}
		docs, err := c.ListVersions(cmd.Context(), rulesLimit)
		if err != nil {
			return fmt.Errorf("failed to list versions: %w", err)
		}
		return cli.PrintVersions(output(cmd), docs, cli.OutputFormat(format))
	},
}

func init() {
	rulesGetCmd.Flags().StringVar(&rulesOutput, "output", "", "Output file (default stdout)")
	rulesVersionsCmd.Flags().IntVar(&rulesLimit, "limit", 20, "Maximum versions to list")
	rulesCmd.AddCommand(rulesGetCmd, rulesPushCmd, rulesVersionsCmd)
	rootCmd.AddCommand(rulesCmd)
}
