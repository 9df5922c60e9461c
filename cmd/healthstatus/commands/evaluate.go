package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbutler/safer-illinois-app/internal/cli"
	"github.com/sbutler/safer-illinois-app/internal/client"
	"github.com/sbutler/safer-illinois-app/internal/codec"
	"github.com/sbutler/safer-illinois-app/internal/engine"
	"github.com/sbutler/safer-illinois-app/internal/history"
	"github.com/sbutler/safer-illinois-app/internal/logging"
	"github.com/sbutler/safer-illinois-app/internal/rules"
)

var (
	evalRecords      string
	evalPrivateKey   string
	evalHistory      string
	evalRules        string
	evalIndex        int
	evalRole         string
	evalStudentLevel string
	evalWorkers      int
	evalNow          string
	evalTimezone     string
	evalRemote       bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the health status of a history",
	Long: `Evaluate a history against a rule document. The history is either a file
of sealed records opened with a private key, or a plaintext YAML history.
Without --rules the active rule document is fetched from the server.

With --index only the entry at that position (newest first) is evaluated;
otherwise the whole history is replayed.

Examples:
  healthstatus evaluate --records records.json --private-key keys/key.pem --rules rules.json
  healthstatus evaluate --history history.yaml --index 0 --format json
  healthstatus evaluate --history history.yaml --remote --env prod`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (evalRecords == "") == (evalHistory == "") {
			return errors.New("exactly one of --records or --history is required")
		}
		var index *int
		if cmd.Flags().Changed("index") {
			index = &evalIndex
		}
		id := engine.Identity{Role: evalRole, StudentLevel: evalStudentLevel}
		ctx := cmd.Context()

		if evalRemote {
			return evaluateRemote(cmd, id, index)
		}

		entries, err := loadEntries(ctx, cmd)
		if err != nil {
			return err
		}
		rs, err := loadRules(ctx)
		if err != nil {
			return err
		}
		loc, err := time.LoadLocation(evalTimezone)
		if err != nil {
			return err
		}
		now := time.Now()
		if evalNow != "" {
			var ok bool
			if now, ok = codec.ParseDate(evalNow); !ok {
				return fmt.Errorf("invalid --now date %q", evalNow)
			}
		}

		logger := logging.New("dev", "warn")
		ectx := &engine.Context{Rules: rs, Identity: id, Now: now, Location: loc, Logger: &logger}

		var tl engine.Timeline
		if index != nil {
			history.SortNewestFirst(entries)
			var ok bool
			if tl, ok = engine.At(entries, *index, ectx, engine.EnglishDates{}); !ok {
				return fmt.Errorf("index %d out of range (history has %d entries)", *index, len(entries))
			}
		} else {
			tl = engine.Build(entries, ectx, engine.EnglishDates{})
		}
		return cli.PrintTimeline(output(cmd), tl, cli.OutputFormat(format))
	},
}

// loadEntries reads the history. Sealed records that fail to open are kept
// without payload and reported on stderr.
func loadEntries(ctx context.Context, cmd *cobra.Command) ([]*history.Entry, error) {
	if evalHistory != "" {
		hf, err := cli.ReadHistoryFile(evalHistory)
		if err != nil {
			return nil, err
		}
		return codec.Entries(hf.UserID, hf.Entries)
	}

	data, err := os.ReadFile(evalRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	records, err := codec.DecodeHistoryRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse records: %w", err)
	}
	if evalPrivateKey == "" {
		return nil, errors.New("--private-key is required with --records")
	}
	pemBytes, err := os.ReadFile(evalPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	priv, err := codec.ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}

	d := codec.NewDispatcher(evalWorkers)
	defer d.Close()
	entries, errs, err := d.OpenHistory(ctx, codec.HybridCipher{}, priv, records)
	if err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil && !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: record %s not decrypted (%s)\n", records[i].ID, codec.Stage(err))
		}
	}
	return entries, nil
}

func loadRules(ctx context.Context) (*rules.RuleSet, error) {
	if evalRules != "" {
		doc, err := os.ReadFile(evalRules)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules: %w", err)
		}
		return rules.Parse(doc)
	}
	c, err := newClient(false)
	if err != nil {
		return nil, err
	}
	res, err := c.GetRules(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rules: %w", err)
	}
	return rules.Parse(res.Document)
}

func evaluateRemote(cmd *cobra.Command, id engine.Identity, index *int) error {
	if evalHistory == "" {
		return errors.New("--remote requires --history")
	}
	hf, err := cli.ReadHistoryFile(evalHistory)
	if err != nil {
		return err
	}
	c, err := newClient(false)
	if err != nil {
		return err
	}
	res, err := c.Evaluate(cmd.Context(), client.EvaluateRequest{
		UserID:   hf.UserID,
		Identity: id,
		History:  hf.Entries,
		Index:    index,
	})
	if err != nil {
		return fmt.Errorf("failed to evaluate: %w", err)
	}
	return cli.PrintStatus(output(cmd), res.Status, cli.OutputFormat(format))
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalRecords, "records", "", "Sealed history records (JSON)")
	f.StringVar(&evalPrivateKey, "private-key", "", "PEM private key for --records")
	f.StringVar(&evalHistory, "history", "", "Plaintext history file (YAML)")
	f.StringVar(&evalRules, "rules", "", "Rule document file (default: fetch from server)")
	f.IntVar(&evalIndex, "index", 0, "Evaluate only the entry at this position, newest first")
	f.StringVar(&evalRole, "role", "", "User role for test-user conditions")
	f.StringVar(&evalStudentLevel, "student-level", "", "Student level for test-user conditions")
	f.IntVar(&evalWorkers, "workers", runtime.NumCPU(), "Decryption workers")
	f.StringVar(&evalNow, "now", "", "Evaluate as of this date (default: now)")
	f.StringVar(&evalTimezone, "timezone", "America/Chicago", "Zone for midnight arithmetic")
	f.BoolVar(&evalRemote, "remote", false, "Evaluate on the server instead of locally")
	rootCmd.AddCommand(evaluateCmd)
}
