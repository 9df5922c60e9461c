package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbutler/safer-illinois-app/internal/cli"
	"github.com/sbutler/safer-illinois-app/internal/codec"
)

var (
	sealIn        string
	sealPublicKey string
	sealUser      string
	sealOut       string
)

var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Encrypt a plaintext history into history records",
	Long: `Read a YAML history file and encrypt every entry under the given public
key, writing a JSON array of history records.

Example:
  healthstatus seal --in history.yaml --public-key keys/pub.pem --out records.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hf, err := cli.ReadHistoryFile(sealIn)
		if err != nil {
			return err
		}
		pemBytes, err := os.ReadFile(sealPublicKey)
		if err != nil {
			return fmt.Errorf("failed to read public key: %w", err)
		}
		pub, err := codec.ParsePublicKeyPEM(pemBytes)
		if err != nil {
			return err
		}

		userID := hf.UserID
		if sealUser != "" {
			userID = sealUser
		}
		entries, err := codec.Entries(userID, hf.Entries)
		if err != nil {
			return err
		}
		records := make([]codec.HistoryRecord, 0, len(entries))
		for _, e := range entries {
			rec, err := codec.SealHistory(codec.HybridCipher{}, pub, userID, e)
			if err != nil {
				return fmt.Errorf("failed to seal entry %q: %w", e.ID, err)
			}
			records = append(records, rec)
		}

		w, closeOut, err := openOutput(cmd, sealOut, 0o600)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	},
}

func init() {
	sealCmd.Flags().StringVar(&sealIn, "in", "", "Plaintext history file (YAML)")
	sealCmd.Flags().StringVar(&sealPublicKey, "public-key", "", "PEM public key")
	sealCmd.Flags().StringVar(&sealUser, "user", "", "User id (overrides user_id in the file)")
	sealCmd.Flags().StringVar(&sealOut, "out", "", "Output file (default stdout)")
	_ = sealCmd.MarkFlagRequired("in")
	_ = sealCmd.MarkFlagRequired("public-key")
	rootCmd.AddCommand(sealCmd)
}
