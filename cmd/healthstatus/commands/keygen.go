package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sbutler/safer-illinois-app/internal/codec"
)

var (
	keygenOut  string
	keygenBits int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an RSA key pair for sealing records",
	Long: `Generate an RSA key pair and write key.pem (private, PKCS#1) and
pub.pem (public, PKIX) to the output directory.

Example:
  healthstatus keygen --out ./keys`,
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := codec.GenerateKey(keygenBits)
		if err != nil {
			return err
		}
		pub, err := codec.EncodePublicKeyPEM(&priv.PublicKey)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(keygenOut, 0o700); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		keyPath := filepath.Join(keygenOut, "key.pem")
		pubPath := filepath.Join(keygenOut, "pub.pem")
		if err := os.WriteFile(keyPath, codec.EncodePrivateKeyPEM(priv), 0o600); err != nil {
			return err
		}
		if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(output(cmd), "Wrote %s and %s\n", keyPath, pubPath)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", ".", "Output directory")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", codec.DefaultKeyBits, "RSA key size")
	rootCmd.AddCommand(keygenCmd)
}
