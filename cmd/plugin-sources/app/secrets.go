package app

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flowcraft/plugin-sources/internal/secrets"
)

func newSecretsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encryption of secrets at rest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	keygen := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new encryption key",
		Long: `Generate a new base64 encoded encryption key. The key is written to --output
(created with mode 0600) or printed to standard output.`,
		RunE: runKeygen,
	}
	keygen.Flags().StringP("output", "o", "", "File to write the key to")

	seal := &cobra.Command{
		Use:   "seal",
		Short: "Seal a secret for use in configuration or the database",
		Long: `Seal a secret (such as an object storage secret key) with the key in --key-file.
The secret is read from the terminal without echo, or from standard input.
The sealed value (enc:v1:...) is printed to standard output.`,
		RunE: runSeal,
	}
	seal.Flags().String("key-file", "", "Path to the encryption key file (required)")
	if err := seal.MarkFlagRequired("key-file"); err != nil {
		panic(err)
	}

	cmd.AddCommand(keygen, seal)
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	key, err := secrets.GenerateKey()
	if err != nil {
		return err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if output == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("Failed to close key file", "error", err)
		}
	}()
	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	slog.Info("Encryption key written", "path", output)
	return nil
}

func runSeal(cmd *cobra.Command, _ []string) error {
	keyFile, err := cmd.Flags().GetString("key-file")
	if err != nil {
		return fmt.Errorf("failed to get key-file flag: %w", err)
	}
	cipher, err := secrets.NewCipherFromKeyFile(keyFile)
	if err != nil {
		return err
	}

	reader := cmd.InOrStdin()
	if f, ok := reader.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Secret: ")
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		reader = bytes.NewReader(secret)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read secret: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	sealed, err := cipher.Seal(secret)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), sealed)
	return err
}
