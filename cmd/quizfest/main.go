package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"quizfest/internal/security/totp"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	root := &cobra.Command{
		Use:           "quizfest",
		Short:         "Quiz festival registration service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		configPath string
		envFile    string
	)
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (env CONFIG_FILE)")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file, loaded when present")

	root.AddCommand(
		serveCmd(&configPath, &envFile),
		sheetsHeaderCmd(&configPath, &envFile),
		totpSecretCmd(),
		hashPasswordCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func totpSecretCmd() *cobra.Command {
	var (
		issuer  string
		account string
	)
	cmd := &cobra.Command{
		Use:   "totp-secret",
		Short: "Generate a TOTP secret for ADMIN_TOTP_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			setup, err := totp.Generate(issuer, account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ADMIN_TOTP_SECRET=%s\n%s\n", setup.Secret, setup.URL)
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "Quiz Festival Admin", "issuer shown in the authenticator app")
	cmd.Flags().StringVar(&account, "account", "admin", "account name shown in the authenticator app")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD (reads stdin without an argument)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw []byte
			if len(args) == 1 {
				pw = []byte(args[0])
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				pw = []byte(strings.TrimRight(line, "\r\n"))
			}
			if len(pw) == 0 {
				return fmt.Errorf("empty password")
			}
			h, err := bcrypt.GenerateFromPassword(pw, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(h))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
