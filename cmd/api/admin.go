package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	"github.com/bryanwahyu/bito-analyst/internal/auth"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		zap.L().Info("schema up to date", zap.String("driver", st.Dialect.Name))
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Print a signed API token for email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.SecretKey == "" {
			return fmt.Errorf("auth.secret_key is not set")
		}
		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.Auth.TokenTTL
		}
		tok, err := auth.NewSigner(cfg.Auth.SecretKey, ttl, application.SystemClock{}).Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, tok)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default auth.token_ttl)")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(migrateCmd, tokenCmd, configCmd)
}
