// Command cracks serves the survey response API of the cracks presentations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/cracks/internal/config"
	"github.com/soaringjerry/cracks/internal/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli holds what every subcommand shares once flags are parsed.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func rootCmd() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:           "cracks",
		Short:         "Signature-keyed survey response service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := logging.New(cfg.Log.Level)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(
		serveCmd(c),
		migrateCmd(c),
		submitCmd(c),
		tokenCmd(c),
		hashPasswordCmd(c),
		versionCmd(c),
	)
	return cmd
}

func versionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			commit, built := c.cfg.Server.Commit, c.cfg.Server.BuildTime
			if commit == "" {
				commit = "dev"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cracks %s (build: %s)\n", commit, built)
		},
	}
}
