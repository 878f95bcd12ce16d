package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clynto/backend/internal/config"
	"clynto/backend/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Clynto customer success backend",
	Long: `Serves the Clynto playbook orchestration, journey, account canvas and
onboarding APIs, and exposes the orchestrator as MCP tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(viper.GetString("config"))
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logger = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		logger.Info("configuration loaded",
			"environment", cfg.Environment,
			"storage", cfg.Storage.Driver,
			"okta_domain", cfg.Auth.OktaDomain,
			"okta_client_id", cfg.Auth.ClientID,
			"secret_len", len(cfg.Auth.ClientSecret),
			"config_file", viper.ConfigFileUsed(),
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("storage", "", "storage driver: postgres or memory")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("storage.driver", rootCmd.PersistentFlags().Lookup("storage"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
