package main

import (
	"errors"
	"os"

	"github.com/MarcoPoloResearchLab/okta-create-user/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "okta-create-user",
		Short:         "Create an Okta user or return the one that already exists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newInvokeCommand(),
		newHaltCommand(),
		newServeCommand(),
		newCallerTokenCommand(),
	)
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("reconcile-strategy", defaults.GetString("reconcile.strategy"), "Duplicate handling: precheck or conflict")
	cmd.PersistentFlags().String("static-token-scheme", defaults.GetString("okta.static_token_scheme"), "Authorization scheme for BEARER_AUTH_TOKEN (SSWS or Bearer)")
	cmd.PersistentFlags().String("audit-database-path", defaults.GetString("audit.database_path"), "SQLite path for the invocation journal (empty disables it)")
	cmd.PersistentFlags().String("caller-signing-secret", "", "Caller token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "reconcile.strategy", "reconcile-strategy")
	bindFlag(cmd, "okta.static_token_scheme", "static-token-scheme")
	bindFlag(cmd, "audit.database_path", "audit-database-path")
	bindFlag(cmd, "caller.signing_secret", "caller-signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}
