// Package cli wires configuration, storage, messaging and the HTTP layer
// behind the user-service cobra commands.
package cli

import (
	"fmt"
	"os"

	"github.com/apiauth/user-service/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "user-service",
		Short:         "User account service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, true)
		},
	}
	cmd.PersistentFlags().String("log-level", "", "log level (overrides LOG_LEVEL)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewTailCmd())
	return cmd
}

// loadConfig reads the environment and applies any flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	overrideString(flags, "log-level", &cfg.LogLevel)
	overrideString(flags, "port", &cfg.Port)
	overrideString(flags, "store", &cfg.Store)
	overrideString(flags, "notify", &cfg.NotifyBackend)
	overrideString(flags, "database-url", &cfg.DatabaseURL)
	overrideString(flags, "redis-addr", &cfg.RedisAddr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func overrideString(flags *pflag.FlagSet, name string, dst *string) {
	if !flags.Changed(name) {
		return
	}
	if v, err := flags.GetString(name); err == nil {
		*dst = v
	}
}

// newLogger builds the JSON logger shared by every component.
func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(lvl)
	return log, nil
}
