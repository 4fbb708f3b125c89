package cli

import (
	"github.com/apiauth/user-service/internal/config"
	"github.com/apiauth/user-service/internal/migrations"
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				log.WithField("store", cfg.Store).Info("nothing to migrate")
				return nil
			}

			db, err := openDatabase(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.Up(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
	cmd.Flags().String("database-url", "", "postgres DSN (overrides DATABASE_URL)")
	return cmd
}
