package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/clipforge/clipforge/internal/api_server"
	"github.com/clipforge/clipforge/internal/config"
	"github.com/clipforge/clipforge/internal/store"
	"github.com/clipforge/clipforge/pkg/migrations"
)

var rollback bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			zap.S().Fatalw("reading configuration", "error", err)
		}

		defer initLogging(cfg)()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		store := store.NewStore(db)
		defer store.Close()

		if rollback {
			if err := migrations.Rollback(db); err != nil {
				zap.S().Fatalw("rolling back", "error", err)
			}
		} else {
			if err := store.Migrate(); err != nil {
				zap.S().Fatalw("running migrations", "error", err)
			}
			if err := apiserver.MigrateJobQueue(cmd.Context(), cfg, db); err != nil {
				zap.S().Fatalw("running river migrations", "error", err)
			}
		}

		version, err := migrations.Version(db)
		if err != nil {
			return err
		}
		zap.S().Infow("db migrated", "version", version)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&rollback, "rollback", false, "Roll back the latest migration instead.")
}
