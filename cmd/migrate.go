package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ghosttalk/ghosttalk/config"
	"github.com/ghosttalk/ghosttalk/store"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the posts table",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer config.CloseDatabase(db)

			if err := store.NewPostStore(db).Migrate(); err != nil {
				return err
			}
			logger.Info("migration complete")
			return nil
		},
	}
}
