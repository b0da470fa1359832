package cmd

import (
	"fmt"
	"video-gate/config"
	"video-gate/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func migrate(cfg *config.Config) *cobra.Command {
	var fixturePath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "create catalog and purchase tables, optionally seeding a fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := config.NewDB(cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			repo := repository.NewRepo(db)
			if err := repo.AutoMigrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info().Str("driver", cfg.Database.Driver).Msg("schema migrated")

			if fixturePath == "" {
				return nil
			}
			fixture, err := repository.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			if err := repository.Seed(ctx, repo, *fixture); err != nil {
				return err
			}
			log.Info().Int("courses", len(fixture.Courses)).Int("purchases", len(fixture.Purchases)).Msg("fixture seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "seed", "", "JSON fixture with courses and purchases to insert")
	return cmd
}
