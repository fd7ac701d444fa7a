package cli

import (
	"fmt"

	"bridgebites-service/internal/config"
	"bridgebites-service/internal/infra/postgres"
	"bridgebites-service/internal/logging"
	"bridgebites-service/internal/seed"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads challenge fixtures into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert challenge fixtures from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New("bridgebites-seed")

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			records, err := seed.Load(file)
			if err != nil {
				return err
			}
			log.WithField("count", len(records)).Info("loaded challenge fixtures")

			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := seed.Run(ctx, postgres.NewStore(pool), records); err != nil {
				return err
			}
			log.Info("challenges seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "challenges.json", "path to the challenge fixture file")
	return cmd
}
