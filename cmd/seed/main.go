package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oggyb/fashionjiok/internal/config"
	"github.com/oggyb/fashionjiok/internal/db"
	"github.com/oggyb/fashionjiok/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := db.DefaultSeedOptions()
	var resetOnly bool

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Reset the database and load demo profiles, likes and matches",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.New()
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger.InitFromConfig(cfg)
			log := logger.With("component", "seed")

			database, err := db.NewDB(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to init db: %w", err)
			}
			defer func() { _ = db.Close(database) }()

			if resetOnly {
				if err := db.Reset(database); err != nil {
					return err
				}
				log.Info("database reset")
				return nil
			}

			if err := db.SeedTestData(database, opts, log); err != nil {
				return fmt.Errorf("failed to seed: %w", err)
			}
			log.Info("seeding completed", "users", opts.Users, "likes_per_user", opts.LikesPerUser)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.Users, "users", opts.Users, "number of demo users")
	f.IntVar(&opts.LikesPerUser, "likes-per-user", opts.LikesPerUser, "likes each user sends")
	f.Int64Var(&opts.RandSeed, "seed", 0, "random seed for reproducible data (0 = time based)")
	f.Float64Var(&opts.Lat, "lat", opts.Lat, "latitude of the location center")
	f.Float64Var(&opts.Lon, "lon", opts.Lon, "longitude of the location center")
	f.BoolVar(&resetOnly, "reset-only", false, "clear all tables without seeding")
	return cmd
}
