package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage the school database",
	}
	cmd.AddCommand(newDataSeedCmd())
	return cmd
}

func newDataSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo users, children, reports, payments and schedules into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			seeded, err := db.Seed(cmd.Context(), time.Now())
			if err != nil {
				return fmt.Errorf("seeding: %w", err)
			}
			if seeded {
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded demo data into %s\n", paths.DatabasePath(cfg))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Database already has users; nothing seeded")
			}
			return nil
		},
	}
}

func seedDemo(ctx context.Context, a *app) error {
	seeded, err := a.db.Seed(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}
	if seeded {
		log.Info().Msg("demo data seeded")
	}
	return nil
}
