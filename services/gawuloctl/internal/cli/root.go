// Package cli implements the gawuloctl admin tool: schema migration and
// reference data loading for the Gawulo platform database.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	dsn string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "gawuloctl",
		Short:         "Admin tooling for the Gawulo platform database",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if opts.dsn == "" {
				opts.dsn = envOr("POSTGRES_DSN", "")
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "Postgres DSN (defaults to POSTGRES_DSN)")

	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newLoadCountriesCmd(opts))
	root.AddCommand(newSeedCmd(opts))
	return root
}

func (o *options) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if o.dsn == "" {
		return nil, fmt.Errorf("postgres dsn is empty: pass --dsn or set POSTGRES_DSN")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return pgxpool.New(ctx, o.dsn)
}
