package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newMigrateCmd(opts *options) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := db.Exec(ctx, `
				create table if not exists schema_migrations(
					name text primary key,
					applied_at timestamptz not null default now()
				)
			`); err != nil {
				return err
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				return err
			}
			var files []string
			for _, e := range entries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
					files = append(files, e.Name())
				}
			}
			sort.Strings(files)

			for _, name := range files {
				var done bool
				if err := db.QueryRow(ctx, `select exists(select 1 from schema_migrations where name=$1)`, name).Scan(&done); err != nil {
					return err
				}
				if done {
					continue
				}

				sql, err := os.ReadFile(filepath.Join(dir, name))
				if err != nil {
					return err
				}

				tx, err := db.Begin(ctx)
				if err != nil {
					return err
				}
				if _, err := tx.Exec(ctx, string(sql)); err != nil {
					_ = tx.Rollback(ctx)
					return fmt.Errorf("migration %s: %w", name, err)
				}
				if _, err := tx.Exec(ctx, `insert into schema_migrations(name) values ($1)`, name); err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
				if err := tx.Commit(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory with .sql migration files")
	return cmd
}
