package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// newSeedCmd creates a demo admin, an active vendor with a small menu, and a
// customer account for local development.
func newSeedCmd(opts *options) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed demo accounts and a vendor with a menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			tx, err := db.Begin(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			adminID := uuid.NewString()
			vendorUserID := uuid.NewString()
			customerID := uuid.NewString()
			for _, u := range []struct{ id, email, first, last, role string }{
				{adminID, "admin@gawulo.local", "Admin", "User", "admin"},
				{vendorUserID, "vendor@gawulo.local", "Thandi", "Nkosi", "vendor"},
				{customerID, "customer@gawulo.local", "Sipho", "Dlamini", "customer"},
			} {
				if _, err := tx.Exec(ctx, `
					insert into users(id, email, password_hash, first_name, last_name, role, is_active)
					values ($1, $2, $3, $4, $5, $6, true)
					on conflict (email) do nothing
				`, u.id, u.email, string(hash), u.first, u.last, u.role); err != nil {
					return err
				}
			}

			vendorID := uuid.NewString()
			if _, err := tx.Exec(ctx, `
				insert into vendors(
					id, user_id, business_name, business_type, description, phone_number,
					email, address, delivery_radius, minimum_order, delivery_fee,
					status, is_verified
				)
				select $1, u.id, 'Mama Thandi''s Kitchen', 'restaurant',
				       'Home-style Southern African cooking', '+27110000000',
				       'vendor@gawulo.local', '12 Vilakazi St, Soweto', 10, 50.00, 25.00,
				       'active', true
				from users u
				where u.email = 'vendor@gawulo.local'
				on conflict do nothing
			`, vendorID); err != nil {
				return err
			}

			// The vendor row may predate this run; resolve the real id.
			if err := tx.QueryRow(ctx, `
				select v.id from vendors v join users u on u.id = v.user_id
				where u.email = 'vendor@gawulo.local'
			`).Scan(&vendorID); err != nil {
				return err
			}

			categoryID := uuid.NewString()
			if _, err := tx.Exec(ctx, `
				insert into menu_categories(id, vendor_id, name, sort_order, is_active)
				values ($1, $2, 'Mains', 1, true)
				on conflict do nothing
			`, categoryID, vendorID); err != nil {
				return err
			}
			if err := tx.QueryRow(ctx, `
				select id from menu_categories where vendor_id = $1 and name = 'Mains'
			`, vendorID).Scan(&categoryID); err != nil {
				return err
			}

			for _, m := range []struct {
				name  string
				price string
				prep  int
			}{
				{"Pap and Chakalaka", "65.00", 20},
				{"Bunny Chow", "85.00", 25},
				{"Boerewors Roll", "45.00", 15},
				{"Umngqusho", "70.00", 30},
			} {
				if _, err := tx.Exec(ctx, `
					insert into menu_items(id, vendor_id, category_id, name, price, availability_status, preparation_time)
					values ($1, $2, $3, $4, $5, 'available', $6)
					on conflict do nothing
				`, uuid.NewString(), vendorID, categoryID, m.name, m.price, m.prep); err != nil {
					return err
				}
			}

			if err := tx.Commit(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seeded demo accounts (admin@, vendor@, customer@gawulo.local)")
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "gawulo-dev", "password for the seeded accounts")
	return cmd
}
