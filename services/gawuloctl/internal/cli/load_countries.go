package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type countryRow struct {
	alpha2, alpha3, name, dialCode, currency string
}

type languageRow struct {
	code, name, native string
}

type currencyRow struct {
	code, name, symbol string
	decimals           int
}

// Reference data for the markets Gawulo operates in, plus the usual
// internationals. Idempotent: rows already present are left untouched.
var countries = []countryRow{
	{"ZA", "ZAF", "South Africa", "+27", "ZAR"},
	{"ZW", "ZWE", "Zimbabwe", "+263", "USD"},
	{"BW", "BWA", "Botswana", "+267", "BWP"},
	{"NA", "NAM", "Namibia", "+264", "NAD"},
	{"MZ", "MOZ", "Mozambique", "+258", "MZN"},
	{"LS", "LSO", "Lesotho", "+266", "LSL"},
	{"SZ", "SWZ", "Eswatini", "+268", "SZL"},
	{"ZM", "ZMB", "Zambia", "+260", "ZMW"},
	{"MW", "MWI", "Malawi", "+265", "MWK"},
	{"KE", "KEN", "Kenya", "+254", "KES"},
	{"NG", "NGA", "Nigeria", "+234", "NGN"},
	{"GH", "GHA", "Ghana", "+233", "GHS"},
	{"GB", "GBR", "United Kingdom", "+44", "GBP"},
	{"US", "USA", "United States", "+1", "USD"},
}

var languages = []languageRow{
	{"en", "English", "English"},
	{"af", "Afrikaans", "Afrikaans"},
	{"zu", "Zulu", "isiZulu"},
	{"xh", "Xhosa", "isiXhosa"},
	{"st", "Southern Sotho", "Sesotho"},
	{"tn", "Tswana", "Setswana"},
	{"sn", "Shona", "chiShona"},
	{"sw", "Swahili", "Kiswahili"},
	{"pt", "Portuguese", "Português"},
	{"fr", "French", "Français"},
}

var currencies = []currencyRow{
	{"ZAR", "South African Rand", "R", 2},
	{"BWP", "Botswana Pula", "P", 2},
	{"NAD", "Namibian Dollar", "N$", 2},
	{"MZN", "Mozambican Metical", "MT", 2},
	{"LSL", "Lesotho Loti", "L", 2},
	{"SZL", "Swazi Lilangeni", "E", 2},
	{"ZMW", "Zambian Kwacha", "ZK", 2},
	{"MWK", "Malawian Kwacha", "MK", 2},
	{"KES", "Kenyan Shilling", "KSh", 2},
	{"NGN", "Nigerian Naira", "₦", 2},
	{"GHS", "Ghanaian Cedi", "₵", 2},
	{"USD", "United States Dollar", "$", 2},
	{"GBP", "Pound Sterling", "£", 2},
	{"EUR", "Euro", "€", 2},
}

func newLoadCountriesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load-countries",
		Short: "Load country, language and currency reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var loaded int
			for _, c := range countries {
				ct, err := db.Exec(ctx, `
					insert into countries(iso_alpha2, iso_alpha3, name, dial_code, currency_code)
					values ($1, $2, $3, $4, $5)
					on conflict (iso_alpha2) do nothing
				`, c.alpha2, c.alpha3, c.name, c.dialCode, c.currency)
				if err != nil {
					return err
				}
				loaded += int(ct.RowsAffected())
			}
			for _, l := range languages {
				ct, err := db.Exec(ctx, `
					insert into languages(iso_639_1, name, native_name)
					values ($1, $2, $3)
					on conflict (iso_639_1) do nothing
				`, l.code, l.name, l.native)
				if err != nil {
					return err
				}
				loaded += int(ct.RowsAffected())
			}
			for _, c := range currencies {
				ct, err := db.Exec(ctx, `
					insert into currencies(code, name, symbol, decimal_places)
					values ($1, $2, $3, $4)
					on conflict (code) do nothing
				`, c.code, c.name, c.symbol, c.decimals)
				if err != nil {
					return err
				}
				loaded += int(ct.RowsAffected())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d new rows\n", loaded)
			return nil
		},
	}
}
