package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type LookupsPG struct{ DB *pgxpool.Pool }

func (r *LookupsPG) Countries(ctx context.Context) ([]models.Country, error) {
	rows, err := r.DB.Query(ctx, `
		select name, iso_alpha2, iso_alpha3, dial_code, currency_code
		from countries order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Country
	for rows.Next() {
		var c models.Country
		if err := rows.Scan(&c.Name, &c.ISOAlpha2, &c.ISOAlpha3, &c.DialCode, &c.CurrencyCode); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *LookupsPG) CountryByAlpha2(ctx context.Context, iso string) (models.Country, error) {
	var c models.Country
	err := r.DB.QueryRow(ctx, `
		select name, iso_alpha2, iso_alpha3, dial_code, currency_code
		from countries where iso_alpha2 = $1
	`, iso).Scan(&c.Name, &c.ISOAlpha2, &c.ISOAlpha3, &c.DialCode, &c.CurrencyCode)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Country{}, ErrNotFound
	}
	return c, err
}

func (r *LookupsPG) Languages(ctx context.Context) ([]models.Language, error) {
	rows, err := r.DB.Query(ctx, `select name, iso_639_1, coalesce(native_name, '') from languages order by name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Language
	for rows.Next() {
		var l models.Language
		if err := rows.Scan(&l.Name, &l.ISO6391, &l.Native); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LookupsPG) Currencies(ctx context.Context) ([]models.Currency, error) {
	rows, err := r.DB.Query(ctx, `select code, name, symbol, decimal_places from currencies order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Currency
	for rows.Next() {
		var c models.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol, &c.DecimalPlaces); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
