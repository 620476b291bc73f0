package repo

import (
	"context"
	"time"

	"gawulo-platform/shared/pkg/cache"
	"gawulo-platform/shared/pkg/models"
)

// LookupsCached serves the rarely-changing reference data from Redis.
type LookupsCached struct {
	PG    *LookupsPG
	Redis *cache.Redis
	TTL   time.Duration
}

func (r *LookupsCached) Countries(ctx context.Context) ([]models.Country, error) {
	var out []models.Country
	if err := r.Redis.GetJSON(ctx, "lookups:countries", &out); err == nil {
		return out, nil
	}
	out, err := r.PG.Countries(ctx)
	if err != nil {
		return nil, err
	}
	_ = r.Redis.SetJSON(ctx, "lookups:countries", out, r.TTL)
	return out, nil
}

func (r *LookupsCached) CountryByAlpha2(ctx context.Context, iso string) (models.Country, error) {
	return r.PG.CountryByAlpha2(ctx, iso)
}

func (r *LookupsCached) Languages(ctx context.Context) ([]models.Language, error) {
	var out []models.Language
	if err := r.Redis.GetJSON(ctx, "lookups:languages", &out); err == nil {
		return out, nil
	}
	out, err := r.PG.Languages(ctx)
	if err != nil {
		return nil, err
	}
	_ = r.Redis.SetJSON(ctx, "lookups:languages", out, r.TTL)
	return out, nil
}

func (r *LookupsCached) Currencies(ctx context.Context) ([]models.Currency, error) {
	var out []models.Currency
	if err := r.Redis.GetJSON(ctx, "lookups:currencies", &out); err == nil {
		return out, nil
	}
	out, err := r.PG.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	_ = r.Redis.SetJSON(ctx, "lookups:currencies", out, r.TTL)
	return out, nil
}

// MenuCached caches a vendor's full menu; writes from the menu handlers
// invalidate the key.
type MenuCached struct {
	PG    *MenuPG
	Redis *cache.Redis
	TTL   time.Duration
}

func (r *MenuCached) ItemsByVendor(ctx context.Context, vendorID string) ([]models.MenuItem, error) {
	var out []models.MenuItem
	if err := r.Redis.GetJSON(ctx, cache.MenuKey(vendorID), &out); err == nil {
		return out, nil
	}
	out, err := r.PG.ItemsByVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	_ = r.Redis.SetJSON(ctx, cache.MenuKey(vendorID), out, r.TTL)
	return out, nil
}

func (r *MenuCached) Invalidate(ctx context.Context, vendorID string) {
	_ = r.Redis.Delete(ctx, cache.MenuKey(vendorID))
}
