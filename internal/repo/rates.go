package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadworks/printshop-api/internal/rates"
)

// RatesRepo serves the read-only pricing reference data.
type RatesRepo struct {
	Pool *pgxpool.Pool
}

// ResolveTier runs the tier range query: highest min_qty whose range covers
// the quantity, scoped to the garment line's pricing family.
func (r RatesRepo) ResolveTier(ctx context.Context, family string, qty int) (rates.QuantityTier, error) {
	const q = `
SELECT id, name, pricing_family, min_qty, max_qty, markup_percent::text
FROM quantity_tiers
WHERE pricing_family = $1
  AND min_qty <= $2
  AND (max_qty IS NULL OR max_qty >= $2)
ORDER BY min_qty DESC
LIMIT 1`
	var (
		tier      rates.QuantityTier
		markupRaw string
	)
	err := r.Pool.QueryRow(ctx, q, family, qty).Scan(
		&tier.ID, &tier.Name, &tier.PricingFamily, &tier.MinQty, &tier.MaxQty, &markupRaw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rates.QuantityTier{}, rates.ErrTierNotFound
	}
	if err != nil {
		return rates.QuantityTier{}, fmt.Errorf("resolve tier: %w", err)
	}
	if tier.MarkupPercent, err = parseDecimal(markupRaw); err != nil {
		return rates.QuantityTier{}, err
	}
	return tier, nil
}

// PrintRate fetches the rate row keyed by (tier, color count).
func (r RatesRepo) PrintRate(ctx context.Context, tierID string, numColors int) (rates.PrintRate, error) {
	const q = `
SELECT tier_id, num_colors, cost_per_shirt::text, setup_fee_per_screen::text
FROM print_rates
WHERE tier_id = $1 AND num_colors = $2`
	var (
		rate              rates.PrintRate
		costRaw, setupRaw string
	)
	err := r.Pool.QueryRow(ctx, q, tierID, numColors).Scan(
		&rate.TierID, &rate.NumColors, &costRaw, &setupRaw,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rates.PrintRate{}, rates.ErrPrintRateNotFound
	}
	if err != nil {
		return rates.PrintRate{}, fmt.Errorf("fetch print rate: %w", err)
	}
	if rate.CostPerShirt, err = parseDecimal(costRaw); err != nil {
		return rates.PrintRate{}, err
	}
	if rate.SetupFeePerScreen, err = parseDecimal(setupRaw); err != nil {
		return rates.PrintRate{}, err
	}
	return rate, nil
}

// Garment fetches a garment record.
func (r RatesRepo) Garment(ctx context.Context, id string) (rates.Garment, error) {
	const q = `
SELECT id, name, base_cost::text, pricing_family, available_colors, color_images
FROM garments
WHERE id = $1`
	var (
		garment rates.Garment
		costRaw string
	)
	err := r.Pool.QueryRow(ctx, q, id).Scan(
		&garment.ID, &garment.Name, &costRaw, &garment.PricingFamily,
		&garment.AvailableColors, &garment.ColorImages,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return rates.Garment{}, rates.ErrGarmentNotFound
	}
	if err != nil {
		return rates.Garment{}, fmt.Errorf("fetch garment: %w", err)
	}
	if garment.BaseCost, err = parseDecimal(costRaw); err != nil {
		return rates.Garment{}, err
	}
	return garment, nil
}
