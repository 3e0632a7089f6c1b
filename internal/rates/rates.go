// Package rates holds the static pricing reference data: quantity tiers,
// per-tier print rates, and garment records. The engine never writes any of
// it; administration happens elsewhere.
package rates

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrTierNotFound indicates no quantity tier covers the requested
	// quantity. This is a configuration defect, not user error; callers
	// fall back to degraded pricing instead of rejecting the request.
	ErrTierNotFound = errors.New("no quantity tier matches quantity")
	// ErrPrintRateNotFound indicates the (tier, color count) rate row is
	// missing. Handled the same way as ErrTierNotFound.
	ErrPrintRateNotFound = errors.New("no print rate for tier and color count")
	// ErrGarmentNotFound indicates the garment reference is unknown.
	ErrGarmentNotFound = errors.New("garment not found")
)

// QuantityTier is one rung of a garment line's quantity ladder. MaxQty is nil
// for the unbounded top tier. Tiers are expected to partition the quantity
// domain without gaps within a pricing family.
type QuantityTier struct {
	ID            string
	Name          string
	PricingFamily string
	MinQty        int
	MaxQty        *int
	MarkupPercent decimal.Decimal
}

// Contains reports whether qty falls inside the tier's range.
func (t QuantityTier) Contains(qty int) bool {
	if qty < t.MinQty {
		return false
	}
	return t.MaxQty == nil || qty <= *t.MaxQty
}

// PrintRate is the per-shirt print cost and per-screen setup fee for a tier
// at a given ink-color count. Keyed uniquely by (TierID, NumColors).
type PrintRate struct {
	TierID            string
	NumColors         int
	CostPerShirt      decimal.Decimal
	SetupFeePerScreen decimal.Decimal
}

// Garment is a sellable blank. PricingFamily namespaces which tier ladder
// applies to its markup.
type Garment struct {
	ID              string
	Name            string
	BaseCost        decimal.Decimal
	PricingFamily   string
	AvailableColors []string
	ColorImages     map[string]string
}

// Resolve picks the unique tier whose range contains qty. When ranges overlap
// (they should partition cleanly, but the data is externally administered)
// the tier with the highest MinQty not exceeding qty wins.
func Resolve(tiers []QuantityTier, qty int) (QuantityTier, error) {
	var best QuantityTier
	found := false
	for _, tier := range tiers {
		if !tier.Contains(qty) {
			continue
		}
		if !found || tier.MinQty > best.MinQty {
			best = tier
			found = true
		}
	}
	if !found {
		return QuantityTier{}, ErrTierNotFound
	}
	return best, nil
}

// Source is the read-only reference-data provider the calculator depends on.
// Implementations: internal/repo (postgres) and Static (tests, seeder).
type Source interface {
	ResolveTier(ctx context.Context, family string, qty int) (QuantityTier, error)
	PrintRate(ctx context.Context, tierID string, numColors int) (PrintRate, error)
	Garment(ctx context.Context, id string) (Garment, error)
}

// Static is an in-memory Source backed by fixed tables.
type Static struct {
	Tiers    []QuantityTier
	Rates    []PrintRate
	Garments []Garment
}

// ResolveTier resolves against the family's tiers using Resolve.
func (s Static) ResolveTier(_ context.Context, family string, qty int) (QuantityTier, error) {
	scoped := make([]QuantityTier, 0, len(s.Tiers))
	for _, t := range s.Tiers {
		if t.PricingFamily == family {
			scoped = append(scoped, t)
		}
	}
	return Resolve(scoped, qty)
}

// PrintRate returns the rate row keyed by (tierID, numColors).
func (s Static) PrintRate(_ context.Context, tierID string, numColors int) (PrintRate, error) {
	for _, r := range s.Rates {
		if r.TierID == tierID && r.NumColors == numColors {
			return r, nil
		}
	}
	return PrintRate{}, ErrPrintRateNotFound
}

// Garment returns the garment record by id.
func (s Static) Garment(_ context.Context, id string) (Garment, error) {
	for _, g := range s.Garments {
		if g.ID == id {
			return g, nil
		}
	}
	return Garment{}, ErrGarmentNotFound
}
