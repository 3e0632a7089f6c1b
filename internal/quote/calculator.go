// Package quote prices a garment order from the quantity, the print
// configuration, and the tiered rate tables. Calculation is pure: the
// calculator reads reference data through rates.Source and never writes.
package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/threadworks/printshop-api/internal/common"
	"github.com/threadworks/printshop-api/internal/rates"
)

// Print locations currently supported by the shop.
const (
	LocationFront = "front"
	LocationBack  = "back"
)

const (
	minInkColors = 1
	maxInkColors = 4
)

// Placement is one print location's configuration.
type Placement struct {
	Enabled   bool `json:"enabled"`
	NumColors int  `json:"numColors"`
}

// PrintConfig maps print locations to their placement settings.
type PrintConfig map[string]Placement

// TotalScreens sums ink colors over enabled locations. Each color at each
// location burns one screen.
func (pc PrintConfig) TotalScreens() int {
	total := 0
	for _, p := range pc {
		if p.Enabled {
			total += p.NumColors
		}
	}
	return total
}

// ActiveLocations counts enabled locations.
func (pc PrintConfig) ActiveLocations() int {
	count := 0
	for _, p := range pc {
		if p.Enabled {
			count++
		}
	}
	return count
}

// MaxColors returns the highest color count among enabled locations. The
// print rate row is selected by this maximum, not the sum: a 2-color front
// plus 1-color back prices at the 2-color per-location rate. Intentional
// policy, see the rate card.
func (pc PrintConfig) MaxColors() int {
	max := 0
	for _, p := range pc {
		if p.Enabled && p.NumColors > max {
			max = p.NumColors
		}
	}
	return max
}

// Validate checks color counts on enabled locations.
func (pc PrintConfig) Validate() error {
	locations := make([]string, 0, len(pc))
	for loc := range pc {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	for _, loc := range locations {
		p := pc[loc]
		if !p.Enabled {
			continue
		}
		if p.NumColors < minInkColors || p.NumColors > maxInkColors {
			return common.NewAppError(
				"INVALID_PRINT_CONFIG",
				fmt.Sprintf("location %q must use between %d and %d ink colors", loc, minInkColors, maxInkColors),
				http.StatusUnprocessableEntity,
				nil,
			)
		}
	}
	return nil
}

// GarmentLine is one garment's share of a (possibly multi-garment) order.
type GarmentLine struct {
	GarmentID string
	Quantity  int
}

// GarmentCost is the per-garment slice of a breakdown.
type GarmentCost struct {
	GarmentID   string          `json:"garmentId"`
	Quantity    int             `json:"quantity"`
	TierID      string          `json:"tierId,omitempty"`
	TierName    string          `json:"tierName,omitempty"`
	CostPerUnit decimal.Decimal `json:"costPerUnit"`
	CostTotal   decimal.Decimal `json:"costTotal"`
}

// Breakdown is the full priced quote. Derived, never persisted on its own;
// production orders embed a copy at materialization time.
type Breakdown struct {
	GarmentCosts     []GarmentCost   `json:"garmentCosts"`
	GarmentCostTotal decimal.Decimal `json:"garmentCostTotal"`
	TotalQuantity    int             `json:"totalQuantity"`
	TotalScreens     int             `json:"totalScreens"`
	ActiveLocations  int             `json:"activeLocations"`
	PrintCostPerUnit decimal.Decimal `json:"printCostPerUnit"`
	PrintCostTotal   decimal.Decimal `json:"printCostTotal"`
	SetupFees        decimal.Decimal `json:"setupFees"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	DepositAmount    decimal.Decimal `json:"depositAmount"`
	BalanceDue       decimal.Decimal `json:"balanceDue"`
	PerUnitPrice     decimal.Decimal `json:"perUnitPrice"`
	// Degraded marks a quote priced with fallback formulas because a tier
	// or print-rate row was missing. Callers decide how to surface it; the
	// shopper never sees the flag.
	Degraded bool `json:"degraded"`
}

// Fallback holds the substitute pricing used when reference rows are
// missing. Availability over precision: an interactive quote preview must
// not fail because an operator forgot a rate row.
type Fallback struct {
	MarkupPercent     decimal.Decimal
	PrintRatePerColor decimal.Decimal
	SetupFeePerScreen decimal.Decimal
}

// Calculator prices orders. MinQuantity and DepositPercent come from
// configuration; both have documented defaults applied by the constructor.
type Calculator struct {
	Source         rates.Source
	MinQuantity    int
	DepositPercent int
	Fallback       Fallback
}

// NewCalculator applies defaults for unset knobs.
func NewCalculator(source rates.Source, minQty, depositPercent int, fb Fallback) *Calculator {
	if minQty <= 0 {
		minQty = 24
	}
	if depositPercent <= 0 || depositPercent > 100 {
		depositPercent = 50
	}
	if fb.MarkupPercent.IsZero() {
		fb.MarkupPercent = decimal.NewFromInt(40)
	}
	if fb.PrintRatePerColor.IsZero() {
		fb.PrintRatePerColor = decimal.NewFromFloat(2.50)
	}
	if fb.SetupFeePerScreen.IsZero() {
		fb.SetupFeePerScreen = decimal.NewFromInt(25)
	}
	return &Calculator{Source: source, MinQuantity: minQty, DepositPercent: depositPercent, Fallback: fb}
}

// Calculate prices a single-garment order.
func (c *Calculator) Calculate(ctx context.Context, garmentID string, quantity int, pc PrintConfig, discount decimal.Decimal) (Breakdown, error) {
	return c.CalculateMulti(ctx, []GarmentLine{{GarmentID: garmentID, Quantity: quantity}}, pc, discount)
}

// CalculateMulti prices an order spanning one or more garments. Garment cost
// is computed per line against each garment's own tier; print cost is
// computed once over the combined quantity because screens and setup are
// shared across the whole physical run.
func (c *Calculator) CalculateMulti(ctx context.Context, lines []GarmentLine, pc PrintConfig, discount decimal.Decimal) (Breakdown, error) {
	if c == nil || c.Source == nil {
		return Breakdown{}, errors.New("quote calculator not configured")
	}
	if len(lines) == 0 {
		return Breakdown{}, common.NewAppError("EMPTY_ORDER", "at least one garment line is required", http.StatusUnprocessableEntity, nil)
	}
	totalQty := 0
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Breakdown{}, common.NewAppError("INVALID_QUANTITY", "garment quantity must be positive", http.StatusUnprocessableEntity, nil)
		}
		totalQty += line.Quantity
	}
	if totalQty < c.MinQuantity {
		return Breakdown{}, common.NewAppError(
			"BELOW_MINIMUM",
			fmt.Sprintf("minimum order quantity is %d", c.MinQuantity),
			http.StatusUnprocessableEntity,
			nil,
		)
	}
	if err := pc.Validate(); err != nil {
		return Breakdown{}, err
	}

	bd := Breakdown{
		TotalQuantity:   totalQty,
		TotalScreens:    pc.TotalScreens(),
		ActiveLocations: pc.ActiveLocations(),
		Discount:        discount,
	}

	// Garment cost per line, each against its garment's own ladder.
	var lastTierID string
	for _, line := range lines {
		garment, err := c.Source.Garment(ctx, line.GarmentID)
		if err != nil {
			if errors.Is(err, rates.ErrGarmentNotFound) {
				return Breakdown{}, common.NewAppError("GARMENT_NOT_FOUND", fmt.Sprintf("unknown garment %q", line.GarmentID), http.StatusUnprocessableEntity, err)
			}
			return Breakdown{}, err
		}
		cost := GarmentCost{GarmentID: line.GarmentID, Quantity: line.Quantity}
		tier, err := c.Source.ResolveTier(ctx, garment.PricingFamily, line.Quantity)
		switch {
		case err == nil:
			cost.TierID = tier.ID
			cost.TierName = tier.Name
			cost.CostPerUnit = applyMarkup(garment.BaseCost, tier.MarkupPercent)
			lastTierID = tier.ID
		case errors.Is(err, rates.ErrTierNotFound):
			bd.Degraded = true
			cost.CostPerUnit = applyMarkup(garment.BaseCost, c.Fallback.MarkupPercent)
		default:
			return Breakdown{}, err
		}
		cost.CostTotal = cost.CostPerUnit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		bd.GarmentCosts = append(bd.GarmentCosts, cost)
		bd.GarmentCostTotal = bd.GarmentCostTotal.Add(cost.CostTotal)
	}

	// Shared print cost, rated at the combined quantity's tier. The rate row
	// is chosen by the maximum color count across enabled locations.
	if bd.ActiveLocations > 0 {
		perShirt, perScreen, degraded := c.printRates(ctx, lines, totalQty, pc.MaxColors(), lastTierID)
		bd.Degraded = bd.Degraded || degraded
		bd.PrintCostPerUnit = perShirt.Mul(decimal.NewFromInt(int64(bd.ActiveLocations)))
		bd.SetupFees = perScreen.Mul(decimal.NewFromInt(int64(bd.TotalScreens)))
		bd.PrintCostTotal = bd.PrintCostPerUnit.Mul(decimal.NewFromInt(int64(totalQty))).Add(bd.SetupFees)
	}

	bd.Total = bd.GarmentCostTotal.Add(bd.PrintCostTotal)
	if discount.IsPositive() {
		bd.Total = bd.Total.Sub(discount)
		if bd.Total.IsNegative() {
			bd.Total = decimal.Zero
		}
	}
	// Rounding happens here and nowhere earlier.
	bd.Total = bd.Total.Round(2)
	bd.DepositAmount = bd.Total.Mul(decimal.NewFromInt(int64(c.DepositPercent))).Div(decimal.NewFromInt(100)).Round(2)
	bd.BalanceDue = bd.Total.Sub(bd.DepositAmount)
	bd.PerUnitPrice = bd.Total.Div(decimal.NewFromInt(int64(totalQty))).Round(2)
	return bd, nil
}

// printRates resolves the shared print rate for the combined quantity,
// falling back to flat rates when the tier or rate row is missing.
func (c *Calculator) printRates(ctx context.Context, lines []GarmentLine, totalQty, maxColors int, hintTierID string) (perShirt, perScreen decimal.Decimal, degraded bool) {
	fallbackShirt := c.Fallback.PrintRatePerColor.Mul(decimal.NewFromInt(int64(maxColors)))
	tierID := hintTierID
	garment, err := c.Source.Garment(ctx, lines[0].GarmentID)
	if err == nil {
		if tier, err := c.Source.ResolveTier(ctx, garment.PricingFamily, totalQty); err == nil {
			tierID = tier.ID
		}
	}
	if tierID == "" {
		return fallbackShirt, c.Fallback.SetupFeePerScreen, true
	}
	rate, err := c.Source.PrintRate(ctx, tierID, maxColors)
	if err != nil {
		return fallbackShirt, c.Fallback.SetupFeePerScreen, true
	}
	return rate.CostPerShirt, rate.SetupFeePerScreen, false
}

func applyMarkup(base, percent decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return base.Mul(hundred.Add(percent)).Div(hundred)
}
