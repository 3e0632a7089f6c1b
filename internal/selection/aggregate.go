// Package selection collapses raw per-participant garment selections into
// the canonical nested quantity structure production orders are built from.
package selection

import "sort"

// DefaultGarmentID is the sentinel used by legacy single-garment callers
// that predate multi-garment orders. It never counts toward multi-garment
// cardinality.
const DefaultGarmentID = "default"

// Selection is one raw (garment, color, size, quantity) tuple. Request
// scoped; never persisted as-is.
type Selection struct {
	GarmentID string `json:"garmentId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// SizeCounts maps size -> quantity.
type SizeCounts map[string]int

// ColorSizes maps color -> size -> quantity.
type ColorSizes map[string]SizeCounts

// Aggregated is the canonical output: per-garment nested quantities plus
// the single/multi cardinality decision.
type Aggregated struct {
	// MultiGarment is true when more than one distinct non-sentinel garment
	// appears in the input.
	MultiGarment bool `json:"multiGarment"`
	// PrimaryGarmentID is the first garment seen, kept as the legacy
	// single-garment projection for callers that persist the old shape.
	PrimaryGarmentID string `json:"primaryGarmentId"`
	// Garments holds the full nested quantities for every garment.
	Garments map[string]ColorSizes `json:"garments"`
	// TotalQuantity is the sum of every leaf. Always equals the sum of the
	// input quantities.
	TotalQuantity int `json:"totalQuantity"`
}

// Aggregate folds the tuples by garment, then color, then size, summing
// quantities. Zero and negative quantities are dropped so they cannot skew
// totals. Conservation holds: the sum of output leaves equals the sum of
// positive input quantities.
func Aggregate(selections []Selection) Aggregated {
	out := Aggregated{Garments: map[string]ColorSizes{}}
	distinct := map[string]struct{}{}
	for _, sel := range selections {
		if sel.Quantity <= 0 {
			continue
		}
		colors, ok := out.Garments[sel.GarmentID]
		if !ok {
			colors = ColorSizes{}
			out.Garments[sel.GarmentID] = colors
			if out.PrimaryGarmentID == "" {
				out.PrimaryGarmentID = sel.GarmentID
			}
		}
		sizes, ok := colors[sel.Color]
		if !ok {
			sizes = SizeCounts{}
			colors[sel.Color] = sizes
		}
		sizes[sel.Size] += sel.Quantity
		out.TotalQuantity += sel.Quantity
		if sel.GarmentID != DefaultGarmentID {
			distinct[sel.GarmentID] = struct{}{}
		}
	}
	out.MultiGarment = len(distinct) > 1
	return out
}

// Colors lists the distinct colors for a garment in sorted order.
func (a Aggregated) Colors(garmentID string) []string {
	colors := make([]string, 0, len(a.Garments[garmentID]))
	for color := range a.Garments[garmentID] {
		colors = append(colors, color)
	}
	sort.Strings(colors)
	return colors
}

// GarmentQuantity sums the leaves under one garment.
func (a Aggregated) GarmentQuantity(garmentID string) int {
	total := 0
	for _, sizes := range a.Garments[garmentID] {
		for _, qty := range sizes {
			total += qty
		}
	}
	return total
}

// Legacy returns the single-garment projection: the primary garment's id
// and its color/size quantities. For single-garment orders this is the
// whole order; for multi-garment orders it is the backward-compatible
// slice persisted alongside the full map.
func (a Aggregated) Legacy() (string, ColorSizes) {
	return a.PrimaryGarmentID, a.Garments[a.PrimaryGarmentID]
}

// Lines flattens the aggregate into per-garment quantity lines, sorted by
// garment id for deterministic pricing input.
func (a Aggregated) Lines() []Line {
	ids := make([]string, 0, len(a.Garments))
	for id := range a.Garments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lines := make([]Line, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, Line{GarmentID: id, Quantity: a.GarmentQuantity(id)})
	}
	return lines
}

// Line is one garment's total share of an aggregated order.
type Line struct {
	GarmentID string
	Quantity  int
}
