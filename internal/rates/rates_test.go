package rates

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func ladder() []QuantityTier {
	return []QuantityTier{
		{ID: "t1", PricingFamily: "standard", MinQty: 24, MaxQty: intPtr(49), MarkupPercent: decimal.NewFromInt(60)},
		{ID: "t2", PricingFamily: "standard", MinQty: 50, MaxQty: intPtr(99), MarkupPercent: decimal.NewFromInt(50)},
		{ID: "t3", PricingFamily: "standard", MinQty: 100, MaxQty: nil, MarkupPercent: decimal.NewFromInt(40)},
	}
}

func TestResolveEveryQuantityHitsExactlyOneTier(t *testing.T) {
	tiers := ladder()
	for qty := 24; qty <= 300; qty++ {
		matches := 0
		for _, tier := range tiers {
			if tier.Contains(qty) {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("qty %d matched %d tiers, want 1", qty, matches)
		}
		tier, err := Resolve(tiers, qty)
		if err != nil {
			t.Fatalf("qty %d: unexpected error %v", qty, err)
		}
		if !tier.Contains(qty) {
			t.Fatalf("qty %d resolved to tier %s outside its range", qty, tier.ID)
		}
	}
}

func TestResolveBoundaries(t *testing.T) {
	tiers := ladder()
	cases := []struct {
		qty  int
		want string
	}{
		{24, "t1"},
		{49, "t1"},
		{50, "t2"},
		{99, "t2"},
		{100, "t3"},
		{10000, "t3"},
	}
	for _, tc := range cases {
		tier, err := Resolve(tiers, tc.qty)
		if err != nil {
			t.Fatalf("qty %d: %v", tc.qty, err)
		}
		if tier.ID != tc.want {
			t.Fatalf("qty %d resolved to %s, want %s", tc.qty, tier.ID, tc.want)
		}
	}
}

func TestResolvePrefersHighestMinQtyOnOverlap(t *testing.T) {
	tiers := []QuantityTier{
		{ID: "wide", MinQty: 24, MaxQty: nil},
		{ID: "narrow", MinQty: 50, MaxQty: intPtr(99)},
	}
	tier, err := Resolve(tiers, 60)
	if err != nil {
		t.Fatal(err)
	}
	if tier.ID != "narrow" {
		t.Fatalf("overlap resolved to %s, want narrow", tier.ID)
	}
}

func TestResolveBelowAllTiers(t *testing.T) {
	_, err := Resolve(ladder(), 5)
	if !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("got %v, want ErrTierNotFound", err)
	}
}

func TestStaticSourceScopesByFamily(t *testing.T) {
	src := Static{
		Tiers: append(ladder(), QuantityTier{
			ID: "p1", PricingFamily: "premium", MinQty: 24, MaxQty: nil,
			MarkupPercent: decimal.NewFromInt(80),
		}),
	}
	tier, err := src.ResolveTier(context.Background(), "premium", 200)
	if err != nil {
		t.Fatal(err)
	}
	if tier.ID != "p1" {
		t.Fatalf("resolved %s, want p1", tier.ID)
	}
	if _, err := src.ResolveTier(context.Background(), "unknown", 200); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("got %v, want ErrTierNotFound", err)
	}
}
