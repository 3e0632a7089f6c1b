package selection

import (
	"math/rand"
	"testing"
)

func TestAggregateSumsDuplicateTuples(t *testing.T) {
	agg := Aggregate([]Selection{
		{GarmentID: "garmentA", Color: "Black", Size: "M", Quantity: 5},
		{GarmentID: "garmentA", Color: "Black", Size: "M", Quantity: 3},
	})
	if got := agg.Garments["garmentA"]["Black"]["M"]; got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
	if agg.MultiGarment {
		t.Fatal("single garment flagged as multi")
	}
	if agg.TotalQuantity != 8 {
		t.Fatalf("total = %d, want 8", agg.TotalQuantity)
	}
}

func TestAggregateConservation(t *testing.T) {
	garments := []string{"garmentA", "garmentB", "garmentC"}
	colors := []string{"Black", "White", "Navy"}
	sizes := []string{"S", "M", "L", "XL"}

	rng := rand.New(rand.NewSource(42))
	var input []Selection
	want := 0
	for i := 0; i < 500; i++ {
		qty := rng.Intn(12) + 1
		want += qty
		input = append(input, Selection{
			GarmentID: garments[rng.Intn(len(garments))],
			Color:     colors[rng.Intn(len(colors))],
			Size:      sizes[rng.Intn(len(sizes))],
			Quantity:  qty,
		})
	}
	agg := Aggregate(input)
	got := 0
	for _, colorSizes := range agg.Garments {
		for _, sizeCounts := range colorSizes {
			for _, qty := range sizeCounts {
				got += qty
			}
		}
	}
	if got != want {
		t.Fatalf("leaf sum %d != input sum %d", got, want)
	}
	if agg.TotalQuantity != want {
		t.Fatalf("TotalQuantity %d != input sum %d", agg.TotalQuantity, want)
	}
}

func TestAggregateDropsNonPositiveQuantities(t *testing.T) {
	agg := Aggregate([]Selection{
		{GarmentID: "garmentA", Color: "Black", Size: "M", Quantity: 0},
		{GarmentID: "garmentA", Color: "Black", Size: "M", Quantity: -4},
		{GarmentID: "garmentA", Color: "Black", Size: "L", Quantity: 2},
	})
	if agg.TotalQuantity != 2 {
		t.Fatalf("total = %d, want 2", agg.TotalQuantity)
	}
	if _, ok := agg.Garments["garmentA"]["Black"]["M"]; ok {
		t.Fatal("zero-quantity leaf should not exist")
	}
}

func TestAggregateCardinality(t *testing.T) {
	agg := Aggregate([]Selection{
		{GarmentID: "garmentA", Color: "Black", Size: "M", Quantity: 1},
		{GarmentID: "garmentB", Color: "White", Size: "L", Quantity: 2},
	})
	if !agg.MultiGarment {
		t.Fatal("two garments should be multi")
	}
	if agg.PrimaryGarmentID != "garmentA" {
		t.Fatalf("primary = %q, want garmentA", agg.PrimaryGarmentID)
	}

	// The sentinel id never counts toward cardinality.
	agg = Aggregate([]Selection{
		{GarmentID: DefaultGarmentID, Color: "Black", Size: "M", Quantity: 1},
		{GarmentID: "garmentB", Color: "White", Size: "L", Quantity: 2},
	})
	if agg.MultiGarment {
		t.Fatal("sentinel garment should not trigger multi")
	}
}

func TestLegacyProjection(t *testing.T) {
	agg := Aggregate([]Selection{
		{GarmentID: "garmentB", Color: "White", Size: "L", Quantity: 2},
		{GarmentID: "garmentA", Color: "Black", Size: "M", Quantity: 1},
	})
	id, colorSizes := agg.Legacy()
	if id != "garmentB" {
		t.Fatalf("legacy garment = %q, want first seen garmentB", id)
	}
	if colorSizes["White"]["L"] != 2 {
		t.Fatalf("legacy projection lost quantities: %#v", colorSizes)
	}
}

func TestLinesSortedAndTotalled(t *testing.T) {
	agg := Aggregate([]Selection{
		{GarmentID: "zeta", Color: "Black", Size: "M", Quantity: 4},
		{GarmentID: "alpha", Color: "Black", Size: "M", Quantity: 2},
		{GarmentID: "zeta", Color: "White", Size: "S", Quantity: 1},
	})
	lines := agg.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].GarmentID != "alpha" || lines[0].Quantity != 2 {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if lines[1].GarmentID != "zeta" || lines[1].Quantity != 5 {
		t.Fatalf("unexpected second line %+v", lines[1])
	}
}
