// Seeder loads the pricing reference data: quantity tiers, per-tier print
// rates, and the garment catalog. Safe to re-run; every insert upserts.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/threadworks/printshop-api/internal/app"
)

type tier struct {
	id     string
	name   string
	family string
	minQty int
	maxQty *int
	markup string
}

type printRate struct {
	tierID    string
	numColors int
	perShirt  string
	perScreen string
}

type garment struct {
	id       string
	name     string
	baseCost string
	family   string
	colors   string
}

func intp(v int) *int { return &v }

var tiers = []tier{
	{"std-24", "24-47", "standard", 24, intp(47), "80"},
	{"std-48", "48-71", "standard", 48, intp(71), "65"},
	{"std-72", "72-143", "standard", 72, intp(143), "50"},
	{"std-144", "144-287", "standard", 144, intp(287), "40"},
	{"std-288", "288+", "standard", 288, nil, "35"},
	{"prm-24", "24-71 premium", "premium", 24, intp(71), "70"},
	{"prm-72", "72-143 premium", "premium", 72, intp(143), "55"},
	{"prm-144", "144+ premium", "premium", 144, nil, "45"},
}

var printRates = []printRate{
	{"std-24", 1, "3.25", "30"},
	{"std-24", 2, "4.50", "30"},
	{"std-24", 3, "5.75", "30"},
	{"std-24", 4, "7.00", "30"},
	{"std-48", 1, "2.75", "25"},
	{"std-48", 2, "3.75", "25"},
	{"std-48", 3, "4.75", "25"},
	{"std-48", 4, "5.75", "25"},
	{"std-72", 1, "2.25", "25"},
	{"std-72", 2, "3.00", "25"},
	{"std-72", 3, "3.75", "25"},
	{"std-72", 4, "4.50", "25"},
	{"std-144", 1, "1.75", "20"},
	{"std-144", 2, "2.35", "20"},
	{"std-144", 3, "2.95", "20"},
	{"std-144", 4, "3.55", "20"},
	{"std-288", 1, "1.40", "20"},
	{"std-288", 2, "1.90", "20"},
	{"std-288", 3, "2.40", "20"},
	{"std-288", 4, "2.90", "20"},
	{"prm-24", 1, "3.50", "30"},
	{"prm-24", 2, "4.75", "30"},
	{"prm-24", 3, "6.00", "30"},
	{"prm-24", 4, "7.25", "30"},
	{"prm-72", 1, "2.50", "25"},
	{"prm-72", 2, "3.25", "25"},
	{"prm-72", 3, "4.00", "25"},
	{"prm-72", 4, "4.75", "25"},
	{"prm-144", 1, "2.00", "20"},
	{"prm-144", 2, "2.60", "20"},
	{"prm-144", 3, "3.20", "20"},
	{"prm-144", 4, "3.80", "20"},
}

var garments = []garment{
	{"classic-tee", "Classic Cotton Tee", "5.00", "standard", `["White","Black","Navy","Red","Sport Grey"]`},
	{"heavy-tee", "Heavyweight Tee", "6.25", "standard", `["White","Black","Charcoal","Maroon"]`},
	{"long-sleeve", "Long Sleeve Tee", "8.50", "standard", `["White","Black","Navy"]`},
	{"crewneck", "Crewneck Sweatshirt", "12.00", "premium", `["Black","Heather Grey","Navy"]`},
	{"hoodie", "Pullover Hoodie", "15.50", "premium", `["Black","Heather Grey","Navy","Forest"]`},
	{"zip-hoodie", "Zip Hoodie", "19.00", "premium", `["Black","Heather Grey"]`},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.MigrateUp(dbURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	if err := seed(ctx, pool); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Println("Seeding completed successfully!")
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	for _, t := range tiers {
		_, err := pool.Exec(ctx, `
INSERT INTO quantity_tiers (id, name, pricing_family, min_qty, max_qty, markup_percent)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	pricing_family = EXCLUDED.pricing_family,
	min_qty = EXCLUDED.min_qty,
	max_qty = EXCLUDED.max_qty,
	markup_percent = EXCLUDED.markup_percent`,
			t.id, t.name, t.family, t.minQty, t.maxQty, t.markup)
		if err != nil {
			return fmt.Errorf("seed tier %s: %w", t.id, err)
		}
	}
	log.Printf("Seeded %d quantity tiers", len(tiers))

	for _, r := range printRates {
		_, err := pool.Exec(ctx, `
INSERT INTO print_rates (tier_id, num_colors, cost_per_shirt, setup_fee_per_screen)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tier_id, num_colors) DO UPDATE SET
	cost_per_shirt = EXCLUDED.cost_per_shirt,
	setup_fee_per_screen = EXCLUDED.setup_fee_per_screen`,
			r.tierID, r.numColors, r.perShirt, r.perScreen)
		if err != nil {
			return fmt.Errorf("seed print rate %s/%d: %w", r.tierID, r.numColors, err)
		}
	}
	log.Printf("Seeded %d print rates", len(printRates))

	for _, g := range garments {
		_, err := pool.Exec(ctx, `
INSERT INTO garments (id, name, base_cost, pricing_family, available_colors)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	base_cost = EXCLUDED.base_cost,
	pricing_family = EXCLUDED.pricing_family,
	available_colors = EXCLUDED.available_colors`,
			g.id, g.name, g.baseCost, g.family, g.colors)
		if err != nil {
			return fmt.Errorf("seed garment %s: %w", g.id, err)
		}
	}
	log.Printf("Seeded %d garments", len(garments))
	return nil
}
