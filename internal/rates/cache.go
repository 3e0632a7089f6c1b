package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedSource decorates a Source with a Redis read-through cache. Rate
// tables change rarely, so a short TTL is enough to keep quote previews off
// the database. A cache failure falls through to the inner source; pricing
// never depends on Redis being up.
type CachedSource struct {
	Inner  Source
	Client *redis.Client
	TTL    time.Duration
}

// ResolveTier caches per (family, quantity).
func (c CachedSource) ResolveTier(ctx context.Context, family string, qty int) (QuantityTier, error) {
	key := fmt.Sprintf("rates:tier:%s:%d", family, qty)
	var tier QuantityTier
	if c.getJSON(ctx, key, &tier) {
		return tier, nil
	}
	tier, err := c.Inner.ResolveTier(ctx, family, qty)
	if err != nil {
		return QuantityTier{}, err
	}
	c.setJSON(ctx, key, tier)
	return tier, nil
}

// PrintRate caches per (tier, colors).
func (c CachedSource) PrintRate(ctx context.Context, tierID string, numColors int) (PrintRate, error) {
	key := fmt.Sprintf("rates:print:%s:%d", tierID, numColors)
	var rate PrintRate
	if c.getJSON(ctx, key, &rate) {
		return rate, nil
	}
	rate, err := c.Inner.PrintRate(ctx, tierID, numColors)
	if err != nil {
		return PrintRate{}, err
	}
	c.setJSON(ctx, key, rate)
	return rate, nil
}

// Garment caches per garment id.
func (c CachedSource) Garment(ctx context.Context, id string) (Garment, error) {
	key := "rates:garment:" + id
	var g Garment
	if c.getJSON(ctx, key, &g) {
		return g, nil
	}
	g, err := c.Inner.Garment(ctx, id)
	if err != nil {
		return Garment{}, err
	}
	c.setJSON(ctx, key, g)
	return g, nil
}

func (c CachedSource) getJSON(ctx context.Context, key string, dst any) bool {
	if c.Client == nil {
		return false
	}
	data, err := c.Client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (c CachedSource) setJSON(ctx context.Context, key string, v any) {
	if c.Client == nil || c.TTL <= 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.Client.Set(ctx, key, data, c.TTL).Err()
}
