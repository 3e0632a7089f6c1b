package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/events"
	"github.com/threadworks/printshop-api/internal/lock"
	"github.com/threadworks/printshop-api/internal/obs"
	"github.com/threadworks/printshop-api/internal/order"
	"github.com/threadworks/printshop-api/internal/quote"
	"github.com/threadworks/printshop-api/internal/selection"
)

// Settler closes campaigns: it aggregates the eligible participant orders,
// prices them at the campaign's fixed garment prices, and creates the single
// production order. Safe to trigger repeatedly; only the first call creates
// anything.
type Settler struct {
	Store          Store
	Locker         *lock.Locker
	Events         *events.Bus
	Log            zerolog.Logger
	DepositPercent int
	LockTTL        time.Duration
}

// Settle settles the campaign and returns its production order. When the
// campaign is already settled the existing order is returned unchanged.
func (s *Settler) Settle(ctx context.Context, campaignID uuid.UUID) (order.ProductionOrder, error) {
	var zero order.ProductionOrder
	if s == nil || s.Store == nil {
		return zero, errors.New("campaign settler not configured")
	}
	ctx, span := otel.Tracer("campaign.Settler").Start(ctx, "Settler.Settle")
	defer span.End()
	span.SetAttributes(attribute.String("campaign.id", campaignID.String()))

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("campaign.settle.result", result))
		if obs.SettlementTotal != nil {
			obs.SettlementTotal.WithLabelValues(result).Inc()
		}
	}()

	if s.Locker != nil {
		ttl := s.LockTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		var po order.ProductionOrder
		err := s.Locker.WithLock(ctx, "campaign:settle:"+campaignID.String(), ttl, func(ctx context.Context) error {
			var innerErr error
			po, innerErr = s.settle(ctx, campaignID, &result)
			return innerErr
		})
		return po, err
	}
	return s.settle(ctx, campaignID, &result)
}

func (s *Settler) settle(ctx context.Context, campaignID uuid.UUID, result *string) (order.ProductionOrder, error) {
	var zero order.ProductionOrder
	c, ok, err := s.Store.Campaign(ctx, campaignID)
	if err != nil {
		return zero, fmt.Errorf("load campaign: %w", err)
	}
	if !ok {
		return zero, ErrCampaignNotFound
	}
	if c.Settled() {
		po, ok, err := s.Store.ProductionByID(ctx, *c.FinalOrderID)
		if err != nil {
			return zero, fmt.Errorf("load settled order: %w", err)
		}
		if !ok {
			return zero, fmt.Errorf("campaign %s references missing order %s", c.ID, *c.FinalOrderID)
		}
		*result = "replayed"
		return po, nil
	}

	orders, err := s.Store.Orders(ctx, campaignID)
	if err != nil {
		return zero, fmt.Errorf("load campaign orders: %w", err)
	}
	po, err := s.buildOrder(c, orders)
	if err != nil {
		return zero, err
	}

	won := false
	err = s.Store.InTx(ctx, func(ctx context.Context, st Store) error {
		// The claim and the insert share one transaction: two concurrent
		// triggers cannot both pass the "is it set?" check.
		won, err = st.ClaimSettlement(ctx, campaignID, po.ID)
		if err != nil {
			return fmt.Errorf("claim settlement: %w", err)
		}
		if !won {
			return nil
		}
		if err := st.InsertProduction(ctx, po); err != nil {
			return fmt.Errorf("insert production order: %w", err)
		}
		return nil
	})
	if err != nil {
		return zero, err
	}
	if !won {
		// Another trigger settled first; hand back its order.
		fresh, ok, err := s.Store.Campaign(ctx, campaignID)
		if err != nil || !ok || !fresh.Settled() {
			return zero, fmt.Errorf("campaign %s settled concurrently but final order not visible", campaignID)
		}
		existing, ok, err := s.Store.ProductionByID(ctx, *fresh.FinalOrderID)
		if err != nil || !ok {
			return zero, fmt.Errorf("campaign %s settled concurrently but final order not visible", campaignID)
		}
		*result = "replayed"
		return existing, nil
	}

	*result = "settled"
	s.Log.Info().
		Str("campaign_id", campaignID.String()).
		Str("order_id", po.ID.String()).
		Int("total_quantity", po.TotalQuantity).
		Str("total", po.TotalCost.String()).
		Msg("campaign settled")
	s.emitSettled(ctx, c, po)
	return po, nil
}

// buildOrder aggregates eligible orders and prices them with the campaign's
// fixed garment prices. No tier lookup, no setup fees.
func (s *Settler) buildOrder(c Campaign, orders []Order) (order.ProductionOrder, error) {
	var zero order.ProductionOrder
	var sels []selection.Selection
	for _, o := range orders {
		if !o.Eligible(c.PaymentStyle) {
			continue
		}
		sels = append(sels, selection.Selection{
			GarmentID: o.GarmentID,
			Color:     o.Color,
			Size:      o.Size,
			Quantity:  o.Quantity,
		})
	}
	agg := selection.Aggregate(sels)
	if agg.TotalQuantity == 0 {
		return zero, ErrNoEligibleOrders
	}

	bd := quote.Breakdown{TotalQuantity: agg.TotalQuantity}
	for _, line := range agg.Lines() {
		cfg, ok := c.GarmentConfigs[line.GarmentID]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrGarmentNotConfigured, line.GarmentID)
		}
		cost := quote.GarmentCost{
			GarmentID:   line.GarmentID,
			Quantity:    line.Quantity,
			CostPerUnit: cfg.Price,
			CostTotal:   cfg.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
		bd.GarmentCosts = append(bd.GarmentCosts, cost)
		bd.GarmentCostTotal = bd.GarmentCostTotal.Add(cost.CostTotal)
	}
	bd.Total = bd.GarmentCostTotal.Round(2)
	bd.PerUnitPrice = bd.Total.Div(decimal.NewFromInt(int64(agg.TotalQuantity))).Round(2)

	depositPaid := false
	if c.PaymentStyle == PayStyleEveryonePays {
		// Participants already paid in full; nothing remains due.
		bd.DepositAmount = bd.Total
		bd.BalanceDue = decimal.Zero
		depositPaid = true
	} else {
		pct := s.DepositPercent
		if pct <= 0 || pct > 100 {
			pct = 50
		}
		bd.DepositAmount = bd.Total.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2)
		bd.BalanceDue = bd.Total.Sub(bd.DepositAmount)
	}

	campaignID := c.ID
	return order.ProductionOrder{
		ID:            uuid.New(),
		CustomerName:  c.Name,
		CustomerEmail: c.OrganizerEmail,
		TotalQuantity: agg.TotalQuantity,
		Selections:    agg,
		Artwork:       artwork.CopyRefs(c.Artwork),
		Breakdown:     bd,
		TotalCost:     bd.Total,
		DepositAmount: bd.DepositAmount,
		BalanceDue:    bd.BalanceDue,
		DepositPaid:   depositPaid,
		Status:        order.StatusPendingProduction,
		CampaignID:    &campaignID,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// emitSettled is fire-and-forget: a notification failure never rolls back
// or re-triggers settlement.
func (s *Settler) emitSettled(ctx context.Context, c Campaign, po order.ProductionOrder) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"campaignId":    c.ID.String(),
		"orderId":       po.ID.String(),
		"totalQuantity": po.TotalQuantity,
		"total":         po.TotalCost.String(),
		"email":         c.OrganizerEmail,
	}
	if _, err := s.Events.Emit(ctx, events.TopicCampaignSettled, c.ID, payload); err != nil {
		s.Log.Warn().Err(err).Str("campaign_id", c.ID.String()).Msg("campaign settled notification failed")
		if obs.NotifyFailuresTotal != nil {
			obs.NotifyFailuresTotal.Inc()
		}
	}
}

// Join records a participant order on an open campaign.
func (s *Settler) Join(ctx context.Context, campaignID uuid.UUID, o Order) (Order, error) {
	var zero Order
	c, ok, err := s.Store.Campaign(ctx, campaignID)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrCampaignNotFound
	}
	if c.Settled() || c.Status == StatusCompleted {
		return zero, ErrCampaignSettled
	}
	cfg, ok := c.GarmentConfigs[o.GarmentID]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrGarmentNotConfigured, o.GarmentID)
	}
	if len(cfg.Colors) > 0 && !contains(cfg.Colors, o.Color) {
		return zero, fmt.Errorf("color %q not offered for garment %s", o.Color, o.GarmentID)
	}
	if o.Quantity <= 0 {
		return zero, errors.New("quantity must be positive")
	}
	o.ID = uuid.New()
	o.CampaignID = campaignID
	o.Status = OrderPending
	o.CreatedAt = time.Now().UTC()
	if err := s.Store.InsertOrder(ctx, o); err != nil {
		return zero, err
	}
	return o, nil
}

// MarkOrderStatus applies a payment or cancellation event to a participant
// order. Settled campaigns are immutable.
func (s *Settler) MarkOrderStatus(ctx context.Context, campaignID, orderID uuid.UUID, status string) error {
	switch status {
	case OrderPaid, OrderConfirmed, OrderCancelled:
	default:
		return fmt.Errorf("invalid order status %q", status)
	}
	c, ok, err := s.Store.Campaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCampaignNotFound
	}
	if c.Settled() {
		return ErrCampaignSettled
	}
	return s.Store.UpdateOrderStatus(ctx, orderID, status)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
