package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/events"
	"github.com/threadworks/printshop-api/internal/obs"
	"github.com/threadworks/printshop-api/internal/quote"
	"github.com/threadworks/printshop-api/internal/selection"
)

// Materializer turns a pending order into a production order exactly once.
// Both the payment-provider callback and the client confirmation poll call
// Materialize with the same pending order id and payment reference, possibly
// concurrently and more than once each.
type Materializer struct {
	Store  Store
	Calc   *quote.Calculator
	Events *events.Bus
	Log    zerolog.Logger
}

// Materialize resolves to the single production order for the given pending
// order. The mutual-exclusion point is the store's atomic delete-and-return:
// exactly one caller observes the pending order's contents and creates the
// production order inside the same transaction. Losers either find the
// winner's order by payment reference or get ErrOrderInFlight and retry.
//
// trigger is a metrics label ("webhook" or "confirm").
func (m *Materializer) Materialize(ctx context.Context, pendingID uuid.UUID, paymentRef, trigger string) (ProductionOrder, error) {
	var zero ProductionOrder
	if m == nil || m.Store == nil || m.Calc == nil {
		return zero, errors.New("order materializer not configured")
	}
	if paymentRef == "" {
		return zero, errors.New("payment reference is required")
	}
	ctx, span := otel.Tracer("order.Materializer").Start(ctx, "Materializer.Materialize")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.pending_id", pendingID.String()),
		attribute.String("order.trigger", trigger),
	)

	result := "error"
	defer func() {
		span.SetAttributes(attribute.String("order.materialize.result", result))
		if obs.MaterializeTotal != nil {
			obs.MaterializeTotal.WithLabelValues(trigger, result).Inc()
		}
	}()

	// Fast path: a previous invocation already finished.
	if existing, ok, err := m.Store.ProductionByPaymentRef(ctx, paymentRef); err != nil {
		return zero, fmt.Errorf("lookup production order: %w", err)
	} else if ok {
		result = "replayed"
		return existing, nil
	}

	var created ProductionOrder
	won := false
	err := m.Store.InTx(ctx, func(ctx context.Context, s Store) error {
		pending, ok, err := s.ConsumePending(ctx, pendingID)
		if err != nil {
			return fmt.Errorf("consume pending order: %w", err)
		}
		if !ok {
			// Lost the race (or the id never existed). Decided after commit.
			return nil
		}
		won = true
		created, err = m.build(ctx, pending, paymentRef)
		if err != nil {
			return err
		}
		if err := s.InsertProduction(ctx, created); err != nil {
			return fmt.Errorf("insert production order: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return zero, err
	}

	if !won {
		// Another caller consumed the pending order. If its transaction has
		// committed the production order is visible now; otherwise the
		// caller must retry shortly.
		existing, ok, lookupErr := m.Store.ProductionByPaymentRef(ctx, paymentRef)
		if lookupErr != nil {
			return zero, fmt.Errorf("lookup production order: %w", lookupErr)
		}
		if ok {
			result = "replayed"
			return existing, nil
		}
		result = "conflict"
		return zero, ErrOrderInFlight
	}

	result = "created"
	m.Log.Info().
		Str("pending_order_id", pendingID.String()).
		Str("order_id", created.ID.String()).
		Str("payment_ref", paymentRef).
		Int("total_quantity", created.TotalQuantity).
		Msg("production order materialized")
	m.emitMaterialized(ctx, created)
	return created, nil
}

// build computes the quote from the pending order's stored selections and
// assembles the production order.
func (m *Materializer) build(ctx context.Context, pending PendingOrder, paymentRef string) (ProductionOrder, error) {
	agg := selection.Aggregate(pending.Selections)
	lines := make([]quote.GarmentLine, 0, len(agg.Garments))
	for _, line := range agg.Lines() {
		lines = append(lines, quote.GarmentLine{GarmentID: line.GarmentID, Quantity: line.Quantity})
	}
	bd, err := m.Calc.CalculateMulti(ctx, lines, pending.PrintConfig, pending.Discount)
	if err != nil {
		return ProductionOrder{}, fmt.Errorf("price pending order: %w", err)
	}
	if bd.Degraded && obs.QuoteTotal != nil {
		obs.QuoteTotal.WithLabelValues("degraded").Inc()
	}
	return ProductionOrder{
		ID:            uuid.New(),
		PaymentRef:    paymentRef,
		CustomerName:  pending.CustomerName,
		CustomerEmail: pending.CustomerEmail,
		TotalQuantity: agg.TotalQuantity,
		Selections:    agg,
		PrintConfig:   pending.PrintConfig,
		Artwork:       artwork.CopyRefs(pending.Artwork),
		Breakdown:     bd,
		TotalCost:     bd.Total,
		DepositAmount: bd.DepositAmount,
		BalanceDue:    bd.BalanceDue,
		DepositPaid:   true,
		Status:        StatusPendingProduction,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

func (m *Materializer) emitMaterialized(ctx context.Context, po ProductionOrder) {
	if m.Events == nil {
		return
	}
	payload := map[string]any{
		"orderId":       po.ID.String(),
		"paymentRef":    po.PaymentRef,
		"totalQuantity": po.TotalQuantity,
		"total":         po.TotalCost.String(),
		"email":         po.CustomerEmail,
	}
	if _, err := m.Events.Emit(ctx, events.TopicOrderMaterialized, po.ID, payload); err != nil {
		m.Log.Warn().Err(err).Str("order_id", po.ID.String()).Msg("order materialized notification failed")
		if obs.NotifyFailuresTotal != nil {
			obs.NotifyFailuresTotal.Inc()
		}
	}
}
