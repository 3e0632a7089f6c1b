package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/order"
	"github.com/threadworks/printshop-api/internal/quote"
	"github.com/threadworks/printshop-api/internal/selection"
)

// OrderStore implements order.Store against postgres. The zero-value db is
// the pool; InTx yields a copy routed through one transaction so the atomic
// pending-order consume and the production-order insert commit together.
type OrderStore struct {
	Pool *pgxpool.Pool
	db   querier
}

// NewOrderStore builds a pool-backed store.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{Pool: pool, db: pool}
}

// InTx runs fn with a transaction-scoped copy of the store.
func (s *OrderStore) InTx(ctx context.Context, fn func(ctx context.Context, st order.Store) error) error {
	return inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		return fn(ctx, &OrderStore{Pool: s.Pool, db: tx})
	})
}

// InsertPending writes the transient checkout record.
func (s *OrderStore) InsertPending(ctx context.Context, pending order.PendingOrder) error {
	const q = `
INSERT INTO pending_orders (id, customer_name, customer_email, selections, print_config, artwork, discount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	selections, err := json.Marshal(pending.Selections)
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}
	printConfig, err := json.Marshal(pending.PrintConfig)
	if err != nil {
		return fmt.Errorf("encode print config: %w", err)
	}
	artworkRefs, err := json.Marshal(pending.Artwork)
	if err != nil {
		return fmt.Errorf("encode artwork: %w", err)
	}
	_, err = s.db.Exec(ctx, q,
		pending.ID, pending.CustomerName, pending.CustomerEmail,
		selections, printConfig, artworkRefs,
		pending.Discount.String(), pending.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pending order: %w", err)
	}
	return nil
}

// ConsumePending deletes the pending order and returns its prior contents in
// one statement. The DELETE ... RETURNING is the mutual-exclusion point: the
// row can only be returned to one caller, ever.
func (s *OrderStore) ConsumePending(ctx context.Context, id uuid.UUID) (order.PendingOrder, bool, error) {
	const q = `
DELETE FROM pending_orders
WHERE id = $1
RETURNING id, customer_name, customer_email, selections, print_config, artwork, discount::text, created_at`
	var (
		pending                            order.PendingOrder
		selections, printConfig, artworkJS []byte
		discountRaw                        string
	)
	err := s.db.QueryRow(ctx, q, id).Scan(
		&pending.ID, &pending.CustomerName, &pending.CustomerEmail,
		&selections, &printConfig, &artworkJS, &discountRaw, &pending.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.PendingOrder{}, false, nil
	}
	if err != nil {
		return order.PendingOrder{}, false, fmt.Errorf("consume pending order: %w", err)
	}
	if err := json.Unmarshal(selections, &pending.Selections); err != nil {
		return order.PendingOrder{}, false, fmt.Errorf("decode selections: %w", err)
	}
	if err := json.Unmarshal(printConfig, &pending.PrintConfig); err != nil {
		return order.PendingOrder{}, false, fmt.Errorf("decode print config: %w", err)
	}
	if len(artworkJS) > 0 {
		if err := json.Unmarshal(artworkJS, &pending.Artwork); err != nil {
			return order.PendingOrder{}, false, fmt.Errorf("decode artwork: %w", err)
		}
	}
	if pending.Discount, err = parseDecimal(discountRaw); err != nil {
		return order.PendingOrder{}, false, err
	}
	return pending, true, nil
}

// InsertProduction writes the durable order. payment_reference carries a
// unique index, so even a logic bug upstream cannot yield two orders for one
// payment.
func (s *OrderStore) InsertProduction(ctx context.Context, po order.ProductionOrder) error {
	const q = `
INSERT INTO production_orders (
	id, payment_reference, customer_name, customer_email, total_quantity,
	selections, print_config, artwork, pricing_breakdown,
	total_cost, deposit_amount, balance_due, deposit_paid, status, campaign_id, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	selections, err := json.Marshal(po.Selections)
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}
	printConfig, err := json.Marshal(po.PrintConfig)
	if err != nil {
		return fmt.Errorf("encode print config: %w", err)
	}
	artworkRefs, err := json.Marshal(po.Artwork)
	if err != nil {
		return fmt.Errorf("encode artwork: %w", err)
	}
	breakdown, err := json.Marshal(po.Breakdown)
	if err != nil {
		return fmt.Errorf("encode breakdown: %w", err)
	}
	paymentRef := any(po.PaymentRef)
	if po.PaymentRef == "" {
		paymentRef = nil
	}
	_, err = s.db.Exec(ctx, q,
		po.ID, paymentRef, po.CustomerName, po.CustomerEmail, po.TotalQuantity,
		selections, printConfig, artworkRefs, breakdown,
		po.TotalCost.String(), po.DepositAmount.String(), po.BalanceDue.String(),
		po.DepositPaid, po.Status, po.CampaignID, po.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert production order: %w", err)
	}
	return nil
}

// ProductionByPaymentRef is the idempotent fast-path lookup.
func (s *OrderStore) ProductionByPaymentRef(ctx context.Context, paymentRef string) (order.ProductionOrder, bool, error) {
	return s.fetchProduction(ctx, `payment_reference = $1`, paymentRef)
}

// ProductionByID looks a production order up by primary key.
func (s *OrderStore) ProductionByID(ctx context.Context, id uuid.UUID) (order.ProductionOrder, bool, error) {
	return s.fetchProduction(ctx, `id = $1`, id)
}

func (s *OrderStore) fetchProduction(ctx context.Context, where string, arg any) (order.ProductionOrder, bool, error) {
	q := `
SELECT id, COALESCE(payment_reference, ''), customer_name, customer_email, total_quantity,
	selections, print_config, artwork, pricing_breakdown,
	total_cost::text, deposit_amount::text, balance_due::text,
	deposit_paid, status, campaign_id, created_at
FROM production_orders
WHERE ` + where
	var (
		po                                              order.ProductionOrder
		selections, printConfig, artworkJS, breakdownJS []byte
		totalRaw, depositRaw, balanceRaw                string
	)
	err := s.db.QueryRow(ctx, q, arg).Scan(
		&po.ID, &po.PaymentRef, &po.CustomerName, &po.CustomerEmail, &po.TotalQuantity,
		&selections, &printConfig, &artworkJS, &breakdownJS,
		&totalRaw, &depositRaw, &balanceRaw,
		&po.DepositPaid, &po.Status, &po.CampaignID, &po.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.ProductionOrder{}, false, nil
	}
	if err != nil {
		return order.ProductionOrder{}, false, fmt.Errorf("fetch production order: %w", err)
	}
	if err := decodeProductionJSON(&po, selections, printConfig, artworkJS, breakdownJS); err != nil {
		return order.ProductionOrder{}, false, err
	}
	if po.TotalCost, err = parseDecimal(totalRaw); err != nil {
		return order.ProductionOrder{}, false, err
	}
	if po.DepositAmount, err = parseDecimal(depositRaw); err != nil {
		return order.ProductionOrder{}, false, err
	}
	if po.BalanceDue, err = parseDecimal(balanceRaw); err != nil {
		return order.ProductionOrder{}, false, err
	}
	return po, true, nil
}

func decodeProductionJSON(po *order.ProductionOrder, selections, printConfig, artworkJS, breakdownJS []byte) error {
	po.Selections = selection.Aggregated{}
	if err := json.Unmarshal(selections, &po.Selections); err != nil {
		return fmt.Errorf("decode selections: %w", err)
	}
	po.PrintConfig = quote.PrintConfig{}
	if len(printConfig) > 0 {
		if err := json.Unmarshal(printConfig, &po.PrintConfig); err != nil {
			return fmt.Errorf("decode print config: %w", err)
		}
	}
	if len(artworkJS) > 0 {
		var refs []artwork.Ref
		if err := json.Unmarshal(artworkJS, &refs); err != nil {
			return fmt.Errorf("decode artwork: %w", err)
		}
		po.Artwork = refs
	}
	if err := json.Unmarshal(breakdownJS, &po.Breakdown); err != nil {
		return fmt.Errorf("decode breakdown: %w", err)
	}
	return nil
}
