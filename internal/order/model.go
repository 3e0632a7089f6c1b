// Package order converts transient pending orders into durable production
// orders exactly once, regardless of how many payment callbacks and client
// confirmation polls race to trigger the conversion.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/quote"
	"github.com/threadworks/printshop-api/internal/selection"
)

// ErrOrderInFlight means another caller consumed the pending order but its
// production order is not visible yet. Retryable: back off and call again.
var ErrOrderInFlight = errors.New("order is being processed by a concurrent request")

// ErrPendingNotFound means the pending order does not exist and no
// production order carries the payment reference either.
var ErrPendingNotFound = errors.New("pending order not found")

// Production order statuses.
const (
	StatusPendingProduction = "pending_production"
	StatusInProduction      = "in_production"
	StatusCompleted         = "completed"
)

// PendingOrder is the transient record written at checkout submission. Its
// lifecycle is two-state: it exists, or it has been consumed. Consumption
// happens exactly once, inside Materialize.
type PendingOrder struct {
	ID            uuid.UUID
	CustomerName  string
	CustomerEmail string
	Selections    []selection.Selection
	PrintConfig   quote.PrintConfig
	Artwork       []artwork.Ref
	Discount      decimal.Decimal
	CreatedAt     time.Time
}

// ProductionOrder is the durable, billable order.
type ProductionOrder struct {
	ID            uuid.UUID
	PaymentRef    string
	CustomerName  string
	CustomerEmail string
	TotalQuantity int
	Selections    selection.Aggregated
	PrintConfig   quote.PrintConfig
	Artwork       []artwork.Ref
	Breakdown     quote.Breakdown
	TotalCost     decimal.Decimal
	DepositAmount decimal.Decimal
	BalanceDue    decimal.Decimal
	DepositPaid   bool
	Status        string
	CampaignID    *uuid.UUID
	CreatedAt     time.Time
}

// Store is the order persistence boundary. ConsumePending must be a single
// atomic delete-and-return against the backing store: at most one caller may
// ever observe ok == true for a given id. A read followed by a delete does
// not satisfy the contract.
type Store interface {
	InsertPending(ctx context.Context, pending PendingOrder) error
	ConsumePending(ctx context.Context, id uuid.UUID) (PendingOrder, bool, error)
	ProductionByPaymentRef(ctx context.Context, paymentRef string) (ProductionOrder, bool, error)
	ProductionByID(ctx context.Context, id uuid.UUID) (ProductionOrder, bool, error)
	InsertProduction(ctx context.Context, production ProductionOrder) error
	// InTx runs fn with a Store whose operations share one transaction.
	// Stores without transactional backing may pass themselves through,
	// provided ConsumePending stays atomic.
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
