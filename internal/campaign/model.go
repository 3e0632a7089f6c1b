// Package campaign aggregates many participants' selections within a group
// campaign and settles them into exactly one production order at close.
package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/order"
)

// Payment styles.
const (
	PayStyleEveryonePays  = "everyone_pays"
	PayStyleOrganizerPays = "organizer_pays"
)

// Campaign statuses.
const (
	StatusActive    = "active"
	StatusClosed    = "closed"
	StatusCompleted = "completed"
)

// Participant order statuses.
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderConfirmed = "confirmed"
	OrderCancelled = "cancelled"
)

var (
	// ErrCampaignNotFound indicates an unknown campaign id.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignSettled indicates a mutation attempt on a settled campaign.
	ErrCampaignSettled = errors.New("campaign already settled")
	// ErrNoEligibleOrders indicates settlement found nothing billable.
	ErrNoEligibleOrders = errors.New("campaign has no eligible orders")
	// ErrGarmentNotConfigured indicates a participant order references a
	// garment without a campaign price.
	ErrGarmentNotConfigured = errors.New("garment not configured for campaign")
)

// GarmentConfig is the campaign's fixed, pre-negotiated price and color
// palette for one garment. No tier lookup applies; the organizer locked the
// price at campaign creation.
type GarmentConfig struct {
	Price  decimal.Decimal `json:"price"`
	Colors []string        `json:"colors"`
}

// Campaign is the aggregation root. FinalOrderID is set exactly once, at
// settlement; it doubles as the idempotency marker.
type Campaign struct {
	ID             uuid.UUID
	Name           string
	OrganizerEmail string
	GarmentConfigs map[string]GarmentConfig
	PaymentStyle   string
	Artwork        []artwork.Ref
	FinalOrderID   *uuid.UUID
	Status         string
	Deadline       *time.Time
	CreatedAt      time.Time
}

// Settled reports whether the campaign already has its production order.
func (c Campaign) Settled() bool { return c.FinalOrderID != nil }

// Order is one participant's selection within a campaign. Mutated only by
// payment/confirmation events; frozen once the campaign settles.
type Order struct {
	ID              uuid.UUID
	CampaignID      uuid.UUID
	ParticipantName string
	GarmentID       string
	Color           string
	Size            string
	Quantity        int
	Status          string
	CreatedAt       time.Time
}

// Eligible reports whether the order counts toward settlement under the
// campaign's payment style. Everyone-pays bills only orders the participant
// actually paid; organizer-pays bills everything not cancelled, because the
// organizer's single payment covers the lot.
func (o Order) Eligible(paymentStyle string) bool {
	if paymentStyle == PayStyleEveryonePays {
		return o.Status == OrderPaid
	}
	return o.Status != OrderCancelled
}

// Store is the campaign persistence boundary. ClaimSettlement must be a
// conditional write: it sets final_order_id only when still unset and
// reports whether this caller won. InTx scopes the claim and the production
// order insert to one transaction.
type Store interface {
	InsertCampaign(ctx context.Context, c Campaign) error
	Campaign(ctx context.Context, id uuid.UUID) (Campaign, bool, error)
	Orders(ctx context.Context, campaignID uuid.UUID) ([]Order, error)
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error
	ClaimSettlement(ctx context.Context, campaignID, finalOrderID uuid.UUID) (bool, error)
	InsertProduction(ctx context.Context, po order.ProductionOrder) error
	ProductionByID(ctx context.Context, id uuid.UUID) (order.ProductionOrder, bool, error)
	InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error
}
