package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/threadworks/printshop-api/internal/campaign"
	"github.com/threadworks/printshop-api/internal/order"
)

// CampaignStore implements campaign.Store against postgres. Production-order
// access is delegated to OrderStore over the same querier so settlement's
// claim and insert share one transaction.
type CampaignStore struct {
	Pool *pgxpool.Pool
	db   querier
}

// NewCampaignStore builds a pool-backed store.
func NewCampaignStore(pool *pgxpool.Pool) *CampaignStore {
	return &CampaignStore{Pool: pool, db: pool}
}

// InTx runs fn with a transaction-scoped copy of the store.
func (s *CampaignStore) InTx(ctx context.Context, fn func(ctx context.Context, st campaign.Store) error) error {
	return inTx(ctx, s.Pool, func(tx pgx.Tx) error {
		return fn(ctx, &CampaignStore{Pool: s.Pool, db: tx})
	})
}

func (s *CampaignStore) orders() *OrderStore {
	return &OrderStore{Pool: s.Pool, db: s.db}
}

// InsertCampaign writes a new campaign.
func (s *CampaignStore) InsertCampaign(ctx context.Context, c campaign.Campaign) error {
	const q = `
INSERT INTO campaigns (id, name, organizer_email, garment_configs, payment_style, artwork, final_order_id, status, deadline, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	configs, err := json.Marshal(c.GarmentConfigs)
	if err != nil {
		return fmt.Errorf("encode garment configs: %w", err)
	}
	artworkRefs, err := json.Marshal(c.Artwork)
	if err != nil {
		return fmt.Errorf("encode artwork: %w", err)
	}
	_, err = s.db.Exec(ctx, q,
		c.ID, c.Name, c.OrganizerEmail, configs, c.PaymentStyle, artworkRefs,
		c.FinalOrderID, c.Status, c.Deadline, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// Campaign fetches a campaign by id.
func (s *CampaignStore) Campaign(ctx context.Context, id uuid.UUID) (campaign.Campaign, bool, error) {
	const q = `
SELECT id, name, organizer_email, garment_configs, payment_style, artwork, final_order_id, status, deadline, created_at
FROM campaigns
WHERE id = $1`
	var (
		c                  campaign.Campaign
		configs, artworkJS []byte
	)
	err := s.db.QueryRow(ctx, q, id).Scan(
		&c.ID, &c.Name, &c.OrganizerEmail, &configs, &c.PaymentStyle, &artworkJS,
		&c.FinalOrderID, &c.Status, &c.Deadline, &c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return campaign.Campaign{}, false, nil
	}
	if err != nil {
		return campaign.Campaign{}, false, fmt.Errorf("fetch campaign: %w", err)
	}
	if err := json.Unmarshal(configs, &c.GarmentConfigs); err != nil {
		return campaign.Campaign{}, false, fmt.Errorf("decode garment configs: %w", err)
	}
	if len(artworkJS) > 0 {
		if err := json.Unmarshal(artworkJS, &c.Artwork); err != nil {
			return campaign.Campaign{}, false, fmt.Errorf("decode artwork: %w", err)
		}
	}
	return c, true, nil
}

// Orders lists a campaign's participant orders, oldest first.
func (s *CampaignStore) Orders(ctx context.Context, campaignID uuid.UUID) ([]campaign.Order, error) {
	const q = `
SELECT id, campaign_id, participant_name, garment_id, color, size, quantity, status, created_at
FROM campaign_orders
WHERE campaign_id = $1
ORDER BY created_at, id`
	rows, err := s.db.Query(ctx, q, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign orders: %w", err)
	}
	defer rows.Close()
	var out []campaign.Order
	for rows.Next() {
		var o campaign.Order
		if err := rows.Scan(
			&o.ID, &o.CampaignID, &o.ParticipantName, &o.GarmentID,
			&o.Color, &o.Size, &o.Quantity, &o.Status, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campaign orders: %w", err)
	}
	return out, nil
}

// InsertOrder writes one participant order.
func (s *CampaignStore) InsertOrder(ctx context.Context, o campaign.Order) error {
	const q = `
INSERT INTO campaign_orders (id, campaign_id, participant_name, garment_id, color, size, quantity, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.db.Exec(ctx, q,
		o.ID, o.CampaignID, o.ParticipantName, o.GarmentID,
		o.Color, o.Size, o.Quantity, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign order: %w", err)
	}
	return nil
}

// UpdateOrderStatus mutates one participant order's status.
func (s *CampaignStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error {
	const q = `UPDATE campaign_orders SET status = $2 WHERE id = $1`
	tag, err := s.db.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("update campaign order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return campaign.ErrCampaignNotFound
	}
	return nil
}

// ClaimSettlement is the settlement race's single winner-picking write. The
// WHERE final_order_id IS NULL guard means at most one caller ever affects a
// row; everyone else sees zero rows and loses.
func (s *CampaignStore) ClaimSettlement(ctx context.Context, campaignID, finalOrderID uuid.UUID) (bool, error) {
	const q = `
UPDATE campaigns
SET final_order_id = $2, status = $3
WHERE id = $1 AND final_order_id IS NULL`
	tag, err := s.db.Exec(ctx, q, campaignID, finalOrderID, campaign.StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("claim settlement: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// InsertProduction writes the settlement's production order.
func (s *CampaignStore) InsertProduction(ctx context.Context, po order.ProductionOrder) error {
	return s.orders().InsertProduction(ctx, po)
}

// ProductionByID fetches a production order by id.
func (s *CampaignStore) ProductionByID(ctx context.Context, id uuid.UUID) (order.ProductionOrder, bool, error) {
	return s.orders().ProductionByID(ctx, id)
}
