package campaign

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/threadworks/printshop-api/internal/order"
)

// MemStore is an in-memory Store for tests and local development.
// ClaimSettlement is a genuine conditional write under the mutex, and txMu
// keeps whole transactions invisible to readers until they finish, matching
// the isolation the postgres store provides.
type MemStore struct {
	mu         sync.Mutex
	txMu       sync.RWMutex
	campaigns  map[uuid.UUID]Campaign
	orders     map[uuid.UUID]Order
	production map[uuid.UUID]order.ProductionOrder
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		campaigns:  map[uuid.UUID]Campaign{},
		orders:     map[uuid.UUID]Order{},
		production: map[uuid.UUID]order.ProductionOrder{},
	}
}

// PutCampaign stores or replaces a campaign.
func (m *MemStore) PutCampaign(c Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[c.ID] = c
}

// InsertCampaign stores a new campaign.
func (m *MemStore) InsertCampaign(_ context.Context, c Campaign) error {
	m.PutCampaign(c)
	return nil
}

// Campaign returns a campaign by id.
func (m *MemStore) Campaign(_ context.Context, id uuid.UUID) (Campaign, bool, error) {
	m.txMu.RLock()
	defer m.txMu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	return c, ok, nil
}

// Orders lists a campaign's participant orders.
func (m *MemStore) Orders(_ context.Context, campaignID uuid.UUID) ([]Order, error) {
	m.txMu.RLock()
	defer m.txMu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.CampaignID == campaignID {
			out = append(out, o)
		}
	}
	return out, nil
}

// InsertOrder stores a participant order.
func (m *MemStore) InsertOrder(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

// UpdateOrderStatus mutates one participant order's status.
func (m *MemStore) UpdateOrderStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrCampaignNotFound
	}
	o.Status = status
	m.orders[id] = o
	return nil
}

// ClaimSettlement sets final_order_id if and only if it is still unset.
func (m *MemStore) ClaimSettlement(_ context.Context, campaignID, finalOrderID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return false, ErrCampaignNotFound
	}
	if c.FinalOrderID != nil {
		return false, nil
	}
	c.FinalOrderID = &finalOrderID
	c.Status = StatusCompleted
	m.campaigns[campaignID] = c
	return true, nil
}

// InsertProduction stores the settlement's production order.
func (m *MemStore) InsertProduction(_ context.Context, po order.ProductionOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.production[po.ID] = po
	return nil
}

// ProductionByID returns a production order by id.
func (m *MemStore) ProductionByID(_ context.Context, id uuid.UUID) (order.ProductionOrder, bool, error) {
	m.txMu.RLock()
	defer m.txMu.RUnlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	po, ok := m.production[id]
	return po, ok, nil
}

// InTx runs fn with readers held off until it completes, so a transaction's
// writes become visible all at once.
func (m *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m)
}
