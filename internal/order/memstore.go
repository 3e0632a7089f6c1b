package order

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and local development. The
// mutex makes ConsumePending a genuine atomic delete-and-return: exactly one
// caller observes ok == true per pending order.
type MemStore struct {
	mu         sync.Mutex
	pending    map[uuid.UUID]PendingOrder
	production map[uuid.UUID]ProductionOrder
	byRef      map[string]uuid.UUID

	// CommitHook, when set, runs after InTx's callback succeeds but before
	// staged writes become visible. Tests use it to hold the window where a
	// pending order is gone and its production order not yet readable.
	CommitHook func()
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		pending:    map[uuid.UUID]PendingOrder{},
		production: map[uuid.UUID]ProductionOrder{},
		byRef:      map[string]uuid.UUID{},
	}
}

// InsertPending stores a pending order.
func (m *MemStore) InsertPending(_ context.Context, pending PendingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[pending.ID] = pending
	return nil
}

// PendingIDs lists the ids of pending orders not yet consumed.
func (m *MemStore) PendingIDs() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	return ids
}

// ConsumePending atomically removes and returns the pending order.
func (m *MemStore) ConsumePending(_ context.Context, id uuid.UUID) (PendingOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending, ok := m.pending[id]
	if !ok {
		return PendingOrder{}, false, nil
	}
	delete(m.pending, id)
	return pending, true, nil
}

// ProductionByPaymentRef looks up a production order by its payment reference.
func (m *MemStore) ProductionByPaymentRef(_ context.Context, paymentRef string) (ProductionOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byRef[paymentRef]
	if !ok {
		return ProductionOrder{}, false, nil
	}
	return m.production[id], true, nil
}

// ProductionByID looks up a production order by id.
func (m *MemStore) ProductionByID(_ context.Context, id uuid.UUID) (ProductionOrder, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	po, ok := m.production[id]
	return po, ok, nil
}

// InsertProduction stores a production order and indexes its payment reference.
func (m *MemStore) InsertProduction(_ context.Context, production ProductionOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.production[production.ID] = production
	if production.PaymentRef != "" {
		m.byRef[production.PaymentRef] = production.ID
	}
	return nil
}

// InTx runs fn against the store itself. Individual operations are already
// atomic; the CommitHook lets tests widen the gap between the consume and
// the insert becoming visible.
func (m *MemStore) InTx(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	if m.CommitHook == nil {
		return fn(ctx, m)
	}
	staged := &stagingStore{MemStore: m}
	if err := fn(ctx, staged); err != nil {
		staged.rollback()
		return err
	}
	m.CommitHook()
	staged.commit()
	return nil
}

// stagingStore defers production-order inserts until commit so the
// "pending gone, production not yet visible" window is observable.
type stagingStore struct {
	*MemStore
	consumed []PendingOrder
	inserts  []ProductionOrder
}

func (s *stagingStore) ConsumePending(ctx context.Context, id uuid.UUID) (PendingOrder, bool, error) {
	pending, ok, err := s.MemStore.ConsumePending(ctx, id)
	if ok {
		s.consumed = append(s.consumed, pending)
	}
	return pending, ok, err
}

func (s *stagingStore) InsertProduction(_ context.Context, production ProductionOrder) error {
	s.inserts = append(s.inserts, production)
	return nil
}

func (s *stagingStore) commit() {
	for _, po := range s.inserts {
		_ = s.MemStore.InsertProduction(context.Background(), po)
	}
}

func (s *stagingStore) rollback() {
	for _, pending := range s.consumed {
		_ = s.MemStore.InsertPending(context.Background(), pending)
	}
}
