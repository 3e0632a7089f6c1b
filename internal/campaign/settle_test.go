package campaign_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/threadworks/printshop-api/internal/campaign"
)

func campaignFixture(style string) campaign.Campaign {
	return campaign.Campaign{
		ID:             uuid.New(),
		Name:           "Robotics Club 2026",
		OrganizerEmail: "organizer@example.com",
		PaymentStyle:   style,
		Status:         campaign.StatusActive,
		GarmentConfigs: map[string]campaign.GarmentConfig{
			"gildan-5000": {Price: decimal.NewFromFloat(18.00), Colors: []string{"Black", "Navy"}},
			"bella-3001":  {Price: decimal.NewFromFloat(22.50), Colors: []string{"White"}},
		},
	}
}

func seedOrders(t *testing.T, store *campaign.MemStore, c campaign.Campaign, orders []campaign.Order) {
	t.Helper()
	for i := range orders {
		orders[i].ID = uuid.New()
		orders[i].CampaignID = c.ID
		require.NoError(t, store.InsertOrder(context.Background(), orders[i]))
	}
}

func newSettler(store *campaign.MemStore, depositPercent int) *campaign.Settler {
	return &campaign.Settler{Store: store, Log: zerolog.Nop(), DepositPercent: depositPercent}
}

func TestSettleEveryonePaysBillsOnlyPaidOrders(t *testing.T) {
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleEveryonePays)
	store.PutCampaign(c)
	seedOrders(t, store, c, []campaign.Order{
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 3, Status: campaign.OrderPaid},
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 2, Status: campaign.OrderPaid},
		{GarmentID: "gildan-5000", Color: "Navy", Size: "L", Quantity: 4, Status: campaign.OrderPending},
		{GarmentID: "bella-3001", Color: "White", Size: "S", Quantity: 1, Status: campaign.OrderCancelled},
	})

	po, err := newSettler(store, 50).Settle(context.Background(), c.ID)
	require.NoError(t, err)

	// Only the two paid orders count: 5 shirts at the fixed 18.00.
	require.Equal(t, 5, po.TotalQuantity)
	require.True(t, po.TotalCost.Equal(decimal.NewFromFloat(90.00)), "total = %s", po.TotalCost)
	require.Equal(t, 5, po.Selections.Garments["gildan-5000"]["Black"]["M"])
	// Participants paid in full already.
	require.True(t, po.BalanceDue.IsZero())
	require.True(t, po.DepositPaid)
	require.Equal(t, c.ID, *po.CampaignID)
}

func TestSettleOrganizerPaysBillsNonCancelled(t *testing.T) {
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleOrganizerPays)
	store.PutCampaign(c)
	seedOrders(t, store, c, []campaign.Order{
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 10, Status: campaign.OrderPending},
		{GarmentID: "bella-3001", Color: "White", Size: "S", Quantity: 10, Status: campaign.OrderConfirmed},
		{GarmentID: "bella-3001", Color: "White", Size: "M", Quantity: 7, Status: campaign.OrderCancelled},
	})

	po, err := newSettler(store, 50).Settle(context.Background(), c.ID)
	require.NoError(t, err)

	require.Equal(t, 20, po.TotalQuantity)
	// 10*18.00 + 10*22.50.
	require.True(t, po.TotalCost.Equal(decimal.NewFromFloat(405.00)), "total = %s", po.TotalCost)
	// Organizer still owes the balance: standard deposit split applies.
	require.True(t, po.DepositAmount.Equal(decimal.NewFromFloat(202.50)), "deposit = %s", po.DepositAmount)
	require.True(t, po.DepositAmount.Add(po.BalanceDue).Equal(po.TotalCost))
	require.False(t, po.DepositPaid)
}

func TestSettleTwiceReturnsSameOrder(t *testing.T) {
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleEveryonePays)
	store.PutCampaign(c)
	seedOrders(t, store, c, []campaign.Order{
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 6, Status: campaign.OrderPaid},
	})
	settler := newSettler(store, 50)

	first, err := settler.Settle(context.Background(), c.ID)
	require.NoError(t, err)
	second, err := settler.Settle(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	fresh, ok, err := store.Campaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, campaign.StatusCompleted, fresh.Status)
	require.Equal(t, first.ID, *fresh.FinalOrderID)
}

func TestSettleConcurrentTriggersCreateOneOrder(t *testing.T) {
	const triggers = 16
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleEveryonePays)
	store.PutCampaign(c)
	seedOrders(t, store, c, []campaign.Order{
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 6, Status: campaign.OrderPaid},
	})
	settler := newSettler(store, 50)

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, triggers)
	start := make(chan struct{})
	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			po, err := settler.Settle(context.Background(), c.ID)
			require.NoError(t, err)
			ids[i] = po.ID
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < triggers; i++ {
		require.Equal(t, ids[0], ids[i], "trigger %d produced a different order", i)
	}
}

func TestSettleNoEligibleOrders(t *testing.T) {
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleEveryonePays)
	store.PutCampaign(c)
	seedOrders(t, store, c, []campaign.Order{
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 3, Status: campaign.OrderPending},
	})
	_, err := newSettler(store, 50).Settle(context.Background(), c.ID)
	require.ErrorIs(t, err, campaign.ErrNoEligibleOrders)
}

func TestJoinValidatesAgainstCampaignConfig(t *testing.T) {
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleEveryonePays)
	store.PutCampaign(c)
	settler := newSettler(store, 50)

	o, err := settler.Join(context.Background(), c.ID, campaign.Order{
		ParticipantName: "Sam", GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 2,
	})
	require.NoError(t, err)
	require.Equal(t, campaign.OrderPending, o.Status)

	_, err = settler.Join(context.Background(), c.ID, campaign.Order{
		GarmentID: "unknown", Color: "Black", Size: "M", Quantity: 1,
	})
	require.ErrorIs(t, err, campaign.ErrGarmentNotConfigured)

	_, err = settler.Join(context.Background(), c.ID, campaign.Order{
		GarmentID: "gildan-5000", Color: "Red", Size: "M", Quantity: 1,
	})
	require.Error(t, err)
}

func TestSettledCampaignIsImmutable(t *testing.T) {
	store := campaign.NewMemStore()
	c := campaignFixture(campaign.PayStyleEveryonePays)
	store.PutCampaign(c)
	seedOrders(t, store, c, []campaign.Order{
		{GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 6, Status: campaign.OrderPaid},
	})
	settler := newSettler(store, 50)
	_, err := settler.Settle(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = settler.Join(context.Background(), c.ID, campaign.Order{
		GarmentID: "gildan-5000", Color: "Black", Size: "M", Quantity: 1,
	})
	require.ErrorIs(t, err, campaign.ErrCampaignSettled)

	orders, err := store.Orders(context.Background(), c.ID)
	require.NoError(t, err)
	err = settler.MarkOrderStatus(context.Background(), c.ID, orders[0].ID, campaign.OrderCancelled)
	require.ErrorIs(t, err, campaign.ErrCampaignSettled)
}
