package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/threadworks/printshop-api/internal/order"
	"github.com/threadworks/printshop-api/internal/quote"
	"github.com/threadworks/printshop-api/internal/rates"
	"github.com/threadworks/printshop-api/internal/selection"
)

const testSecret = "webhook-secret"

func testWebhook(t *testing.T) (Webhook, *order.MemStore, uuid.UUID) {
	t.Helper()
	src := rates.Static{
		Tiers:    []rates.QuantityTier{{ID: "t1", PricingFamily: "standard", MinQty: 1, MarkupPercent: decimal.NewFromInt(50)}},
		Rates:    []rates.PrintRate{{TierID: "t1", NumColors: 1, CostPerShirt: decimal.NewFromFloat(1.50), SetupFeePerScreen: decimal.NewFromInt(20)}},
		Garments: []rates.Garment{{ID: "tee", Name: "Tee", BaseCost: decimal.NewFromInt(5), PricingFamily: "standard"}},
	}
	store := order.NewMemStore()
	pendingID := uuid.New()
	require.NoError(t, store.InsertPending(context.Background(), order.PendingOrder{
		ID:            pendingID,
		CustomerName:  "Sam",
		CustomerEmail: "sam@example.com",
		Selections:    []selection.Selection{{GarmentID: "tee", Color: "Black", Size: "M", Quantity: 30}},
		PrintConfig:   quote.PrintConfig{"front": {Enabled: true, NumColors: 1}},
		CreatedAt:     time.Now().UTC(),
	}))
	m := &order.Materializer{
		Store: store,
		Calc:  quote.NewCalculator(src, 24, 50, quote.Fallback{}),
		Log:   zerolog.Nop(),
	}
	return Webhook{Secret: testSecret, Materializer: m, Log: zerolog.Nop()}, store, pendingID
}

func postWebhook(h Webhook, body []byte, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	if sign {
		req.Header.Set(SignatureHeader, Sign(testSecret, body))
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, _, pendingID := testWebhook(t)
	body := []byte(fmt.Sprintf(`{"pendingOrderId":%q,"paymentRef":"pay_1","status":"paid"}`, pendingID))

	rec := postWebhook(h, body, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, Sign("wrong-secret", body))
	rec = httptest.NewRecorder()
	h.Handle(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMaterializesOnce(t *testing.T) {
	h, store, pendingID := testWebhook(t)
	body := []byte(fmt.Sprintf(`{"pendingOrderId":%q,"paymentRef":"pay_1","status":"paid"}`, pendingID))

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Processed bool   `json:"processed"`
			OrderID   string `json:"orderId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Data.Processed)

	po, ok, err := store.ProductionByPaymentRef(context.Background(), "pay_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, po.ID.String(), resp.Data.OrderID)

	// A second delivery without the replay guard still lands on the
	// materializer's fast path and returns the same order.
	rec = postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, po.ID.String(), resp.Data.OrderID)
}

func TestWebhookReplayGuard(t *testing.T) {
	h, _, pendingID := testWebhook(t)
	mr := miniredis.RunT(t)
	h.Replay = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	h.ReplayTTL = time.Minute

	body := []byte(fmt.Sprintf(`{"pendingOrderId":%q,"paymentRef":"pay_2","status":"paid"}`, pendingID))

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postWebhook(h, body, true)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebhookIgnoresNonPaidStatus(t *testing.T) {
	h, store, pendingID := testWebhook(t)
	body := []byte(fmt.Sprintf(`{"pendingOrderId":%q,"paymentRef":"pay_3","status":"expired"}`, pendingID))

	rec := postWebhook(h, body, true)
	require.Equal(t, http.StatusOK, rec.Code)

	_, ok, err := store.ProductionByPaymentRef(context.Background(), "pay_3")
	require.NoError(t, err)
	require.False(t, ok)
}
