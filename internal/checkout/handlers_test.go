package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/threadworks/printshop-api/internal/order"
)

func testHandler(t *testing.T) (*Handler, *order.MemStore) {
	t.Helper()
	svc, store := testService(t)
	h := &Handler{
		Svc:          svc,
		Materializer: &order.Materializer{Store: store, Calc: svc.Calc, Log: zerolog.Nop()},
		Orders:       store,
	}
	return h, store
}

func TestCheckoutThenConfirm(t *testing.T) {
	h, _ := testHandler(t)

	body, err := json.Marshal(validInput())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	h.Checkout(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data Output `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.PendingOrderID)

	confirm := []byte(fmt.Sprintf(`{"pendingOrderId":%q,"paymentRef":"pay_9"}`, created.Data.PendingOrderID))
	rec = httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/confirm", bytes.NewReader(confirm)))
	require.Equal(t, http.StatusOK, rec.Code)

	var confirmed struct {
		Data struct {
			OrderID string `json:"orderId"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	require.Equal(t, order.StatusPendingProduction, confirmed.Data.Status)

	// Confirming again lands on the fast path and returns the same order.
	rec = httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/confirm", bytes.NewReader(confirm)))
	require.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		Data struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	require.Equal(t, confirmed.Data.OrderID, again.Data.OrderID)
}

func TestGetOrderNotFound(t *testing.T) {
	h, _ := testHandler(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/orders/00000000-0000-0000-0000-000000000001", nil)
	r = withURLParam(r, "id", "00000000-0000-0000-0000-000000000001")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, r)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmRejectsBadInput(t *testing.T) {
	h, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.Confirm(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/confirm", bytes.NewReader([]byte(`{"pendingOrderId":"nope","paymentRef":"x"}`))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
