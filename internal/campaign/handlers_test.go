package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testCampaignHandler() (*Handler, *MemStore) {
	store := NewMemStore()
	settler := &Settler{Store: store, Log: zerolog.Nop(), DepositPercent: 50}
	return NewHandler(store, settler), store
}

func doRequest(h http.HandlerFunc, method, target string, body []byte, params map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCampaignLifecycleOverHTTP(t *testing.T) {
	h, _ := testCampaignHandler()

	create := []byte(`{
		"name": "Robotics Club 2026",
		"organizerEmail": "club@example.com",
		"paymentStyle": "everyone_pays",
		"garmentConfigs": {
			"classic-tee": {"price": "18.00", "colors": ["Black", "Navy"]}
		}
	}`)
	rec := doRequest(h.Create, http.MethodPost, "/api/v1/campaigns", create, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data struct {
			CampaignID string `json:"campaignId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	campaignID := created.Data.CampaignID
	require.NotEmpty(t, campaignID)

	join := []byte(`{"participantName":"Ari","garmentId":"classic-tee","color":"Black","size":"M","quantity":2}`)
	rec = doRequest(h.Join, http.MethodPost, fmt.Sprintf("/api/v1/campaigns/%s/orders", campaignID), join, map[string]string{"id": campaignID})
	require.Equal(t, http.StatusCreated, rec.Code)

	var joined struct {
		Data struct {
			OrderID string `json:"orderId"`
			Status  string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	require.Equal(t, OrderPending, joined.Data.Status)

	mark := []byte(`{"status":"paid"}`)
	rec = doRequest(h.SetOrderStatus, http.MethodPatch, "/x", mark, map[string]string{"id": campaignID, "orderId": joined.Data.OrderID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h.Close, http.MethodPost, "/x", nil, map[string]string{"id": campaignID})
	require.Equal(t, http.StatusOK, rec.Code)

	var closed struct {
		Data struct {
			OrderID   string `json:"orderId"`
			TotalCost string `json:"totalCost"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	total, err := decimal.NewFromString(closed.Data.TotalCost)
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(36)))

	// Closing again returns the same settlement.
	rec = doRequest(h.Close, http.MethodPost, "/x", nil, map[string]string{"id": campaignID})
	require.Equal(t, http.StatusOK, rec.Code)
	var again struct {
		Data struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	require.Equal(t, closed.Data.OrderID, again.Data.OrderID)
}

func TestJoinRejectsUnknownGarment(t *testing.T) {
	h, store := testCampaignHandler()
	c := Campaign{ID: uuid.New(), Name: "c", OrganizerEmail: "o@example.com", PaymentStyle: PayStyleEveryonePays, Status: StatusActive, GarmentConfigs: map[string]GarmentConfig{}}
	store.PutCampaign(c)

	join := []byte(`{"participantName":"Ari","garmentId":"hoodie","color":"Black","size":"M","quantity":1}`)
	rec := doRequest(h.Join, http.MethodPost, "/x", join, map[string]string{"id": c.ID.String()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
