package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/threadworks/printshop-api/internal/common"
	"github.com/threadworks/printshop-api/internal/order"
	"github.com/threadworks/printshop-api/internal/resilience"
)

// Handler exposes the storefront quote and checkout endpoints.
type Handler struct {
	Svc          *Service
	Materializer *order.Materializer
	Orders       order.Store
}

// Quote prices a selection without creating anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var payload QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	breakdown, err := h.Svc.Quote(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": breakdown})
}

// Checkout records a pending order and returns its id with an advisory quote.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payload Input
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	out, err := h.Svc.Submit(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

type confirmRequest struct {
	PendingOrderID string `json:"pendingOrderId"`
	PaymentRef     string `json:"paymentRef"`
}

// Confirm is the client-side poll after payment. It races the payment
// webhook toward materialization; whoever runs second gets the existing
// order back. A brief retry absorbs the window where the other trigger's
// transaction is still committing.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var payload confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	pendingID, err := uuid.Parse(payload.PendingOrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid pending order id", nil)
		return
	}
	if payload.PaymentRef == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "paymentRef is required", nil)
		return
	}

	var po order.ProductionOrder
	policy := resilience.RetryPolicy{
		Attempts:  3,
		Base:      200 * time.Millisecond,
		Retryable: func(err error) bool { return errors.Is(err, order.ErrOrderInFlight) },
	}
	err = resilience.Do(r.Context(), policy, func(ctx context.Context) error {
		var mErr error
		po, mErr = h.Materializer.Materialize(ctx, pendingID, payload.PaymentRef, "poll")
		return mErr
	})
	if errors.Is(err, order.ErrOrderInFlight) {
		common.JSONError(w, http.StatusConflict, "ORDER_IN_FLIGHT", "order is still processing, retry shortly", nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(po)})
}

// GetOrder fetches a production order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	po, ok, err := h.Orders.ProductionByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orderView(po)})
}

func orderView(po order.ProductionOrder) map[string]any {
	view := map[string]any{
		"orderId":       po.ID.String(),
		"status":        po.Status,
		"customerName":  po.CustomerName,
		"customerEmail": po.CustomerEmail,
		"totalQuantity": po.TotalQuantity,
		"selections":    po.Selections,
		"printConfig":   po.PrintConfig,
		"breakdown":     po.Breakdown,
		"totalCost":     po.TotalCost.String(),
		"depositAmount": po.DepositAmount.String(),
		"balanceDue":    po.BalanceDue.String(),
		"depositPaid":   po.DepositPaid,
		"createdAt":     po.CreatedAt,
	}
	if po.PaymentRef != "" {
		view["paymentRef"] = po.PaymentRef
	}
	if po.CampaignID != nil {
		view["campaignId"] = po.CampaignID.String()
	}
	return view
}

func writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
