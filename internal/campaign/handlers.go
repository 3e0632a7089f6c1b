package campaign

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/threadworks/printshop-api/internal/artwork"
	"github.com/threadworks/printshop-api/internal/common"
)

// Handler exposes the campaign lifecycle over HTTP.
type Handler struct {
	Store    Store
	Settler  *Settler
	Validate *validator.Validate
}

// NewHandler wires a campaign handler with a fresh validator.
func NewHandler(store Store, settler *Settler) *Handler {
	return &Handler{
		Store:    store,
		Settler:  settler,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type garmentConfigInput struct {
	Price  string   `json:"price" validate:"required"`
	Colors []string `json:"colors" validate:"min=1"`
}

type createInput struct {
	Name           string                        `json:"name" validate:"required"`
	OrganizerEmail string                        `json:"organizerEmail" validate:"required,email"`
	PaymentStyle   string                        `json:"paymentStyle" validate:"required,oneof=everyone_pays organizer_pays"`
	GarmentConfigs map[string]garmentConfigInput `json:"garmentConfigs" validate:"required,min=1,dive"`
	Artwork        []artwork.Ref                 `json:"artwork"`
	Deadline       *time.Time                    `json:"deadline"`
}

// Create opens a new campaign with locked-in garment prices.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "request failed validation", nil)
		return
	}
	configs := make(map[string]GarmentConfig, len(payload.GarmentConfigs))
	for garmentID, gc := range payload.GarmentConfigs {
		price, err := decimal.NewFromString(gc.Price)
		if err != nil || price.IsNegative() {
			common.JSONError(w, http.StatusBadRequest, "INVALID_PRICE", "garment price must be a non-negative amount", nil)
			return
		}
		configs[garmentID] = GarmentConfig{Price: price, Colors: gc.Colors}
	}
	c := Campaign{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(payload.Name),
		OrganizerEmail: strings.TrimSpace(payload.OrganizerEmail),
		GarmentConfigs: configs,
		PaymentStyle:   payload.PaymentStyle,
		Artwork:        payload.Artwork,
		Status:         StatusActive,
		Deadline:       payload.Deadline,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.Store.InsertCampaign(r.Context(), c); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": campaignView(c)})
}

// Get returns one campaign with its participant orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	c, ok, err := h.Store.Campaign(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
		return
	}
	orders, err := h.Store.Orders(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	view := campaignView(c)
	view["orders"] = orderViews(orders)
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

type joinInput struct {
	ParticipantName string `json:"participantName" validate:"required"`
	GarmentID       string `json:"garmentId" validate:"required"`
	Color           string `json:"color" validate:"required"`
	Size            string `json:"size" validate:"required"`
	Quantity        int    `json:"quantity" validate:"gt=0"`
}

// Join adds one participant order to an open campaign.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	var payload joinInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "request failed validation", nil)
		return
	}
	o, err := h.Settler.Join(r.Context(), campaignID, Order{
		ParticipantName: strings.TrimSpace(payload.ParticipantName),
		GarmentID:       payload.GarmentID,
		Color:           payload.Color,
		Size:            payload.Size,
		Quantity:        payload.Quantity,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": orderView(o)})
}

type orderStatusInput struct {
	Status string `json:"status" validate:"required,oneof=pending paid confirmed cancelled"`
}

// SetOrderStatus marks one participant order paid, confirmed, or cancelled.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var payload orderStatusInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "request failed validation", nil)
		return
	}
	if err := h.Settler.MarkOrderStatus(r.Context(), campaignID, orderID, payload.Status); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"status": payload.Status}})
}

// Close settles the campaign into its final production order. Safe to call
// repeatedly; every call after the first returns the same order.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid campaign id", nil)
		return
	}
	po, err := h.Settler.Settle(r.Context(), campaignID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"orderId":       po.ID.String(),
		"status":        po.Status,
		"totalQuantity": po.TotalQuantity,
		"totalCost":     po.TotalCost.String(),
		"depositAmount": po.DepositAmount.String(),
		"balanceDue":    po.BalanceDue.String(),
	}})
}

func campaignView(c Campaign) map[string]any {
	view := map[string]any{
		"campaignId":     c.ID.String(),
		"name":           c.Name,
		"organizerEmail": c.OrganizerEmail,
		"paymentStyle":   c.PaymentStyle,
		"garmentConfigs": c.GarmentConfigs,
		"status":         c.Status,
		"createdAt":      c.CreatedAt,
	}
	if c.FinalOrderID != nil {
		view["finalOrderId"] = c.FinalOrderID.String()
	}
	if c.Deadline != nil {
		view["deadline"] = c.Deadline
	}
	return view
}

func orderView(o Order) map[string]any {
	return map[string]any{
		"orderId":         o.ID.String(),
		"participantName": o.ParticipantName,
		"garmentId":       o.GarmentID,
		"color":           o.Color,
		"size":            o.Size,
		"quantity":        o.Quantity,
		"status":          o.Status,
	}
}

func orderViews(orders []Order) []map[string]any {
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderView(o))
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCampaignNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "campaign not found", nil)
	case errors.Is(err, ErrCampaignSettled):
		common.JSONError(w, http.StatusConflict, "CAMPAIGN_SETTLED", "campaign already settled", nil)
	case errors.Is(err, ErrNoEligibleOrders):
		common.JSONError(w, http.StatusUnprocessableEntity, "NO_ELIGIBLE_ORDERS", "campaign has no billable orders", nil)
	case errors.Is(err, ErrGarmentNotConfigured):
		common.JSONError(w, http.StatusBadRequest, "GARMENT_NOT_CONFIGURED", "garment not configured for campaign", nil)
	default:
		var appErr *common.AppError
		if errors.As(err, &appErr) {
			status := appErr.HTTPStatus
			if status == 0 {
				status = http.StatusBadRequest
			}
			common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
