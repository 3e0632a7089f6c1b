// Package payment receives provider callbacks confirming deposits. The
// webhook is one of two racing materialization triggers; the other is the
// client's confirmation poll.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/threadworks/printshop-api/internal/common"
	"github.com/threadworks/printshop-api/internal/obs"
	"github.com/threadworks/printshop-api/internal/order"
)

// SignatureHeader carries the provider's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Payment-Signature"

type webhookPayload struct {
	PendingOrderID string `json:"pendingOrderId"`
	PaymentRef     string `json:"paymentRef"`
	Status         string `json:"status"`
}

// Webhook handles payment provider callbacks. Signature first, replay guard
// second, materialization last; the materializer is idempotent anyway, so
// the replay guard only saves work.
type Webhook struct {
	Secret       string
	Materializer *order.Materializer
	Replay       *redis.Client
	ReplayTTL    time.Duration
	Log          zerolog.Logger
}

// Handle processes one provider callback.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Secret == "" || h.Materializer == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	if !h.verifySignature(r.Header.Get(SignatureHeader), body) {
		countWebhook("invalid_signature")
		common.JSONError(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "signature verification failed", nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid payload", nil)
		return
	}
	pendingID, err := uuid.Parse(payload.PendingOrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "invalid pending order id", nil)
		return
	}
	if strings.TrimSpace(payload.PaymentRef) == "" {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PAYMENT_REF", "paymentRef is required", nil)
		return
	}
	if !isPaidStatus(payload.Status) {
		countWebhook("ignored")
		common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"processed": false}})
		return
	}

	if h.Replay != nil && h.ReplayTTL > 0 {
		key := fmt.Sprintf("wh:payment:%s", common.Sha256Hex(string(body)))
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay guard unavailable", nil)
			return
		}
		if !fresh {
			countWebhook("replayed")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}

	po, err := h.Materializer.Materialize(r.Context(), pendingID, payload.PaymentRef, "webhook")
	if errors.Is(err, order.ErrOrderInFlight) {
		// The poll trigger is mid-transaction. The provider will retry
		// and the retry will hit the fast path.
		countWebhook("in_flight")
		common.JSONError(w, http.StatusConflict, "ORDER_IN_FLIGHT", "order is still processing", nil)
		return
	}
	if err != nil {
		countWebhook("error")
		h.Log.Error().Err(err).
			Str("pending_order_id", pendingID.String()).
			Msg("webhook materialization failed")
		common.JSONError(w, http.StatusInternalServerError, "MATERIALIZE_ERROR", "unable to process payment", nil)
		return
	}

	countWebhook("processed")
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"processed": true,
		"orderId":   po.ID.String(),
		"status":    po.Status,
	}})
}

func (h Webhook) verifySignature(header string, body []byte) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.Secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(header)))
}

func isPaidStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "settlement", "capture", "success":
		return true
	default:
		return false
	}
}

// Sign computes the signature a caller must send. Exported for tests and
// for the seeder's webhook simulator.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func countWebhook(result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(result).Inc()
	}
}
