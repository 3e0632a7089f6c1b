package common

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idem rejects duplicate writes carrying the same Idempotency-Key header.
// Checkout and campaign joins sit behind it so a retried POST cannot create
// a second pending order. Requests without the header pass through.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}

		redisKey := "idem:" + Sha256Hex(key)
		claimed, err := i.R.SetNX(r.Context(), redisKey, "locked", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", nil)
			return
		}
		if !claimed {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}

		// Re-arm the TTL afterwards so the key outlives a panicking handler.
		defer func() {
			_ = i.R.Expire(context.Background(), redisKey, i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
