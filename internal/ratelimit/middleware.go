package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/threadworks/printshop-api/internal/common"
)

// Config derives the limit key from a request and sets the window thresholds.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler applies a Limiter in front of an endpoint. Limiter failures never
// block traffic; they are reported through OnError and the request proceeds.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Config.Key == nil {
			next.ServeHTTP(w, r)
			return
		}

		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		hd := w.Header()
		hd.Set("X-RateLimit-Limit", strconv.Itoa(clampNonNegative(h.Config.Max)))
		hd.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		hd.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			hd.Set("Retry-After", strconv.Itoa(clampNonNegative(int(time.Until(resetAt).Seconds()))))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, slow down", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
