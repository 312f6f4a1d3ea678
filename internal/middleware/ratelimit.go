package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitByIP limits each client IP to requestsPerMinute on the wrapped handler.
// Each call builds its own limiter, so endpoints do not share a budget.
// A non-positive limit disables limiting.
func RateLimitByIP(requestsPerMinute int, next http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return next
	}
	limited := httprate.Limit(requestsPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	return limited(next)
}
