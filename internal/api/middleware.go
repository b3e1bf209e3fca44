/**
 * @description
 * This file contains custom middleware for the HTTP router: Prometheus request
 * instrumentation and the Redis-backed write rate limit for the payment
 * endpoints.
 *
 * @dependencies
 * - log, net, net/http, strconv, strings, time: Standard Go libraries.
 * - go-chi/chi: For the matched route pattern and the response writer wrapper.
 * - internal/app, internal/metrics: For the rate limiter and the Prometheus counters.
 */

package api

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/drdaeman/payments-api-demo/internal/app"
	"github.com/drdaeman/payments-api-demo/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// MetricsMiddleware records a duration histogram and a request counter per
// matched route pattern, so path parameters do not explode label cardinality.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = r.URL.Path
		}
		metrics.RecordHTTPRequest(r.Method, routePattern, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
	})
}

// RateLimitMiddleware creates a middleware that throttles requests per client
// IP using the Redis rolling window. A nil limiter or non-positive limit
// disables throttling, and a Redis outage lets requests through so that the
// cache is never a hard dependency of the payment path.
func RateLimitMiddleware(limiter *app.RedisRateLimiter, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			subject := clientIP(r)
			count, retryAfter, err := limiter.ConsumeRateLimit(r.Context(), "payments_write", subject, perMinute, time.Minute)
			if err != nil {
				log.Printf("level=warn component=api msg=\"rate limiter unavailable\" subject=%s err=%v", subject, err)
				next.ServeHTTP(w, r)
				return
			}

			if count > perMinute {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": "Too many payment requests. Please try again later."}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the originating client address, honoring the first entry
// of X-Forwarded-For when a proxy added one.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
