package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/letsplay/tournament-hub/metrics"
	"github.com/letsplay/tournament-hub/ratelimit"
	"github.com/letsplay/tournament-hub/services"
)

// KeyFunc picks the rate limit key for a request. An empty key falls back to
// the client address.
type KeyFunc func(r *http.Request) string

// RateLimit rejects requests over the limiter's budget with 429. Requests are keyed
// by scope and client address (chi's RealIP must run first). A limiter
// backend failure lets the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, logger *slog.Logger, onError ErrorResponder) func(http.Handler) http.Handler {
	return RateLimitBy(limiter, scope, ByClientIP, logger, onError)
}

// RateLimitBy is RateLimit with a custom key.
func RateLimitBy(limiter ratelimit.Limiter, scope string, key KeyFunc, logger *slog.Logger, onError ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				k = clientIP(r)
			}
			allowed, retryAfter, err := limiter.Allow(r.Context(), scope+":"+k)
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable", slog.String("scope", scope), slog.Any("error", err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimiterRejections.WithLabelValues(scope).Inc()
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				}
				onError(w, r, services.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func ByClientIP(r *http.Request) string {
	return clientIP(r)
}

// ByIdentity keys on the authenticated account; Authenticate must run first.
func ByIdentity(r *http.Request) string {
	if identity, ok := IdentityFromContext(r.Context()); ok {
		return string(identity.Kind) + ":" + identity.ID.String()
	}
	return ""
}

// ByJSONField keys on a string field of a JSON body, lowercased. The body is
// restored for the handler.
func ByJSONField(field string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		head, err := io.ReadAll(io.LimitReader(r.Body, maxKeyedBodyBytes))
		r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(head), r.Body), Closer: r.Body}
		if err != nil {
			return ""
		}
		var body map[string]interface{}
		if json.Unmarshal(head, &body) != nil {
			return ""
		}
		value, _ := body[field].(string)
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			return ""
		}
		return field + ":" + value
	}
}

const maxKeyedBodyBytes = 1 << 20

type readCloser struct {
	io.Reader
	io.Closer
}
