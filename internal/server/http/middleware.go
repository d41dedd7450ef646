package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/logging"
	"github.com/paperclip/paperclip/internal/server/metrics"
	"github.com/paperclip/paperclip/internal/server/models"
)

// SessionResolver is satisfied by *auth.Resolver.
type SessionResolver interface {
	ResolveRequired(ctx context.Context, header string) (*models.User, error)
	ResolveOptional(ctx context.Context, header string) (*models.User, error)
}

const (
	modeRequired = "required"
	modeOptional = "optional"
)

// RequireUser rejects the request unless it carries a valid bearer token for
// an existing user.
func RequireUser(resolver SessionResolver, m *metrics.Registry, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveRequired(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
			m.AuthResolutions.WithLabelValues(modeRequired, outcome(user, err)).Inc()
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserFields(r.Context(), user)))
		})
	}
}

// OptionalUser lets anonymous requests through but still rejects a header
// that is present and invalid.
func OptionalUser(resolver SessionResolver, m *metrics.Registry, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.ResolveOptional(r.Context(), r.Header.Get(common.AuthorizationHeaderName))
			m.AuthResolutions.WithLabelValues(modeOptional, outcome(user, err)).Inc()
			if err != nil {
				writeError(w, r, log, err)
				return
			}
			if user != nil {
				r = r.WithContext(withUserFields(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withUserFields(ctx context.Context, user *models.User) context.Context {
	return logging.ContextWith(WithUser(ctx, user), "user_id", user.ID)
}

func outcome(user *models.User, err error) string {
	switch {
	case err == nil && user != nil:
		return metrics.OutcomeAuthenticated
	case err == nil:
		return metrics.OutcomeAnonymous
	case common.IsAuthRejection(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// RequestLogger logs each request and feeds the HTTP metrics. Routes are
// labelled by their chi pattern to keep label cardinality bounded.
func RequestLogger(log logging.Logger, m *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			if id := middleware.GetReqID(r.Context()); id != "" {
				r = r.WithContext(logging.ContextWith(r.Context(), "request_id", id))
			}

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.ObserveRequest(r.Method, route, status, elapsed)

			log.Info(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", elapsed,
			)
		})
	}
}

// limiterRegistry keeps one token bucket per client IP.
type limiterRegistry struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
	maxIdle  time.Duration
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterSweepSize = 10_000

func newLimiterRegistry(perMinute, burst int) *limiterRegistry {
	return &limiterRegistry{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
		maxIdle:  10 * time.Minute,
		now:      time.Now,
	}
}

func (l *limiterRegistry) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.limiters) >= limiterSweepSize {
		for k, c := range l.limiters {
			if now.Sub(c.lastSeen) > l.maxIdle {
				delete(l.limiters, k)
			}
		}
	}

	c, ok := l.limiters[key]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RateLimit allows perMinute requests per client IP with the given burst.
// It should run after middleware.RealIP.
func RateLimit(perMinute, burst int, log logging.Logger) func(http.Handler) http.Handler {
	reg := newLimiterRegistry(perMinute, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !reg.allow(clientIP(r)) {
				writeError(w, r, log, common.ErrRateLimited)
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
