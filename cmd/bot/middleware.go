package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Jacobbrewer1/plexcord/cmd/bot/monitoring"
	"github.com/Jacobbrewer1/plexcord/pkg/auth"
	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	"github.com/Jacobbrewer1/plexcord/pkg/request"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// authOption is an option for the auth middleware. It indicates the type of authentication required.
type authOption int

const (
	// authOptionNone indicates that no authentication is required.
	authOptionNone authOption = iota

	// authOptionRequired indicates that a valid bearer token is required.
	authOptionRequired
)

const (
	headerRequestID = "X-Request-ID"

	// limiterClients is how many clients the rate limiter tracks.
	limiterClients = 1024
)

type ctxKey int

const (
	ctxKeyUsername ctxKey = iota
	ctxKeyRequestID
)

type Controller func(w http.ResponseWriter, r *http.Request)

// clientLimiter rate limits each client address separately.
type clientLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
}

// newClientLimiter creates a limiter allowing perSecond requests per client.
// A non-positive rate disables limiting.
func newClientLimiter(perSecond float64) (*clientLimiter, error) {
	if perSecond <= 0 {
		return &clientLimiter{limit: rate.Inf}, nil
	}

	cache, err := lru.New[string, *rate.Limiter](limiterClients)
	if err != nil {
		return nil, err
	}

	burst := int(perSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{limit: rate.Limit(perSecond), burst: burst, limiters: cache}, nil
}

func (c *clientLimiter) Allow(client string) bool {
	if c.limit == rate.Inf {
		return true
	}

	l, ok := c.limiters.Get(client)
	if !ok {
		l = rate.NewLimiter(c.limit, c.burst)
		if prev, found, _ := c.limiters.PeekOrAdd(client, l); found {
			l = prev
		}
	}
	return l.Allow()
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *App) middlewareHttp(handler Controller, authRequired authOption) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		cw := request.NewClientWriter(w)

		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		cw.Header().Set(headerRequestID, requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)

		var path string
		route := mux.CurrentRoute(r)
		if route != nil { // The route may be nil if the request is not routed.
			var err error
			path, err = route.GetPathTemplate()
			if err != nil {
				// An error here is only returned if the route does not define a path.
				a.Error("Error getting path template", slog.String(logging.KeyError, err.Error()))
				path = r.URL.Path // If the route does not define a path, use the URL path.
			}
		} else {
			path = r.URL.Path // If the route is nil, use the URL path.
		}

		// Registered before the panic recovery so it runs after it and sees the 500.
		defer func() {
			monitoring.HttpTotalRequests.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Inc()
			monitoring.HttpRequestDuration.WithLabelValues(path, r.Method, fmt.Sprintf("%d", cw.StatusCode())).Observe(time.Since(now).Seconds())
		}()

		// Recover from any panics that occur in the handler.
		defer func() {
			if rec := recover(); rec != nil {
				a.Error("Panic in handler",
					slog.String(logging.KeyError, fmt.Sprint(rec)),
					slog.String(logging.KeyRequestID, requestID),
					slog.String("stack", string(debug.Stack())),
				)
				request.Encode(a.Logger, cw, http.StatusInternalServerError, request.NewMessage(request.ErrInternalServer.Error()))
			}
		}()

		if !a.limiter.Allow(clientAddr(r)) {
			monitoring.HttpRateLimited.Inc()
			request.Encode(a.Logger, cw, http.StatusTooManyRequests, request.NewMessage(request.ErrTooManyRequests.Error()))
			return
		}

		if authRequired == authOptionRequired {
			claims, err := a.authenticate(r)
			if err != nil {
				a.Debug("Rejected request",
					slog.String(logging.KeyRequestID, requestID),
					slog.String(logging.KeyError, err.Error()))
				request.Encode(a.Logger, cw, http.StatusUnauthorized, request.NewMessage(request.ErrUnauthorized.Error()))
				return
			}
			ctx = context.WithValue(ctx, ctxKeyUsername, claims.Username)
		}

		handler(cw, r.WithContext(ctx))
	}
}

func (a *App) authenticate(r *http.Request) (*auth.Claims, error) {
	if a.tokens == nil {
		return nil, auth.ErrInvalidToken
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, auth.ErrInvalidToken
	}
	return a.tokens.ParseToken(token)
}

// usernameFromContext returns the dashboard user of an authenticated request.
func usernameFromContext(ctx context.Context) string {
	u, _ := ctx.Value(ctxKeyUsername).(string)
	return u
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
