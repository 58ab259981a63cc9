package middleware

import (
	"net/http"

	"github.com/garrettladley/slackerp/internal/xcontext"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/google/uuid"
)

type RequestIDMiddleware struct {
	IDFunc func(*http.Request) string
}

type RequestIDOption func(*RequestIDMiddleware)

// WithIDFunc overrides how ids are generated.
func WithIDFunc(fn func(*http.Request) string) RequestIDOption {
	return func(m *RequestIDMiddleware) { m.IDFunc = fn }
}

// WithTrustedHeader reuses an inbound X-Request-ID, e.g. one set by a load balancer.
func WithTrustedHeader() RequestIDOption {
	return func(m *RequestIDMiddleware) {
		fallback := m.IDFunc
		m.IDFunc = func(r *http.Request) string {
			if id := r.Header.Get(xhttp.XRequestID); id != "" {
				return id
			}
			return fallback(r)
		}
	}
}

func RequestID(opts ...RequestIDOption) func(http.Handler) http.Handler {
	middleware := &RequestIDMiddleware{
		IDFunc: func(_ *http.Request) string {
			return uuid.New().String()
		},
	}

	for _, opt := range opts {
		opt(middleware)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := middleware.IDFunc(r)
			ctx := xcontext.SetRequestID(r.Context(), id)
			xhttp.SetHeaderRequestID(w, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
