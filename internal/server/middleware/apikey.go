package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
)

// APIKeyAuth guards operator endpoints with a single shared key sent in
// X-API-Key. An empty key disables the routes entirely.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	want := sha256.Sum256([]byte(key))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := xslog.FromContext(ctx)

			if key == "" {
				xerrors.WriteError(ctx, w, xerrors.NotFound(xerrors.WithMessage("admin API disabled")))
				return
			}

			apiKey := xhttp.GetRequestHeaderAPIKey(r)
			if apiKey == "" {
				logger.WarnContext(ctx, "missing API key header",
					xslog.RequestPath(r))
				xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("missing API key")))
				return
			}

			got := sha256.Sum256([]byte(apiKey))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				logger.WarnContext(ctx, "API key validation failed",
					xslog.RequestPath(r),
					xslog.RequestIP(r))
				xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("invalid API key")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
