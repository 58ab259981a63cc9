package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xslog"
)

// MaxBodyBytes caps inbound callback bodies. Slack payloads stay well below it.
const MaxBodyBytes = 1 << 20

// VerifySlack rejects requests whose signature or timestamp does not check
// out and hands the exact body bytes to next.
func VerifySlack(verifier *interaction.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := xslog.FromContext(ctx)

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("failed to read request body"), xerrors.WithCause(err)))
				return
			}

			err = verifier.Verify(body, r.Header.Get(interaction.HeaderSignature), r.Header.Get(interaction.HeaderTimestamp))
			if err != nil {
				reason := verificationReason(err)
				metrics.VerificationFailed("slack", reason)
				logger.WarnContext(ctx, "rejected slack request",
					xslog.RequestPath(r),
					xslog.RequestIP(r),
					xslog.Reason(reason),
					xslog.Error(err))

				if errors.Is(err, interaction.ErrMalformedRequest) {
					xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("malformed request")))
					return
				}
				xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("invalid request signature")))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func verificationReason(err error) string {
	switch {
	case errors.Is(err, interaction.ErrMalformedRequest):
		return "malformed"
	case errors.Is(err, interaction.ErrStaleRequest):
		return "stale"
	default:
		return "signature"
	}
}
