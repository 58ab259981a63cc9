package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/garrettladley/slackerp/internal/metrics"
	"github.com/garrettladley/slackerp/internal/service/webhook"
	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
)

type Webhook struct {
	service webhook.Service
}

func NewWebhook(service webhook.Service) *Webhook {
	return &Webhook{service: service}
}

// HandleWebhook handles POST /webhooks/erp requests.
func (h *Webhook) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read webhook body", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("failed to read request body")))
		return
	}

	req := webhook.ProcessRequest{
		Body:      body,
		Signature: r.Header.Get(webhook.SignatureHeader),
	}

	if err := h.service.ProcessWebhook(ctx, req); err != nil {
		// documents that need no work are acknowledged so the ERP does not retry
		if errors.Is(err, webhook.ErrUnknownEventType) {
			logger.DebugContext(ctx, "ignored webhook document", xslog.Error(err))
			xhttp.WriteEmptyOK(w)
			return
		}

		if errors.Is(err, webhook.ErrMissingSignature) {
			metrics.VerificationFailed("erp", "missing")
			logger.WarnContext(ctx, "missing webhook signature header")
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("missing signature header")))
			return
		}

		if errors.Is(err, webhook.ErrInvalidSignature) {
			metrics.VerificationFailed("erp", "signature")
			logger.WarnContext(ctx, "invalid webhook signature", xslog.RequestIP(r))
			xerrors.WriteError(ctx, w, xerrors.Unauthorized(xerrors.WithMessage("invalid signature")))
			return
		}

		if errors.Is(err, webhook.ErrMalformedEvent) {
			xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("malformed webhook payload"), xerrors.WithCause(err)))
			return
		}

		logger.ErrorContext(ctx, "failed to process webhook", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("failed to process webhook"), xerrors.WithCause(err)))
		return
	}

	xhttp.WriteEmptyOK(w)
}
