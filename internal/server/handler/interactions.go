package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/garrettladley/slackerp/internal/service/interaction"
	"github.com/garrettladley/slackerp/internal/xcontext"
	"github.com/garrettladley/slackerp/internal/xerrors"
	"github.com/garrettladley/slackerp/internal/xhttp"
	"github.com/garrettladley/slackerp/internal/xslog"
)

type Interactions struct {
	dispatcher *interaction.Dispatcher
}

func NewInteractions(dispatcher *interaction.Dispatcher) *Interactions {
	return &Interactions{dispatcher: dispatcher}
}

// HandleInteraction handles POST /slack/interactions. The body has already
// been verified by middleware.VerifySlack.
func (h *Interactions) HandleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := xslog.FromContext(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("failed to read request body")))
		return
	}

	raw, err := interaction.ExtractPayload(r.Header.Get(xhttp.ContentType), body)
	if err != nil {
		logger.WarnContext(ctx, "failed to extract interaction payload", xslog.Error(err))
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("malformed payload")))
		return
	}

	payload, err := interaction.Decode(raw)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode interaction payload", xslog.Error(err))
		msg := "malformed payload"
		if errors.Is(err, interaction.ErrUnknownEventType) {
			msg = "unsupported interaction type"
		}
		xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage(msg)))
		return
	}

	ctx = xcontext.SetChatUserID(ctx, payload.Actor().ID)

	resp, err := h.dispatcher.Dispatch(ctx, payload)
	if err != nil {
		if errors.Is(err, interaction.ErrUnknownEventType) {
			xerrors.WriteError(ctx, w, xerrors.BadRequest(xerrors.WithMessage("unsupported interaction type")))
			return
		}
		// handler details stay in the logs
		xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithMessage("interaction failed"), xerrors.WithCause(err)))
		return
	}

	if resp.Empty() {
		xhttp.WriteEmptyOK(w)
		return
	}
	xhttp.WriteOK(w, resp.Body)
}
