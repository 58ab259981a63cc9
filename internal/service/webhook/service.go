package webhook

import (
	"context"
	"errors"
)

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedEvent   = errors.New("malformed webhook payload")
)

type ProcessRequest struct {
	Body      []byte
	Signature string
}

type Service interface {
	// ProcessWebhook verifies the webhook signature, parses the event,
	// and enqueues the job that handles it.
	// Returns ErrMissingSignature if the signature header is empty.
	// Returns ErrInvalidSignature if the signature doesn't match.
	// Returns ErrUnknownEventType for documents that need no work (caller may treat as success).
	ProcessWebhook(ctx context.Context, req ProcessRequest) error
}
