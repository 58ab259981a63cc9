package interaction

import "errors"

var (
	// ErrMalformedRequest covers a missing or unparseable timestamp and
	// bodies that do not decode into a known payload shape.
	ErrMalformedRequest = errors.New("malformed request")
	ErrStaleRequest     = errors.New("request timestamp outside freshness window")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrHandlerFailure wraps anything a routed handler returned or panicked with.
	ErrHandlerFailure = errors.New("handler failure")
)
