package interaction

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"

	// MaxRequestAge bounds replay exposure in both directions.
	MaxRequestAge = 5 * time.Minute

	signatureVersion = "v0"
)

// SecretSource returns the signing secret in effect right now. config.Holder
// implements it so a reload is picked up by the next request.
type SecretSource interface {
	SigningSecret() string
}

type StaticSecret string

func (s StaticSecret) SigningSecret() string { return string(s) }

type Verifier struct {
	secrets SecretSource
	now     func() time.Time
}

type VerifierOption func(*Verifier)

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

func NewVerifier(secrets SecretSource, opts ...VerifierOption) *Verifier {
	v := &Verifier{secrets: secrets, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the freshness of timestamp and then the signature over the
// exact body bytes.
func (v *Verifier) Verify(body []byte, signature, timestamp string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrMalformedRequest, timestamp)
	}

	// Bounds are compared in seconds; time.Duration saturates for far-off
	// timestamps and would let them through.
	now, window := v.now().Unix(), int64(MaxRequestAge/time.Second)
	if ts < now-window || ts > now+window {
		return fmt.Errorf("%w: timestamp %d outside window of %d", ErrStaleRequest, ts, now)
	}

	expected := Sign(v.secrets.SigningSecret(), timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns "v0=" + hex(HMAC-SHA256(secret, "v0:<timestamp>:<body>")).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
