package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/garrettladley/slackerp/internal/jobs"
	"github.com/garrettladley/slackerp/internal/xslog"
)

// SignatureHeader carries base64(HMAC-SHA256(body, webhook secret)).
const SignatureHeader = "X-Frappe-Webhook-Signature"

type Processor struct {
	secret string
	queue  jobs.Queue
}

var _ Service = (*Processor)(nil)

func NewProcessor(secret string, queue jobs.Queue) *Processor {
	return &Processor{
		secret: secret,
		queue:  queue,
	}
}

func (p *Processor) ProcessWebhook(ctx context.Context, req ProcessRequest) error {
	logger := xslog.FromContext(ctx)

	if req.Signature == "" {
		return ErrMissingSignature
	}

	if !p.verifySignature(req.Body, req.Signature) {
		return ErrInvalidSignature
	}

	event, err := ParseEvent(req.Body)
	if err != nil {
		return err
	}

	kind, payload := event.Job()
	job, err := jobs.Submit(ctx, p.queue, kind, payload)
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "processed webhook",
		xslog.DocType(event.GetDocType()),
		xslog.JobKind(string(kind)),
		xslog.JobID(job.ID.String()),
	)

	return nil
}

// verifySignature verifies the webhook signature using HMAC-SHA256.
// algorithm: base64(HMAC-SHA256(body, secret))
func (p *Processor) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(p.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
