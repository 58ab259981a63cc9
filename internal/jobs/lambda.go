package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	go_json "github.com/goccy/go-json"
)

// LambdaQueue hands each job to a worker function with an asynchronous
// (Event) invocation.
type LambdaQueue struct {
	client   lambdaiface.LambdaAPI
	function string
}

var _ Queue = (*LambdaQueue)(nil)

func NewLambdaQueue(client lambdaiface.LambdaAPI, function string) *LambdaQueue {
	return &LambdaQueue{client: client, function: function}
}

func (q *LambdaQueue) Enqueue(ctx context.Context, job Job) error {
	b, err := job.Marshal()
	if err != nil {
		return err
	}
	out, err := q.client.InvokeWithContext(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(q.function),
		InvocationType: aws.String(lambda.InvocationTypeEvent),
		Payload:        b,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", q.function, err)
	}
	if out.FunctionError != nil {
		return fmt.Errorf("invoke %s: %s", q.function, aws.StringValue(out.FunctionError))
	}
	return nil
}

// LambdaHandler returns the entrypoint of the worker function. A failed
// attempt is re-invoked through q after its backoff instead of failing the
// invocation, so Lambda's own retries never stack on top of the runner's.
func LambdaHandler(runner *Runner, q Queue) func(ctx context.Context, payload go_json.RawMessage) error {
	return func(ctx context.Context, payload go_json.RawMessage) error {
		job, err := Unmarshal(payload)
		if err != nil {
			// redelivery cannot fix a bad payload
			return nil
		}

		out := runner.Process(ctx, job)
		if !out.Retry {
			return nil
		}

		timer := time.NewTimer(out.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		return q.Enqueue(ctx, out.Next)
	}
}
