package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

type Kind string

type Job struct {
	ID         uuid.UUID          `json:"id"`
	Kind       Kind               `json:"kind"`
	Payload    go_json.RawMessage `json:"payload"`
	Attempt    int                `json:"attempt"`
	EnqueuedAt time.Time          `json:"enqueued_at"`
}

func New(kind Kind, payload any) (Job, error) {
	b, err := go_json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	return Job{
		ID:         uuid.New(),
		Kind:       kind,
		Payload:    b,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (j Job) Decode(v any) error {
	if err := go_json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", j.Kind, err)
	}
	return nil
}

func (j Job) Marshal() ([]byte, error) { return go_json.Marshal(j) }

func Unmarshal(data []byte) (Job, error) {
	var j Job
	if err := go_json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("decoding job: %w", err)
	}
	if j.Kind == "" {
		return Job{}, errors.New("decoding job: missing kind")
	}
	return j, nil
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Submit builds a job and enqueues it.
func Submit(ctx context.Context, q Queue, kind Kind, payload any) (Job, error) {
	job, err := New(kind, payload)
	if err != nil {
		return Job{}, err
	}
	if err := q.Enqueue(ctx, job); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return job, nil
}

// QueueFunc adapts a function to Queue.
type QueueFunc func(ctx context.Context, job Job) error

func (f QueueFunc) Enqueue(ctx context.Context, job Job) error { return f(ctx, job) }
