package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/redis/go-redis/v9"
)

const (
	pollTimeout   = time.Second
	promoteEvery  = 500 * time.Millisecond
	delayedSuffix = ":delayed"
)

// RedisQueue keeps ready jobs in a list (LPUSH/BRPOP) and retries in a
// sorted set scored by the time they become due.
type RedisQueue struct {
	client  *redis.Client
	key     string
	runner  *Runner
	workers int
	logger  *slog.Logger
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(client *redis.Client, key string, runner *Runner, workers int, logger *slog.Logger) *RedisQueue {
	if workers < 1 {
		workers = 1
	}
	return &RedisQueue{
		client:  client,
		key:     key,
		runner:  runner,
		workers: workers,
		logger:  logger,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	b, err := job.Marshal()
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) schedule(ctx context.Context, job Job, at time.Time) error {
	b, err := job.Marshal()
	if err != nil {
		return err
	}
	return q.client.ZAdd(ctx, q.key+delayedSuffix, redis.Z{Score: float64(at.UnixMilli()), Member: b}).Err()
}

// promote moves due retries onto the ready list.
func (q *RedisQueue) promote(ctx context.Context, now time.Time) (int, error) {
	delayed := q.key + delayedSuffix
	due, err := q.client.ZRangeByScore(ctx, delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, member := range due {
		// ZREM wins the race between workers: only one moves each member.
		removed, err := q.client.ZRem(ctx, delayed, member).Result()
		if err != nil {
			return moved, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.key, member).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Run blocks until ctx is cancelled.
func (q *RedisQueue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for range q.workers {
		wg.Go(func() { q.work(ctx) })
	}
	wg.Go(func() {
		ticker := time.NewTicker(promoteEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := q.promote(ctx, now); err != nil && ctx.Err() == nil {
					q.logger.WarnContext(ctx, "promoting delayed jobs", xslog.Error(err))
				}
			}
		}
	})
	wg.Wait()
	return nil
}

func (q *RedisQueue) work(ctx context.Context) {
	for ctx.Err() == nil {
		res, err := q.client.BRPop(ctx, pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				q.logger.WarnContext(ctx, "brpop", xslog.Error(err))
				time.Sleep(pollTimeout)
			}
			continue
		}

		job, err := Unmarshal([]byte(res[1]))
		if err != nil {
			q.logger.ErrorContext(ctx, "dropping malformed job", xslog.Error(err))
			continue
		}

		out := q.runner.Process(context.WithoutCancel(ctx), job)
		if !out.Retry {
			continue
		}
		if err := q.schedule(context.WithoutCancel(ctx), out.Next, time.Now().Add(out.Delay)); err != nil {
			q.logger.ErrorContext(ctx, "scheduling retry", xslog.JobID(job.ID.String()), xslog.Error(err))
		}
	}
}
