package queue

import (
	"context"
	"time"

	"github.com/pkg/errors"
	r "github.com/redis/go-redis/v9"
)

// RedisQ is a FIFO of job ids on a single Redis list: producers LPUSH,
// consumers pop from the right. Pops are destructive and unacknowledged.
type RedisQ struct {
	rdb *r.Client
	key string
}

func New(rdb *r.Client, key string) *RedisQ { return &RedisQ{rdb: rdb, key: key} }

func (q *RedisQ) Enqueue(ctx context.Context, jobID string) error {
	return errors.Wrapf(q.rdb.LPush(ctx, q.key, jobID).Err(), "lpush %s", q.key)
}

// Dequeue pops the oldest id without blocking; ok is false when the list is empty.
func (q *RedisQ) Dequeue(ctx context.Context) (string, bool, error) {
	id, err := q.rdb.RPop(ctx, q.key).Result()
	if errors.Is(err, r.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "rpop %s", q.key)
	}
	return id, true, nil
}

// DequeueWait blocks up to block for an id. It is meant for a long-lived
// worker process, not for a request handler.
func (q *RedisQ) DequeueWait(ctx context.Context, block time.Duration) (string, bool, error) {
	res, err := q.rdb.BRPop(ctx, block, q.key).Result()
	if errors.Is(err, r.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "brpop %s", q.key)
	}
	if len(res) == 2 {
		return res[1], true, nil
	}
	return "", false, nil
}

func (q *RedisQ) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	return n, errors.Wrapf(err, "llen %s", q.key)
}
