package transport

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/astridmsg"
	"github.com/astrid-audio/astrid/internal/config"
)

const (
	redisConnsPerCPU  = 4
	redisMaxIdleTime  = 5 * time.Minute
	redisBlockTimeout = 1 * time.Second
)

// redisQueue backs a Queue with a Redis list: Send is RPUSH, Read is a
// blocking BLPOP so a reader parks in Redis instead of busy-polling.
type redisQueue struct {
	client  *redis.Client
	key     string
	maxName int
	maxMsg  int
}

func newRedisQueue(cfg *config.Config, purpose string) (Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * redisConnsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: redisMaxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "transport.newRedisQueue", fmt.Errorf("connect to redis: %w", err))
	}

	return &redisQueue{
		client:  client,
		key:     "astrid:queue:" + cfg.NamePrefix + "-" + purpose,
		maxName: cfg.MaxName,
		maxMsg:  cfg.MaxMsg,
	}, nil
}

func (q *redisQueue) Read(ctx context.Context) (astridmsg.Message, error) {
	for {
		res, err := q.client.BLPop(ctx, redisBlockTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return astridmsg.Message{}, astriderr.New(astriderr.Interrupted, "transport.redisQueue.Read", ctx.Err())
			}
			continue
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return astridmsg.Message{}, astriderr.New(astriderr.Interrupted, "transport.redisQueue.Read", err)
			}
			return astridmsg.Message{}, astriderr.New(astriderr.TransportClosed, "transport.redisQueue.Read", err)
		}
		// res[0] is the key name, res[1] the popped element.
		return astridmsg.Decode([]byte(res[1]), q.maxName, q.maxMsg)
	}
}

func (q *redisQueue) Send(ctx context.Context, m astridmsg.Message) error {
	buf, err := astridmsg.Encode(m, q.maxName, q.maxMsg)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, q.key, buf).Err(); err != nil {
		return astriderr.New(astriderr.TransportFull, "transport.redisQueue.Send", err)
	}
	return nil
}

func (q *redisQueue) Close() error {
	if err := q.client.Close(); err != nil {
		return astriderr.New(astriderr.TransportClosed, "transport.redisQueue.Close", err)
	}
	return nil
}
