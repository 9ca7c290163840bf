package ipc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/astrid-audio/astrid/internal/astriderr"
	"github.com/astrid-audio/astrid/internal/config"
)

const (
	connsPerCPU = 4
	maxIdleTime = 5 * time.Minute
	// counterLockTimeout bounds how long withLock waits for the per-path
	// Redis lock before giving up — the LockTimeout error kind — and is
	// also the lock key's TTL.
	counterLockTimeout = 2 * time.Second
)

// redisStore backs every cell with a Redis string key and every counter
// with a Redis-native INCR, giving the read-and-increment contract for
// free without a client-side lock. Value cells use a SETNX-based lock key
// to serialize get/set the same way the shm backend uses flock.
type redisStore struct {
	client *redis.Client
}

func newRedisStore(cfg *config.Config) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:        cfg.Redis.Password,
		PoolFIFO:        true,
		PoolSize:        runtime.GOMAXPROCS(0) * connsPerCPU,
		MinIdleConns:    runtime.GOMAXPROCS(0),
		ConnMaxIdleTime: maxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, astriderr.New(astriderr.ResourceExhausted, "ipc.newRedisStore", fmt.Errorf("connect to redis: %w", err))
	}

	return &redisStore{client: client}, nil
}

func (s *redisStore) cellKey(path string) string { return "astrid:cell:" + path }
func (s *redisStore) idKey(path string) string   { return "astrid:cellid:" + path }
func (s *redisStore) lockKey(path string) string { return "astrid:lock:" + path }

// withLock acquires the SETNX lock for path, tagged with a fresh UUID so
// that release only clears the lock this call actually holds — a held
// lock whose TTL has already expired and been picked up by another
// caller must never be deleted out from under them.
func (s *redisStore) withLock(ctx context.Context, path string, fn func() error) error {
	key := s.lockKey(path)
	token := uuid.NewString()
	deadline := time.Now().Add(counterLockTimeout)
	for {
		ok, err := s.client.SetNX(ctx, key, token, counterLockTimeout).Result()
		if err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.withLock", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return astriderr.New(astriderr.LockTimeout, "ipc.withLock", fmt.Errorf("timed out acquiring lock for %s", path))
		}
		time.Sleep(time.Millisecond)
	}
	defer s.releaseLock(ctx, key, token)
	return fn()
}

// releaseLock deletes key only if it still holds the value this caller
// set, so a lock this caller's TTL already expired is left alone.
func (s *redisStore) releaseLock(ctx context.Context, key, token string) {
	held, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return
	}
	if held == token {
		s.client.Del(ctx, key)
	}
}

func (s *redisStore) CreateCell(ctx context.Context, path string, size int) (uint64, error) {
	var id uint64
	err := s.withLock(ctx, path, func() error {
		existing, err := s.client.Get(ctx, s.idKey(path)).Uint64()
		if err == nil {
			id = existing
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCell", err)
		}

		id = hashPath(path)
		blank := make([]byte, size)
		if err := s.client.Set(ctx, s.cellKey(path), blank, 0).Err(); err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCell", err)
		}
		if err := s.client.Set(ctx, s.idKey(path), id, 0).Err(); err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCell", err)
		}
		return nil
	})
	return id, err
}

func (s *redisStore) SetCell(ctx context.Context, path string, data []byte) error {
	return s.withLock(ctx, path, func() error {
		if err := s.client.Set(ctx, s.cellKey(path), data, 0).Err(); err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.SetCell", err)
		}
		return nil
	})
}

func (s *redisStore) GetCell(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.withLock(ctx, path, func() error {
		b, err := s.client.Get(ctx, s.cellKey(path)).Bytes()
		if errors.Is(err, redis.Nil) {
			return astriderr.New(astriderr.NotFound, "ipc.GetCell", err)
		}
		if err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.GetCell", err)
		}
		data = b
		return nil
	})
	return data, err
}

func (s *redisStore) DestroyCell(ctx context.Context, path string) error {
	return s.withLock(ctx, path, func() error {
		if err := s.client.Del(ctx, s.cellKey(path), s.idKey(path)).Err(); err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.DestroyCell", err)
		}
		return nil
	})
}

func (s *redisStore) CreateCounter(ctx context.Context, path string) error {
	return s.withLock(ctx, path, func() error {
		exists, err := s.client.Exists(ctx, s.cellKey(path)).Result()
		if err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCounter", err)
		}
		if exists > 0 {
			return nil
		}
		if err := s.client.Set(ctx, s.cellKey(path), uint64(1), 0).Err(); err != nil {
			return astriderr.New(astriderr.ResourceExhausted, "ipc.CreateCounter", err)
		}
		return nil
	})
}

// ReadAndIncrement relies on Redis's own atomicity for INCRBY rather than
// the withLock helper: two concurrent INCRBYs on one key can never observe
// the same pre-increment value.
func (s *redisStore) ReadAndIncrement(ctx context.Context, path string) (uint64, error) {
	val, err := s.client.IncrBy(ctx, s.cellKey(path), 1).Result()
	if err != nil {
		return 0, astriderr.New(astriderr.ResourceExhausted, "ipc.ReadAndIncrement", err)
	}
	// IncrBy returns the post-increment value; the pre-increment value
	// (the one this caller "observed") is one less.
	return uint64(val) - 1, nil
}

func (s *redisStore) DestroyCounter(ctx context.Context, path string) error {
	return s.DestroyCell(ctx, path)
}

func (s *redisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return astriderr.New(astriderr.ResourceExhausted, "ipc.Close", err)
	}
	return nil
}
