// Package rediskv implements the kv.Store contract against a remote Redis
// server, for deployments that share one kv backend across multiple
// depfile processes.
package rediskv

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-redis/redis/v8"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/kv/registry"
)

func init() {
	registry.Register("redis", New)
}

type store struct {
	client   *redis.Client
	duration time.Duration
	mapTable string
}

// New connects to cfg.RedisHost, retrying with backoff until the server
// answers PING or the default backoff budget is exhausted.
func New(cfg *config.Config) (kv.Store, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisHost + ":6379"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ping := func() error { return client.Ping(ctx).Err() }
	if err := backoff.Retry(ping, backoff.NewExponentialBackOff()); err != nil {
		client.Close()
		return nil, err
	}

	return &store{
		client:   client,
		duration: time.Duration(cfg.KVMaxSeconds) * time.Second,
		mapTable: cfg.KVMapTableName,
	}, nil
}

func (s *store) GetSession(ctx context.Context, uploadID, field string) (string, error) {
	val, err := s.client.HGet(ctx, uploadID, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *store) SetSession(ctx context.Context, uploadID, field, val string) error {
	exists, err := s.client.Exists(ctx, uploadID).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		if err := s.client.Expire(ctx, uploadID, s.duration).Err(); err != nil {
			return err
		}
	}
	return s.client.HSet(ctx, uploadID, field, val).Err()
}

func (s *store) GetSessionDict(ctx context.Context, uploadID string) (map[string]string, error) {
	return s.client.HGetAll(ctx, uploadID).Result()
}

func (s *store) ClearSessionKey(ctx context.Context, uploadID string) (bool, error) {
	exists, err := s.client.Exists(ctx, uploadID).Result()
	if err != nil || exists == 0 {
		return false, err
	}
	n, err := s.client.Del(ctx, uploadID).Result()
	return n > 0, err
}

func (s *store) ClearSessionField(ctx context.Context, uploadID, field string) (bool, error) {
	n, err := s.client.HDel(ctx, uploadID, field).Result()
	return n > 0, err
}

func (s *store) GetMap(ctx context.Context, mapKey string) (string, error) {
	val, err := s.client.HGet(ctx, s.mapTable, mapKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *store) SetMap(ctx context.Context, mapKey, uploadID string) error {
	return s.client.HSet(ctx, s.mapTable, mapKey, uploadID).Err()
}

func (s *store) ClearMapKey(ctx context.Context, mapKey string) error {
	return s.client.HDel(ctx, s.mapTable, mapKey).Err()
}

func (s *store) ClearMapVal(ctx context.Context, uploadID string) error {
	all, err := s.client.HGetAll(ctx, s.mapTable).Result()
	if err != nil {
		return err
	}
	for field, val := range all {
		if val == uploadID {
			if err := s.client.HDel(ctx, s.mapTable, field).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *store) Close() error {
	return s.client.Close()
}
