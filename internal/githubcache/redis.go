package githubcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "orgportal:ghcache:"

// RedisStore is a ResponseStore shared between portal instances. Entries
// carry their own expiration (the secondary staleness bound) so Redis
// reclaims them without a sweeper.
type RedisStore struct {
	rdb        *redis.Client
	expiration time.Duration
}

func NewRedisStore(addr, password string, db int, maxEntryLifetime time.Duration) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		expiration: maxEntryLifetime,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, bool) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logrus.Debugf("redis cache get %s: %v", key, err)
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		logrus.Debugf("redis cache decode %s: %v", key, err)
		return nil, false
	}
	return &entry, true
}

func (s *RedisStore) Set(ctx context.Context, key string, body []byte, storedAt time.Time) {
	data, err := json.Marshal(&Entry{Body: body, StoredAt: storedAt})
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+key, data, s.expiration).Err(); err != nil {
		logrus.Debugf("redis cache set %s: %v", key, err)
	}
}
