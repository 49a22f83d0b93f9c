package sequence

import (
	"context"

	"github.com/rs/zerolog/log"
	redis "github.com/redis/go-redis/v9"
)

const DefaultKey = "dolmen:receipt-seq"

// RedisSequencer shares one counter across processes through INCR. When redis
// is unreachable it falls back to a local counter so checkout keeps working.
type RedisSequencer struct {
	client   *redis.Client
	key      string
	fallback *LocalSequencer
}

func NewRedis(addr string, password string, db int) *RedisSequencer {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSequencer{client: client, key: DefaultKey, fallback: NewLocal()}
}

func (s *RedisSequencer) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSequencer) Close() error {
	return s.client.Close()
}

func (s *RedisSequencer) Next(ctx context.Context) (int64, error) {
	n, err := s.client.Incr(ctx, s.key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", s.key).Msg("redis sequence unavailable, using local counter")
		return s.fallback.Next(ctx)
	}
	return n, nil
}
