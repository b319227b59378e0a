package history

import (
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Backend string // "memory" or "redis"
	Prefix  string
}

// New picks the backend. A nil redis client always yields the memory store.
func New(cfg Config, redisClient *redis.Client) Store {
	switch cfg.Backend {
	case "redis":
		if redisClient != nil {
			return NewRedisStore(redisClient, RedisConfig{
				Prefix: cfg.Prefix,
			})
		}
		fallthrough
	default:
		return NewMemoryStore()
	}
}
