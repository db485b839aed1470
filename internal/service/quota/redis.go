package quota

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisIncrementScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

const redisCountScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
return tonumber(current)
`

const redisResetScript = `
return redis.call("DEL", KEYS[1])
`

const redisTimeout = 500 * time.Millisecond

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisCounter shares daily counts between server instances. Redis errors are
// logged and treated as a zero count so the tutor stays usable.
type RedisCounter struct {
	client redisEvaler
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisCounter wraps a go-redis client. It returns nil for a nil client.
func NewRedisCounter(client *redis.Client, logger *zap.Logger) *RedisCounter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCounter{
		client: client,
		prefix: "tutor:quota:",
		logger: logger,
		now:    time.Now,
	}
}

func (c *RedisCounter) key(key string) string {
	return c.prefix + normalizeKey(key) + ":" + dayStamp(c.now())
}

func (c *RedisCounter) Count(ctx context.Context, key string) (int, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	count, err := c.client.Eval(ctx, redisCountScript, []string{c.key(key)}).Int()
	if err != nil {
		c.logger.Warn("quota count failed", zap.String("key", key), zap.Error(err))
		return 0, nil
	}
	return count, nil
}

func (c *RedisCounter) Increment(ctx context.Context, key string) (int, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	seconds := int(untilMidnight(c.now()).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	count, err := c.client.Eval(ctx, redisIncrementScript, []string{c.key(key)}, seconds).Int()
	if err != nil {
		c.logger.Warn("quota increment failed", zap.String("key", key), zap.Error(err))
		return 0, nil
	}
	return count, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := c.client.Eval(ctx, redisResetScript, []string{c.key(key)}).Err(); err != nil {
		c.logger.Warn("quota reset failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
