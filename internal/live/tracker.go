package live

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker remembers the newest completed sequence per live session.
type Tracker interface {
	Advance(ctx context.Context, sessionID string, sequence uint64) (bool, error)
}

// advanceScript stores ARGV[1] only when it is newer than the stored value.
var advanceScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

type RedisTracker struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisTracker(redisClient *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &RedisTracker{
		redis: redisClient,
		ttl:   ttl,
	}
}

func sequenceKey(sessionID string) string {
	return fmt.Sprintf("live:%s:sequence", sessionID)
}

// Advance records sequence as the newest result for the session. It returns
// false when a result with the same or a higher sequence was already recorded.
func (t *RedisTracker) Advance(ctx context.Context, sessionID string, sequence uint64) (bool, error) {
	res, err := advanceScript.Run(ctx, t.redis,
		[]string{sequenceKey(sessionID)},
		strconv.FormatUint(sequence, 10),
		t.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (t *RedisTracker) Latest(ctx context.Context, sessionID string) (uint64, error) {
	val, err := t.redis.Get(ctx, sequenceKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(val, 10, 64)
}

func (t *RedisTracker) Reset(ctx context.Context, sessionID string) error {
	return t.redis.Del(ctx, sequenceKey(sessionID)).Err()
}
