package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-login-auth/internal/core/port"
)

const defaultRateLimitPrefix = "auth:rate_limit"

// KEYS[1] window key; ARGV[1] hit score; ARGV[2] exclusive lower bound ("(" prefixed);
// ARGV[3] limit; ARGV[4] member; ARGV[5] key ttl in ms (0 keeps the key forever).
// Scores travel as strings because Lua would format them in exponent notation.
// Returns {admitted, count, oldest score or -1}.
const slidingWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local count = redis.call("ZCARD", KEYS[1])
local admitted = 0
if count < tonumber(ARGV[3]) then
	redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
	count = count + 1
	admitted = 1
end
if tonumber(ARGV[5]) > 0 and count > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[5])
end
local head = redis.call("ZRANGE", KEYS[1], "0", "0", "WITHSCORES")
local oldest = -1
if head[2] then
	oldest = tonumber(head[2])
end
return {admitted, count, oldest}
`

var slidingWindowLua = red.NewScript(slidingWindowScript)

// RateLimitRepository keeps one sorted set per identifier, scored by the hit time in microseconds.
type RateLimitRepository struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewRateLimitRepository builds the store. ttl bounds how long an idle window key lingers
// and should exceed the longest window in use.
func NewRateLimitRepository(client *red.Client, keyPrefix string, ttl time.Duration) *RateLimitRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RateLimitRepository{client: client, prefix: prefix, ttl: ttl}
}

// Hit trims the window ending at at, then records the hit if fewer than limit remain.
func (r *RateLimitRepository) Hit(ctx context.Context, identifier string, limit int, window time.Duration, at time.Time) (port.WindowUsage, error) {
	if window <= 0 {
		return port.WindowUsage{}, errors.New("window must be positive")
	}
	if limit <= 0 {
		return port.WindowUsage{}, errors.New("limit must be positive")
	}

	score := strconv.FormatInt(at.UnixMicro(), 10)
	floor := "(" + strconv.FormatInt(at.Add(-window).UnixMicro(), 10)
	// Same-microsecond hits from different replicas must stay distinct members.
	member := score + ":" + uuid.NewString()

	reply, err := slidingWindowLua.Run(ctx, r.client, []string{r.key(identifier)},
		score, floor, limit, member, r.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return port.WindowUsage{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(reply) != 3 {
		return port.WindowUsage{}, fmt.Errorf("redis sliding window: unexpected reply %v", reply)
	}

	usage := port.WindowUsage{
		Admitted: reply[0] == 1,
		Count:    int(reply[1]),
	}
	if reply[2] >= 0 {
		usage.Oldest = time.UnixMicro(reply[2]).UTC()
	}
	return usage, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	return r.prefix + ":" + identifier
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
