package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// SendLimits caps how fast a transport may be driven. A zero window is
// unlimited.
type SendLimits struct {
	PerSecond int
	PerMinute int
	PerDay    int
}

// RateLimiter enforces per-transport send limits with an atomic Redis Lua
// check-and-increment. A plain GET/check/INCR sequence would race between
// concurrent batch workers; the script makes the decision and the increment
// one operation.
type RateLimiter struct {
	redis  *redis.Client
	limits map[domain.TransportType]SendLimits
	script *redis.Script
}

const sendLimitLuaScript = `
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secondLimit > 0 and secCurrent + increment > secondLimit then
    return {0, 1}
end
if minuteLimit > 0 and minCurrent + increment > minuteLimit then
    return {0, 2}
end
if dailyLimit > 0 and dayCurrent + increment > dailyLimit then
    return {0, 3}
end

local newSec = redis.call("INCRBY", secondKey, increment)
if newSec == increment then
    redis.call("EXPIRE", secondKey, 2)
end

local newMin = redis.call("INCRBY", minuteKey, increment)
if newMin == increment then
    redis.call("EXPIRE", minuteKey, 120)
end

local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, 90000)
end

return {1, 0}
`

// NewRateLimiter returns a limiter over the given Redis client.
func NewRateLimiter(client *redis.Client, limits map[domain.TransportType]SendLimits) *RateLimiter {
	return &RateLimiter{
		redis:  client,
		limits: limits,
		script: redis.NewScript(sendLimitLuaScript),
	}
}

// Allow atomically reserves n sends against the transport's windows. When
// denied it returns the time to wait before trying again.
func (r *RateLimiter) Allow(ctx context.Context, transport domain.TransportType, n int) (allowed bool, wait time.Duration, err error) {
	limits, ok := r.limits[transport]
	if !ok {
		return false, 0, fmt.Errorf("no send limits configured for %s", transport)
	}

	now := time.Now()
	secondKey := fmt.Sprintf("sendlimit:%s:sec:%d", transport, now.Unix())
	minuteKey := fmt.Sprintf("sendlimit:%s:min:%d", transport, now.Unix()/60)
	dailyKey := fmt.Sprintf("sendlimit:%s:day:%s", transport, now.Format("2006-01-02"))

	result, err := r.script.Run(ctx, r.redis,
		[]string{secondKey, minuteKey, dailyKey},
		n, limits.PerSecond, limits.PerMinute, limits.PerDay,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("send limit check: %w", err)
	}

	if result[0].(int64) == 1 {
		return true, 0, nil
	}

	switch result[1].(int64) {
	case 1:
		return false, time.Second, nil
	case 2:
		return false, time.Duration(60-now.Second()) * time.Second, nil
	default:
		return false, 0, fmt.Errorf("%w for %s", ErrDailyLimit, transport)
	}
}

// Wait blocks until one send is admitted or the context ends. A nil
// receiver admits immediately, which keeps the limiter optional in tests
// and local setups without Redis.
func (r *RateLimiter) Wait(ctx context.Context, transport domain.TransportType) error {
	if r == nil {
		return nil
	}
	for {
		allowed, wait, err := r.Allow(ctx, transport, 1)
		if errors.Is(err, ErrDailyLimit) {
			return err
		}
		if err != nil {
			// A limiter outage must not stop sending.
			logger.Warn("send limiter unavailable, proceeding", "error", err.Error())
			return nil
		}
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
