package quota

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// admitScript checks every window before touching any of them.
// KEYS: window keys. ARGV: ceiling, increment, ttl ms per window.
// Returns {0, index, current} on reject or {1, 0, 0, values...} on admit.
var admitScript = redis.NewScript(`
for i = 1, #KEYS do
	local current = tonumber(redis.call('GET', KEYS[i]) or '0')
	local ceiling = tonumber(ARGV[(i - 1) * 3 + 1])
	local increment = tonumber(ARGV[(i - 1) * 3 + 2])
	if current + increment > ceiling then
		return {0, i, current}
	end
end
local result = {1, 0, 0}
for i = 1, #KEYS do
	local increment = tonumber(ARGV[(i - 1) * 3 + 2])
	local value = redis.call('INCRBY', KEYS[i], increment)
	redis.call('PEXPIRE', KEYS[i], ARGV[(i - 1) * 3 + 3])
	table.insert(result, value)
end
return result
`)

// RedisCounter keeps window counters in Redis and admits with one Lua script
type RedisCounter struct {
	client redis.UniversalClient
}

// NewRedisCounter creates a Redis-backed counter
func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

// Backend implements Counter
func (c *RedisCounter) Backend() string { return "redis" }

// Admit implements Counter
func (c *RedisCounter) Admit(ctx context.Context, windows []Window) (*Outcome, error) {
	keys := make([]string, len(windows))
	args := make([]interface{}, 0, len(windows)*3)
	for i, w := range windows {
		keys[i] = w.Key
		ttl := w.TTL.Milliseconds()
		if ttl < 1 {
			ttl = 1
		}
		args = append(args, w.Ceiling, w.Increment, ttl)
	}

	raw, err := admitScript.Run(ctx, c.client, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run admission script: %w", err)
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("unexpected admission script reply: %v", raw)
	}

	nums := make([]int64, len(raw))
	for i, v := range raw {
		n, ok := v.(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected admission script value %T", v)
		}
		nums[i] = n
	}

	if nums[0] == 0 {
		return &Outcome{Rejected: int(nums[1]) - 1, Current: nums[2]}, nil
	}
	return &Outcome{Admitted: true, Rejected: -1, Values: nums[3:]}, nil
}

// Current implements Counter
func (c *RedisCounter) Current(ctx context.Context, keys []string) ([]int64, error) {
	raw, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	values := make([]int64, len(keys))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid counter %s: %w", keys[i], err)
		}
		values[i] = n
	}
	return values, nil
}
