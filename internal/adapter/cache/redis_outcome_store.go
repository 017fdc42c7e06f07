package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/gooseberrytechnovision/schooniverse-checkout/internal/entity"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// applyOutcome mirrors domain.ResolveOutcome in one round trip so
// concurrent finalize calls for the same order cannot both apply PAID.
// Only FAILED and CANCELLED expire; a PAID key is kept forever, and SET
// without KEEPTTL drops any TTL left from an earlier outcome.
var applyOutcome = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
if not prev then prev = '' end
if prev == 'PAID' or prev == ARGV[1] then
  return {prev, 0}
end
redis.call('SET', KEYS[1], ARGV[1])
if ARGV[1] ~= 'PAID' and tonumber(ARGV[2]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {prev, 1}
`)

type RedisOutcomeStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisOutcomeStore(rdb *redis.Client, ttl time.Duration) *RedisOutcomeStore {
	return &RedisOutcomeStore{rdb: rdb, ttl: ttl}
}

func outcomeKey(orderID string) string { return "checkout:order:outcome:" + orderID }

func (r *RedisOutcomeStore) Apply(ctx context.Context, orderID string, next domain.Outcome) (domain.Outcome, bool, error) {
	res, err := applyOutcome.Run(ctx, r.rdb, []string{outcomeKey(orderID)}, string(next), r.ttl.Milliseconds()).Slice()
	if err != nil {
		return domain.OutcomeNone, false, err
	}
	if len(res) != 2 {
		return domain.OutcomeNone, false, fmt.Errorf("apply outcome: unexpected reply %v", res)
	}
	prev, _ := res[0].(string)
	applied, _ := res[1].(int64)
	return domain.Outcome(prev), applied == 1, nil
}

func (r *RedisOutcomeStore) Get(ctx context.Context, orderID string) (domain.Outcome, error) {
	val, err := r.rdb.Get(ctx, outcomeKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.OutcomeNone, nil
	}
	return domain.Outcome(val), err
}

var _ usecase.OutcomeStore = (*RedisOutcomeStore)(nil)
