package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fjod/go_cart/checkout-engine/domain"
)

const (
	fieldCode    = "code"
	fieldMandate = "mandate"
)

// compareAndDelete returns 1 when the code matched and the entry was removed,
// -1 on a mismatch and 0 when there is nothing stored.
var compareAndDelete = redis.NewScript(`
local stored = redis.call("HGET", KEYS[1], "code")
if not stored then
	return 0
end
if stored == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return -1
`)

// RedisCodeStore keeps each code and its mandate in one hash, so any instance
// can verify the code and resume the payment, and both expire together.
type RedisCodeStore struct {
	client *redis.Client
	prefix string
}

func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client, prefix: "otp"}
}

func (r *RedisCodeStore) Put(ctx context.Context, mandate domain.PaymentMandate, code string, ttl time.Duration) error {
	payload, err := json.Marshal(mandate)
	if err != nil {
		return fmt.Errorf("encode mandate: %w", err)
	}

	key := r.key(mandate.ID())
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldCode, code, fieldMandate, payload)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put failed: %w", err)
	}
	return nil
}

func (r *RedisCodeStore) Mandate(ctx context.Context, mandateID string) (domain.PaymentMandate, bool, error) {
	payload, err := r.client.HGet(ctx, r.key(mandateID), fieldMandate).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PaymentMandate{}, false, nil
	}
	if err != nil {
		return domain.PaymentMandate{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var m domain.PaymentMandate
	if err := json.Unmarshal(payload, &m); err != nil {
		return domain.PaymentMandate{}, false, fmt.Errorf("decode mandate %s: %w", mandateID, err)
	}
	return m, true, nil
}

func (r *RedisCodeStore) CompareAndDelete(ctx context.Context, mandateID, code string) (VerifyResult, error) {
	res, err := compareAndDelete.Run(ctx, r.client, []string{r.key(mandateID)}, code).Int()
	if err != nil {
		return NotFound, fmt.Errorf("redis compare-and-delete failed: %w", err)
	}
	switch res {
	case 1:
		return Matched, nil
	case -1:
		return Mismatch, nil
	default:
		return NotFound, nil
	}
}

func (r *RedisCodeStore) Delete(ctx context.Context, mandateID string) error {
	if err := r.client.Del(ctx, r.key(mandateID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisCodeStore) key(mandateID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, mandateID)
}
