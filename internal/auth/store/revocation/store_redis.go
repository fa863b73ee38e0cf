package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedTokenKeyPrefix = "educa:trl:jti:"

// RedisTRL shares revocation state between instances. Keys expire with the
// token, so Redis does the pruning.
type RedisTRL struct {
	client  *redis.Client
	metrics *Metrics
}

type RedisTRLOption func(*RedisTRL)

func WithRedisMetrics(m *Metrics) RedisTRLOption {
	return func(t *RedisTRL) {
		t.metrics = m
	}
}

func NewRedisTRL(client *redis.Client, opts ...RedisTRLOption) *RedisTRL {
	trl := &RedisTRL{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(trl)
		}
	}
	return trl
}

// RevokeTokens writes every id in one pipeline round trip.
func (t *RedisTRL) RevokeTokens(ctx context.Context, jtis []string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	valid := nonEmpty(jtis)
	if len(valid) == 0 {
		return nil
	}
	pipe := t.client.Pipeline()
	for _, jti := range valid {
		pipe.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (t *RedisTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	defer t.metrics.observe(time.Now())

	if jti == "" {
		return false, nil
	}
	err := t.client.Get(ctx, revokedTokenKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
