package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Zero(t, AccountID(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, TokenID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestRoundTrip(t *testing.T) {
	fixed := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	ctx := WithAccountID(context.Background(), 42)
	ctx = WithTokenID(ctx, "jti-1")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTime(ctx, fixed)
	ctx = WithClientMetadata(ctx, "10.0.0.1", "curl/8.0")

	assert.Equal(t, int64(42), AccountID(ctx))
	assert.Equal(t, "jti-1", TokenID(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
}
