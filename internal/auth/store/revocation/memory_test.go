package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"educa/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL(func() time.Time { return now })

	require.NoError(t, trl.RevokeTokens(ctx, []string{"a", "", "b"}, time.Hour))

	revoked, err := trl.IsRevoked(ctx, "a")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = trl.IsRevoked(ctx, "c")
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, _ = trl.IsRevoked(ctx, "b")
	assert.False(t, revoked, "entries lapse with the token")
}

func TestRevokeRejectsNonPositiveTTL(t *testing.T) {
	trl := NewInMemoryTRL(nil)
	err := trl.RevokeTokens(context.Background(), []string{"a"}, 0)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}
