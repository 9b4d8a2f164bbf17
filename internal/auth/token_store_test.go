package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"showroom/internal/cache"
)

// A store over a nil cache behaves like an empty, unreachable redis.
func TestTokenStoreOverUnavailableCache(t *testing.T) {
	store := NewTokenStore((*cache.Client)(nil))
	ctx := context.Background()

	assert.NoError(t, store.StoreRefreshToken(ctx, "jti", "id", "x@example.com", time.Hour))

	_, _, err := store.GetRefreshToken(ctx, "jti")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	blacklisted, err := store.IsAccessTokenBlacklisted(ctx, "jti")
	assert.NoError(t, err)
	assert.False(t, blacklisted)

	_, err = store.ConsumeConfirmationToken(ctx, "token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestBlacklistIgnoresExpiredTokens(t *testing.T) {
	store := NewTokenStore((*cache.Client)(nil))
	assert.NoError(t, store.BlacklistAccessToken(context.Background(), "jti", -time.Second))
}
