package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"showroom/internal/cache"
)

const (
	refreshTokenKeyPrefix      = "refresh_token:"
	accessTokenKeyPrefix       = "blacklist:access_token:"
	confirmationTokenKeyPrefix = "confirm_token:"
)

// ErrTokenNotFound is returned when a stored token is missing or expired.
var ErrTokenNotFound = errors.New("token not found")

// TokenStoreInterface defines the interface for token storage operations.
type TokenStoreInterface interface {
	StoreRefreshToken(ctx context.Context, tokenID string, identityID string, email string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (identityID string, email string, err error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
	BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error)
	StoreConfirmationToken(ctx context.Context, token string, identityID string, ttl time.Duration) error
	ConsumeConfirmationToken(ctx context.Context, token string) (identityID string, err error)
}

// TokenStore handles storage and retrieval of tokens in Redis.
type TokenStore struct {
	cache *cache.Client
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

type refreshTokenData struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
}

// StoreRefreshToken stores a refresh token in Redis with TTL.
func (s *TokenStore) StoreRefreshToken(ctx context.Context, tokenID string, identityID string, email string, ttl time.Duration) error {
	payload, err := json.Marshal(refreshTokenData{IdentityID: identityID, Email: email})
	if err != nil {
		return fmt.Errorf("marshal token data: %w", err)
	}
	return s.cache.Set(ctx, refreshTokenKeyPrefix+tokenID, payload, ttl)
}

// GetRefreshToken retrieves refresh token data from Redis.
func (s *TokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, string, error) {
	data, err := s.cache.Get(ctx, refreshTokenKeyPrefix+tokenID)
	if err != nil || data == nil {
		return "", "", ErrTokenNotFound
	}

	var stored refreshTokenData
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", "", fmt.Errorf("unmarshal token data: %w", err)
	}
	if stored.IdentityID == "" {
		return "", "", fmt.Errorf("invalid identity_id in token data")
	}
	return stored.IdentityID, stored.Email, nil
}

// DeleteRefreshToken removes a refresh token from Redis.
func (s *TokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	return s.cache.Delete(ctx, refreshTokenKeyPrefix+tokenID)
}

// BlacklistAccessToken adds an access token to the blacklist until it expires.
func (s *TokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, accessTokenKeyPrefix+tokenID, []byte("1"), ttl)
}

// IsAccessTokenBlacklisted checks if an access token is blacklisted.
func (s *TokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	data, err := s.cache.Get(ctx, accessTokenKeyPrefix+tokenID)
	if err != nil {
		return false, nil // Not blacklisted if error (fail safe)
	}
	return data != nil, nil
}

// StoreConfirmationToken records an email confirmation token for an identity.
func (s *TokenStore) StoreConfirmationToken(ctx context.Context, token string, identityID string, ttl time.Duration) error {
	return s.cache.Set(ctx, confirmationTokenKeyPrefix+token, []byte(identityID), ttl)
}

// ConsumeConfirmationToken returns the identity for a confirmation token and invalidates it.
func (s *TokenStore) ConsumeConfirmationToken(ctx context.Context, token string) (string, error) {
	data, err := s.cache.Take(ctx, confirmationTokenKeyPrefix+token)
	if err != nil || len(data) == 0 {
		return "", ErrTokenNotFound
	}
	return string(data), nil
}
