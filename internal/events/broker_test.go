package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom/internal/cache"
	"showroom/internal/logger"
	"showroom/internal/session"
)

func TestBrokerWithoutRedis(t *testing.T) {
	b := NewBroker((*cache.Client)(nil), logger.Discard())

	err := b.Publish(context.Background(), Notification{Kind: session.ChangeSignedOut, IdentityID: "u1"})
	assert.NoError(t, err)

	_, _, err = b.Subscribe(context.Background(), "u1")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	n, err := Decode([]byte(`{"kind":"USER_UPDATED","identity_id":"u1","occurred_at":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.Equal(t, session.ChangeUserUpdated, n.Kind)
	assert.Equal(t, "u1", n.IdentityID)

	_, err = Decode([]byte(`{"identity_id":"u1"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "session:events:u1", Channel("u1"))
}
