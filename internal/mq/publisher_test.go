package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"showroom/internal/activity"
	"showroom/internal/logger"
)

// MockChannel is a mock implementation of Channel.
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_Record(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, "showroom.activity", "activity.sign_in", false, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
		var e activity.Event
		require.NoError(t, json.Unmarshal(msg.Body, &e))
		return msg.ContentType == "application/json" && e.ActorID == "u1"
	})).Return(nil).Once()

	p := NewPublisherWithChannel(ch, "showroom.activity", logger.Discard())
	p.Record(context.Background(), activity.Event{Type: activity.TypeSignIn, ActorID: "u1"})

	ch.AssertExpectations(t)
}

func TestPublisher_RecordSwallowsErrors(t *testing.T) {
	ch := new(MockChannel)
	ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).
		Return(errors.New("channel closed"))

	p := NewPublisherWithChannel(ch, "x", logger.Discard())
	assert.NotPanics(t, func() {
		p.Record(context.Background(), activity.Event{Type: activity.TypeSignOut})
	})
}

func TestPublisher_Close(t *testing.T) {
	ch := new(MockChannel)
	ch.On("Close").Return(nil).Once()

	p := NewPublisherWithChannel(ch, "x", logger.Discard())
	assert.NoError(t, p.Close())
	ch.AssertExpectations(t)
}
