package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

type recordingHandler struct {
	accepts map[string]bool
	seen    []events.DomainEvent
	err     error
	panics  bool
}

func (h *recordingHandler) Handle(_ context.Context, event events.DomainEvent) error {
	if h.panics {
		panic("handler exploded")
	}
	h.seen = append(h.seen, event)
	return h.err
}

func (h *recordingHandler) CanHandle(eventType string) bool {
	if h.accepts == nil {
		return true
	}
	return h.accepts[eventType]
}

func typingEvent() events.DomainEvent {
	return events.NewTypingStartedEvent("vault-1", "user-1", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
}

func TestPublish_DeliversToSubscribers(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	first := &recordingHandler{}
	second := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, first))
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, second))

	require.NoError(t, bus.Publish(context.Background(), typingEvent()))

	assert.Len(t, first.seen, 1)
	assert.Len(t, second.seen, 1)
}

func TestPublish_SkipsOtherEventTypes(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	handler := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypePresenceChanged, handler))

	require.NoError(t, bus.Publish(context.Background(), typingEvent()))

	assert.Empty(t, handler.seen)
}

func TestPublish_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	failing := &recordingHandler{err: pkgerrors.NewInternal("boom", nil)}
	healthy := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, failing))
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, healthy))

	require.NoError(t, bus.Publish(context.Background(), typingEvent()))

	assert.Len(t, healthy.seen, 1)
}

func TestPublish_RecoversPanickingHandler(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	panicking := &recordingHandler{panics: true}
	healthy := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, panicking))
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, healthy))

	require.NoError(t, bus.Publish(context.Background(), typingEvent()))

	assert.Len(t, healthy.seen, 1)
}

func TestSubscribe_RejectsDuplicate(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	handler := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, handler))

	err := bus.Subscribe(events.TypeTypingStarted, handler)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	handler := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, handler))
	require.NoError(t, bus.Unsubscribe(events.TypeTypingStarted, handler))

	require.NoError(t, bus.Publish(context.Background(), typingEvent()))
	assert.Empty(t, handler.seen)

	err := bus.Unsubscribe(events.TypeTypingStarted, handler)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestPublishBatch_PreservesOrder(t *testing.T) {
	bus := NewInProcessBus(zap.NewNop())
	handler := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.TypeTypingStarted, handler))
	require.NoError(t, bus.Subscribe(events.TypeTypingStopped, handler))

	batch := []events.DomainEvent{
		events.NewTypingStartedEvent("vault-1", "user-1", time.Now()),
		events.NewTypingStoppedEvent("vault-1", "user-1", false, time.Now()),
	}
	require.NoError(t, bus.PublishBatch(context.Background(), batch))

	require.Len(t, handler.seen, 2)
	assert.Equal(t, events.TypeTypingStarted, handler.seen[0].GetEventType())
	assert.Equal(t, events.TypeTypingStopped, handler.seen[1].GetEventType())
}
