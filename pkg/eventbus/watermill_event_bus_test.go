package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehq/forge/pkg/channels/gochannel"
	"github.com/forgehq/forge/pkg/eventbus"
	"github.com/forgehq/forge/pkg/events"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	return eventbus.NewWatermillEventBus(pub, sub)
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.RunQueued, 1)

	bus.Handle(events.RunQueuedEvent, func(_ context.Context, event any) error {
		queued, ok := event.(*events.RunQueued)
		require.True(t, ok)
		received <- queued

		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.RunQueued{
		BaseEvent:   events.NewBaseEvent(events.RunQueuedEvent, "run-1", "flow-1", "org-1"),
		TriggerType: "manual",
	}
	require.NoError(t, bus.Publish(ctx, "flow-1", event))

	select {
	case queued := <-received:
		assert.Equal(t, "run-1", queued.RunID)
		assert.Equal(t, "flow-1", queued.FlowID)
		assert.Equal(t, "manual", queued.TriggerType)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run queued event")
	}
}

func TestWatermillEventBus_UnhandledTypeIsDropped(t *testing.T) {
	bus := newTestBus(t)

	finished := make(chan *events.RunFinished, 1)

	bus.Handle(events.RunFinishedEvent, func(_ context.Context, event any) error {
		done, ok := event.(*events.RunFinished)
		require.True(t, ok)
		finished <- done

		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler for queued events; the subscriber must ack and move on.
	require.NoError(t, bus.Publish(ctx, "flow-1", events.RunQueued{
		BaseEvent: events.NewBaseEvent(events.RunQueuedEvent, "run-1", "flow-1", "org-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "flow-1", events.RunFinished{
		BaseEvent: events.NewBaseEvent(events.RunFinishedEvent, "run-1", "flow-1", "org-1"),
		TotalCost: 7,
	}))

	select {
	case done := <-finished:
		assert.Equal(t, 7, done.TotalCost)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run finished event")
	}
}
