package eventbus

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe("run-1")
	defer sub.Unsubscribe()

	b.Publish("run-1", "log", json.RawMessage(`{"line":"hello"}`))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "log", evt.Kind)
	assert.JSONEq(t, `{"line":"hello"}`, string(evt.Payload))
}

func TestPublishIgnoresOtherStreams(t *testing.T) {
	b := New()
	sub := b.Subscribe("run-1")
	defer sub.Unsubscribe()

	b.Publish("run-2", "log", json.RawMessage(`{}`))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSlowSubscriberDropsOldestAndMarks(t *testing.T) {
	b := New()
	sub := b.SubscribeWithBuffer("run-1", 2)
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		b.Publish("run-1", "log", json.RawMessage(`{"i":`+strconv.Itoa(i)+`}`))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, EventKindDropped, evt.Kind)
	assert.Equal(t, 3, evt.Dropped)

	// The two surviving events are the most recent ones published.
	evt, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"i":3}`, string(evt.Payload))

	evt, err = sub.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"i":4}`, string(evt.Payload))
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe("run-1")

	assert.NotPanics(t, func() {
		sub.Unsubscribe()
		sub.Unsubscribe()
	})
	assert.Equal(t, 0, b.SubscriberCount("run-1"))
}

func TestCloseClosesAllSubscriberChannels(t *testing.T) {
	b := New()
	sub := b.Subscribe("run-1")

	b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := sub.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)

	// Subscribe after close returns an already-closed subscription rather
	// than panicking or hanging.
	sub2 := b.SubscribeWithBuffer("run-2", 4)
	_, err = sub2.Next(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
