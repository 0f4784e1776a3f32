package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub"
)

func TestPublisher_PublishToMemTopic(t *testing.T) {
	ctx := context.Background()

	p := NewPublisher()
	// mem:// subscriptions attach to a topic that is already open in the process.
	topic, err := p.topic(ctx, "mem://order-events")
	require.NoError(t, err)
	require.NotNil(t, topic)

	sub, err := pubsub.OpenSubscription(ctx, "mem://order-events")
	require.NoError(t, err)
	defer sub.Shutdown(ctx)

	require.NoError(t, p.Publish(ctx, "mem://order-events", []byte("42"), []byte(`{"eventType":"ORDER_EVENT"}`)))

	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	msg.Ack()
	require.Equal(t, `{"eventType":"ORDER_EVENT"}`, string(msg.Body))
	require.Equal(t, "42", msg.Metadata["key"])

	require.NoError(t, p.Close(ctx))
	require.Empty(t, p.topics)
}

func TestPublisher_ReusesTopics(t *testing.T) {
	ctx := context.Background()
	p := NewPublisher()
	defer p.Close(ctx)

	a, err := p.topic(ctx, "mem://reuse")
	require.NoError(t, err)
	b, err := p.topic(ctx, "mem://reuse")
	require.NoError(t, err)
	require.Same(t, a, b)
}

func TestPublisher_InvalidURL(t *testing.T) {
	p := NewPublisher()
	err := p.Publish(context.Background(), "nosuchscheme://x", nil, []byte("v"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "open topic")
}
