package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "crawl-events", map[string]string{"job_id": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "audit", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "crawl-events", msgs[0].Topic)
	require.Equal(t, "audit", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "crawl-events", pub.Messages()[0].Topic)
}

func TestPublisherMessagesFor(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "crawl-events", "one")
	require.NoError(t, err)
	_, err = pub.Publish(context.Background(), "audit", "two")
	require.NoError(t, err)
	_, err = pub.Publish(context.Background(), "crawl-events", "three")
	require.NoError(t, err)

	events := pub.MessagesFor("crawl-events")
	require.Len(t, events, 2)
	require.Equal(t, "one", events[0].Payload)
	require.Equal(t, "three", events[1].Payload)
	require.Empty(t, pub.MessagesFor("missing"))
}
