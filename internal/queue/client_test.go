package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/models"
)

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	cfg.Path = t.TempDir()
	client := NewClient(cfg, arbor.NewLogger())
	require.NoError(t, client.Open())
	t.Cleanup(func() { client.Close() })
	return client
}

func testMessage(t *testing.T, msgType string) models.QueueMessage {
	t.Helper()
	msg, err := models.NewQueueMessage(msgType, map[string]string{"k": "v"})
	require.NoError(t, err)
	return msg
}

func TestOpenIsIdempotent(t *testing.T) {
	client := newTestClient(t, Config{})
	assert.NoError(t, client.Open())
	assert.NoError(t, client.Open())
}

func TestDeclareQueueIsIdempotent(t *testing.T) {
	client := newTestClient(t, Config{})
	require.NoError(t, client.DeclareQueue("test.queue"))
	assert.NoError(t, client.DeclareQueue("test.queue"))
}

func TestPublishRequiresDeclaredQueue(t *testing.T) {
	client := newTestClient(t, Config{})
	err := client.Publish(context.Background(), "undeclared", testMessage(t, "x"))
	assert.Error(t, err)
}

func TestPublishReceiveAck(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))

	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "scrape")))

	delivery, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)
	assert.Equal(t, "scrape", delivery.Message.Type)
	assert.Equal(t, 1, delivery.ReceiveCount)

	require.NoError(t, delivery.Ack())

	_, err = client.Receive(ctx, "test.queue")
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestReceiveEmptyQueue(t *testing.T) {
	client := newTestClient(t, Config{})
	require.NoError(t, client.DeclareQueue("test.queue"))

	_, err := client.Receive(context.Background(), "test.queue")
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestMessagesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	client := NewClient(Config{Path: dir}, arbor.NewLogger())
	require.NoError(t, client.Open())
	require.NoError(t, client.DeclareQueue("test.queue"))
	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "durable")))
	require.NoError(t, client.Close())

	reopened := NewClient(Config{Path: dir}, arbor.NewLogger())
	require.NoError(t, reopened.Open())
	defer reopened.Close()
	require.NoError(t, reopened.DeclareQueue("test.queue"))

	delivery, err := reopened.Receive(ctx, "test.queue")
	require.NoError(t, err)
	assert.Equal(t, "durable", delivery.Message.Type)
}

func TestNackRequeueMakesMessageVisible(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))
	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "retry")))

	first, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)
	require.NoError(t, first.Nack(true))

	second, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReceiveCount)
}

func TestNackWithoutRequeueDropsMessage(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))
	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "poison")))

	delivery, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)
	require.NoError(t, delivery.Nack(false))

	_, err = client.Receive(ctx, "test.queue")
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestDoubleSettleFails(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))
	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "once")))

	delivery, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)

	require.NoError(t, delivery.Ack())
	assert.ErrorIs(t, delivery.Ack(), errSettled)
	assert.ErrorIs(t, delivery.Nack(false), errSettled)
}

func TestVisibilityTimeoutRedelivers(t *testing.T) {
	client := newTestClient(t, Config{VisibilityTimeout: 50 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))
	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "lost")))

	first, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)

	// Claimed message is invisible until the timeout lapses
	_, err = client.Receive(ctx, "test.queue")
	assert.ErrorIs(t, err, ErrNoMessage)

	time.Sleep(80 * time.Millisecond)

	second, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReceiveCount)
}

func TestMaxReceiveDropsPoisonMessage(t *testing.T) {
	client := newTestClient(t, Config{MaxReceive: 2})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))
	require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "poison")))

	for i := 0; i < 2; i++ {
		delivery, err := client.Receive(ctx, "test.queue")
		require.NoError(t, err)
		require.NoError(t, delivery.Nack(true))
	}

	// Third receive sees the exhausted message and drops it
	_, err := client.Receive(ctx, "test.queue")
	assert.ErrorIs(t, err, ErrNoMessage)
}

func TestFIFOWithinQueue(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))

	for _, name := range []string{"a", "b", "c"} {
		msg, err := models.NewQueueMessage(name, nil)
		require.NoError(t, err)
		require.NoError(t, client.Publish(ctx, "test.queue", msg))
		time.Sleep(2 * time.Millisecond) // distinct visibility timestamps
	}

	var got []string
	for i := 0; i < 3; i++ {
		delivery, err := client.Receive(ctx, "test.queue")
		require.NoError(t, err)
		got = append(got, delivery.Message.Type)
		require.NoError(t, delivery.Ack())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestDepthCountsVisibleMessages(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))

	for i := 0; i < 3; i++ {
		require.NoError(t, client.Publish(ctx, "test.queue", testMessage(t, "d")))
	}

	depth, err := client.Depth(ctx, "test.queue")
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	// Claiming one hides it from the depth count
	_, err = client.Receive(ctx, "test.queue")
	require.NoError(t, err)

	depth, err = client.Depth(ctx, "test.queue")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestPayloadRoundTrip(t *testing.T) {
	client := newTestClient(t, Config{})
	ctx := context.Background()
	require.NoError(t, client.DeclareQueue("test.queue"))

	mission := models.ScrapeMission{
		CampaignID:     "campaign_1",
		OwnerID:        "owner_1",
		TargetRole:     "Backend Engineer",
		TargetLocation: "Remote",
		ResumeID:       "resume_1",
	}
	msg, err := models.NewQueueMessage("scrape", mission)
	require.NoError(t, err)
	require.NoError(t, client.Publish(ctx, "test.queue", msg))

	delivery, err := client.Receive(ctx, "test.queue")
	require.NoError(t, err)

	var got models.ScrapeMission
	require.NoError(t, json.Unmarshal(delivery.Message.Payload, &got))
	assert.Equal(t, mission, got)
}
