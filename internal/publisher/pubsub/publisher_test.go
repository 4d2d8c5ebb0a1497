package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "hansard-jobs")
	require.NoError(t, err)
	return topic, srv
}

func TestPublishSendsJSONWithEventType(t *testing.T) {
	t.Parallel()

	topic, srv := newTestTopic(t)
	pub := New(topic)
	defer pub.Stop()

	id, err := pub.Publish(context.Background(), "job.completed", map[string]any{"job_id": "job-1", "entries": 7})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "job.completed", msgs[0].Attributes[EventTypeAttribute])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "job-1", got["job_id"])
	require.EqualValues(t, 7, got["entries"])
}

func TestPublishRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "job.completed", "payload")
	require.Error(t, err)
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	topic, _ := newTestTopic(t)
	pub := New(topic)
	defer pub.Stop()

	_, err := pub.Publish(context.Background(), "job.completed", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}

func TestCarrierKeys(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	require.Equal(t, "00-abc", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent"}, c.Keys())
}
