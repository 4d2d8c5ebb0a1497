package memory

import (
	"context"
	"testing"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "job.completed", map[string]string{"job_id": "a"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "job.failed", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "job.completed" || msgs[1].Topic != "job.failed" {
		t.Fatalf("topics not recorded correctly: %+v", msgs)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherByTopic(t *testing.T) {
	t.Parallel()

	pub := New()
	_, _ = pub.Publish(context.Background(), "job.completed", "a")
	_, _ = pub.Publish(context.Background(), "job.failed", "b")
	_, _ = pub.Publish(context.Background(), "job.completed", "c")

	got := pub.ByTopic("job.completed")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected payloads %v", got)
	}
	if len(pub.ByTopic("other")) != 0 {
		t.Fatal("expected no payloads for unknown topic")
	}
}
