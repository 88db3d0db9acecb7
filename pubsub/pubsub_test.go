package pubsub

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testPayload struct {
	kind string
	n    int
}

func (p *testPayload) Type() string { return p.kind }

func TestPubSubDeliversInOrder(t *testing.T) {
	ps := NewPubSub(10)
	got := make(chan int, 10)
	go ps.Listen("ch", func(p Payload) {
		got <- p.(*testPayload).n
	})
	for i := 0; i < 5; i++ {
		if err := ps.Notify("ch", &testPayload{"a", i}); err != nil {
			t.Fatalf("Notify: %s", err)
		}
	}
	for i := 0; i < 5; i++ {
		select {
		case n := <-got:
			if n != i {
				t.Fatalf("got payload %d want %d", n, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for payload %d", i)
		}
	}
	ps.Close()
}

func TestPubSubNotifyTimesOut(t *testing.T) {
	ps := NewPubSub(1)
	ps.sendTimeout = 10 * time.Millisecond
	defer ps.Close()
	if err := ps.Notify("ch", &testPayload{"a", 1}); err != nil {
		t.Fatalf("first Notify should fit in the buffer: %s", err)
	}
	if err := ps.Notify("ch", &testPayload{"a", 2}); err == nil {
		t.Fatalf("Notify on a full channel with no listener did not time out")
	}
}

func TestPubSubClose(t *testing.T) {
	ps := NewPubSub(1)
	returned := make(chan struct{})
	go func() {
		ps.Listen("ch", func(p Payload) {})
		close(returned)
	}()
	if err := ps.Close(); err != nil {
		t.Fatalf("Close: %s", err)
	}
	if err := ps.Close(); err != nil {
		t.Fatalf("second Close: %s", err)
	}
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatalf("Listen did not return after Close")
	}
	if err := ps.Notify("ch", &testPayload{"a", 1}); err == nil {
		t.Fatalf("Notify after Close succeeded")
	}
}

func TestPromNotifierCountsPayloads(t *testing.T) {
	ps := NewPubSub(10)
	n := NewPromNotifier(ps, "pubsub_test")
	defer n.Close()
	n.Notify("ch", &testPayload{"campaign_update", 1})
	n.Notify("ch", &testPayload{"campaign_update", 2})
	n.Notify("ch", &testPayload{"content_generated", 3})
	counter := n.(*PromNotifier).msgCounter
	if got := testutil.ToFloat64(counter.WithLabelValues("campaign_update")); got != 2 {
		t.Errorf("campaign_update count got %v want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("content_generated")); got != 1 {
		t.Errorf("content_generated count got %v want 1", got)
	}
}
