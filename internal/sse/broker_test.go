package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// drain collects the event lines of every frame already buffered for c.
func drain(c *client) []string {
	var events []string
	for {
		select {
		case frame := <-c.frames:
			for _, line := range strings.Split(string(frame), "\n") {
				if typ, ok := strings.CutPrefix(line, "event: "); ok {
					events = append(events, typ)
				}
			}
		default:
			return events
		}
	}
}

func TestClientCount(t *testing.T) {
	b := New()
	defer b.Close()

	a, c := b.subscribe(), b.subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("ClientCount = %d, want 2", n)
	}
	b.unsubscribe(a)
	b.unsubscribe(a)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("ClientCount after unsubscribe = %d, want 1", n)
	}
	b.unsubscribe(c)
}

func TestPublish_FramesCarrySequenceIDs(t *testing.T) {
	b := New()
	defer b.Close()
	c := b.subscribe()
	defer b.unsubscribe(c)

	b.Publish("memo.created", MemoChange{ID: 7, Checksum: "abc"})
	b.Publish("memo.deleted", MemoChange{ID: 7})
	b.ClientCount() // both publishes have run once this returns

	first, second := <-c.frames, <-c.frames
	if want := "id: 1\nevent: memo.created\ndata: {\"id\":7,\"checksum\":\"abc\"}\n\n"; string(first) != want {
		t.Errorf("first frame = %q, want %q", first, want)
	}
	if want := "id: 2\nevent: memo.deleted\ndata: {\"id\":7}\n\n"; string(second) != want {
		t.Errorf("second frame = %q, want %q", second, want)
	}
}

func TestPublishMemo_ThrottlesLinksUpdated(t *testing.T) {
	b := New(WithLinksThrottle(time.Hour))
	defer b.Close()
	c := b.subscribe()
	defer b.unsubscribe(c)

	b.PublishMemo("created", MemoChange{ID: 1})
	b.PublishMemo("archived", MemoChange{ID: 2})
	b.PublishMemo("renamed", MemoChange{ID: 3})
	b.ClientCount()

	got := strings.Join(drain(c), ",")
	if want := "memo.created,links.updated,memo.archived"; got != want {
		t.Errorf("events = %s, want %s", got, want)
	}
}

func TestSlowClientMissesFrames(t *testing.T) {
	b := New(WithClientBuffer(2))
	defer b.Close()
	slow := b.subscribe()
	defer b.unsubscribe(slow)

	for range 5 {
		b.Publish("memo.updated", MemoChange{ID: 1})
	}
	if n := len(drain(slow)); n != 2 {
		t.Errorf("slow client got %d frames, want 2", n)
	}
}

// lockedRecorder guards the body that ServeHTTP writes from its own goroutine.
type lockedRecorder struct {
	mu sync.Mutex
	*httptest.ResponseRecorder
}

func (r *lockedRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *lockedRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeHTTP(t *testing.T) {
	b := New(WithHeartbeat(10 * time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	waitFor(t, "subscription", func() bool { return b.ClientCount() == 1 })

	b.PublishMemo("updated", MemoChange{ID: 12, Checksum: "c1"})
	waitFor(t, "event and heartbeat", func() bool {
		body := w.body()
		return strings.Contains(body, `data: {"id":12,"checksum":"c1"}`) && strings.Contains(body, ": ping")
	})

	cancel()
	<-done
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	waitFor(t, "unsubscribe", func() bool { return b.ClientCount() == 0 })
}

func TestClose_EndsStreams(t *testing.T) {
	b := New()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	waitFor(t, "subscription", func() bool { return b.ClientCount() == 1 })

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after Close")
	}

	// Everything is a no-op afterwards.
	b.Publish("memo.updated", MemoChange{ID: 1})
	b.PublishMemo("updated", MemoChange{ID: 1})
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount after Close = %d", n)
	}
	c := b.subscribe()
	if _, ok := <-c.frames; ok {
		t.Error("subscribe after Close returned an open channel")
	}
	b.Close()
}
