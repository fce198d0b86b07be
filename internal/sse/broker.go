// Package sse streams memo changes to browsers as Server-Sent Events.
//
// Every change becomes a memo.<kind> event carrying the memo id and its new
// checksum, followed at most once per throttle window by links.updated so
// that open link panels refetch without being flooded during bulk edits.
package sse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Memo change kinds accepted by PublishMemo.
var memoKinds = map[string]bool{
	"created":  true,
	"updated":  true,
	"archived": true,
	"restored": true,
	"deleted":  true,
}

// MemoChange is the data of a memo.* event.
type MemoChange struct {
	ID       int64  `json:"id"`
	Checksum string `json:"checksum,omitempty"`
}

type client struct {
	frames chan []byte
}

// hub is the state owned by the broker loop.
type hub struct {
	clients   map[*client]struct{}
	seq       uint64
	lastLinks time.Time
}

// Broker fans events out to connected clients. All client bookkeeping runs
// on one goroutine; callers hand it closures over cmds.
type Broker struct {
	linksEvery time.Duration
	heartbeat  time.Duration
	buffer     int

	cmds     chan func(*hub)
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

// Option configures a Broker.
type Option func(*Broker)

// WithLinksThrottle sets the minimum gap between links.updated events.
func WithLinksThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.linksEvery = d
		}
	}
}

// WithHeartbeat sends a ": ping" comment every d on idle streams.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		b.heartbeat = d
	}
}

// WithClientBuffer sets how many frames a slow client may fall behind
// before new frames are dropped for it.
func WithClientBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// New starts a broker. Close stops it.
func New(opts ...Option) *Broker {
	b := &Broker{
		linksEvery: 2 * time.Second,
		buffer:     64,
		cmds:       make(chan func(*hub)),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	h := &hub{clients: make(map[*client]struct{})}
	defer close(b.done)
	for {
		select {
		case <-b.quit:
			for c := range h.clients {
				close(c.frames)
			}
			return
		case fn := <-b.cmds:
			fn(h)
		}
	}
}

// exec runs fn on the broker loop. It reports false once the broker is closed.
func (b *Broker) exec(fn func(*hub)) bool {
	select {
	case <-b.quit:
		return false
	default:
	}
	select {
	case b.cmds <- fn:
		return true
	case <-b.done:
		return false
	}
}

// Close ends every stream and stops the loop. It is safe to call twice.
func (b *Broker) Close() {
	b.quitOnce.Do(func() { close(b.quit) })
	<-b.done
}

func (b *Broker) subscribe() *client {
	c := &client{frames: make(chan []byte, b.buffer)}
	if !b.exec(func(h *hub) { h.clients[c] = struct{}{} }) {
		close(c.frames)
	}
	return c
}

func (b *Broker) unsubscribe(c *client) {
	b.exec(func(h *hub) {
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.frames)
		}
	})
}

// ClientCount returns the number of open streams.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.exec(func(h *hub) { n <- len(h.clients) }) {
		return 0
	}
	select {
	case v := <-n:
		return v
	case <-b.done:
		return 0
	}
}

// Publish sends an event of type typ with data encoded as JSON.
func (b *Broker) Publish(typ string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	b.exec(func(h *hub) { h.send(typ, payload) })
}

// PublishMemo announces a memo change followed by a throttled
// links.updated. Unknown kinds are ignored.
func (b *Broker) PublishMemo(kind string, change MemoChange) {
	if !memoKinds[kind] {
		return
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return
	}
	b.exec(func(h *hub) {
		h.send("memo."+kind, payload)
		if now := time.Now(); now.Sub(h.lastLinks) >= b.linksEvery {
			h.lastLinks = now
			h.send("links.updated", []byte("{}"))
		}
	})
}

// send frames one event and offers it to every client. Clients whose
// buffer is full miss it.
func (h *hub) send(typ string, payload []byte) {
	h.seq++
	var buf bytes.Buffer
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatUint(h.seq, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(typ)
	buf.WriteString("\ndata: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	frame := buf.Bytes()

	for c := range h.clients {
		select {
		case c.frames <- frame:
		default:
		}
	}
}

// ServeHTTP streams events until the client goes away or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := b.subscribe()
	defer b.unsubscribe(c)

	var ping <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		ping = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
		case frame, ok := <-c.frames:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
		}
		flusher.Flush()
	}
}
