package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wsSink is a WebSocket endpoint that records every event it receives.
type wsSink struct {
	mu       sync.Mutex
	received []Event
	upgrader websocket.Upgrader
}

func (s *wsSink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, ev)
		s.mu.Unlock()
	}
}

func (s *wsSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.received...)
}

func newSink(t *testing.T) (*wsSink, string) {
	t.Helper()
	sink := &wsSink{upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}}
	ts := httptest.NewServer(sink)
	t.Cleanup(ts.Close)
	return sink, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestFlushDrainsQueue(t *testing.T) {
	sink, url := newSink(t)
	s := NewStream(url, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Record(Event{Type: EventNavigated, SessionID: "sess-1", Index: 2})
	s.Record(Event{Type: EventAnswerSaved, SessionID: "sess-1", Index: 2, ClientEventID: "ev-1"})
	s.Record(Event{Type: EventMarkToggled, SessionID: "sess-1", Index: 3})

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer flushCancel()
	if err := s.Flush(flushCtx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := sink.events()
	if len(got) != 3 {
		t.Fatalf("received %d events, want 3", len(got))
	}
	if got[0].Type != EventNavigated || got[1].Type != EventAnswerSaved || got[2].Type != EventMarkToggled {
		t.Errorf("events arrived out of order: %+v", got)
	}
	if got[0].At.IsZero() {
		t.Error("Record must stamp a send time")
	}
}

func TestFullQueueDropsOldest(t *testing.T) {
	sink, url := newSink(t)
	s := NewStream(url, 2, zerolog.Nop())

	// Enqueue before the sender starts so the overflow is deterministic.
	s.Record(Event{Type: EventNavigated, Index: 1})
	s.Record(Event{Type: EventNavigated, Index: 2})
	s.Record(Event{Type: EventNavigated, Index: 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer flushCancel()
	if err := s.Flush(flushCtx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := sink.events()
	if len(got) != 2 {
		t.Fatalf("received %d events, want 2", len(got))
	}
	if got[0].Index != 2 || got[1].Index != 3 {
		t.Errorf("events = %+v, want oldest (index 1) dropped", got)
	}
}

func TestUnreachableEndpointNeverBlocks(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1/telemetry", 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Record(Event{Type: EventNavigated, Index: 1})
	s.Record(Event{Type: EventExpired, Index: 1})

	// Events are dropped on dial failure; Flush must still return.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer flushCancel()
	if err := s.Flush(flushCtx); err != nil {
		t.Fatalf("Flush against unreachable endpoint: %v", err)
	}
}

func TestFlushHonorsContext(t *testing.T) {
	// No sender running: the queue never drains.
	s := NewStream("ws://127.0.0.1:1/telemetry", 16, zerolog.Nop())
	s.Record(Event{Type: EventNavigated, Index: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Flush(ctx); err == nil {
		t.Fatal("Flush without a sender should fail on context deadline")
	}
}

func TestRecordAfterCloseIsNoop(t *testing.T) {
	sink, url := newSink(t)
	s := NewStream(url, 16, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	s.Record(Event{Type: EventNavigated, Index: 1})
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer flushCancel()
	if err := s.Flush(flushCtx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	s.Close()
	s.Record(Event{Type: EventNavigated, Index: 2})
	time.Sleep(30 * time.Millisecond)

	if got := sink.events(); len(got) != 1 {
		t.Errorf("received %d events, want 1 (post-close records dropped)", len(got))
	}
}
