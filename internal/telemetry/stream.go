// Package telemetry streams fire-and-forget session events to the backend
// over a WebSocket. Events are buffered in memory and sent by a single
// goroutine; every failure is non-fatal (the event is dropped and logged),
// since telemetry is a best-effort concern. Flush blocks until the buffer is
// drained, which the submission flow requires before finalizing a session.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeTimeout = 10 * time.Second

// Stream is a buffered telemetry sender. Safe for concurrent use.
type Stream struct {
	url string
	max int
	log zerolog.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	inFlight bool
	closed   bool

	// conn is owned by the sender goroutine.
	conn *websocket.Conn
}

// NewStream creates a Stream targeting the given WebSocket URL. The
// connection is dialed lazily on the first send.
func NewStream(wsURL string, queueSize int, log zerolog.Logger) *Stream {
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &Stream{
		url: wsURL,
		max: queueSize,
		log: log.With().Str("component", "telemetry").Logger(),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Record enqueues an event. Never blocks; the oldest event is dropped when
// the buffer is full.
func (s *Stream) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.max {
		s.queue = s.queue[1:]
		s.log.Debug().Msg("Queue full, dropping oldest event")
	}
	s.queue = append(s.queue, ev)
	s.cond.Broadcast()
}

// Start begins the sender loop. Call in a goroutine; returns once the stream
// is closed (or ctx ends) and the remaining buffer has been drained.
func (s *Stream) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		ev, ok := s.next()
		if !ok {
			break
		}
		s.send(ctx, ev)
		s.mu.Lock()
		s.inFlight = false
		s.cond.Broadcast()
		s.mu.Unlock()
	}

	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.log.Debug().Msg("Sender stopped")
}

// next blocks until an event is available. Returns false once the stream is
// closed and the buffer fully drained.
func (s *Stream) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) == 0 {
		if s.closed {
			return Event{}, false
		}
		s.cond.Wait()
	}
	ev := s.queue[0]
	s.queue = s.queue[1:]
	s.inFlight = true
	return ev, true
}

// send delivers one event, dialing if needed. Failures drop the event.
func (s *Stream) send(ctx context.Context, ev Event) {
	if s.conn == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			s.log.Debug().Err(err).Msg("Dial failed, dropping event")
			return
		}
		s.conn = conn
	}

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteJSON(ev); err != nil {
		s.log.Debug().Err(err).Str("type", string(ev.Type)).Msg("Send failed, dropping event")
		_ = s.conn.Close()
		s.conn = nil
	}
}

// Flush blocks until every buffered event has been sent or dropped, or until
// ctx ends. The submission flow calls this before finalizing a session so no
// recorded event is silently lost.
func (s *Stream) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for (len(s.queue) > 0 || s.inFlight) && !s.closed {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the stream. The sender drains buffered events before exiting.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
	return nil
}
