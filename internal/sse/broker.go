// Package sse carries bridge envelopes between the host and a panel over
// HTTP: the host pushes to the panel as Server-Sent Events and the panel
// posts back with plain HTTP requests.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/bridge"
)

// EventName is the SSE event type envelopes are sent as.
const EventName = "bridge"

var _ bridge.Transport = (*Broker)(nil)

// Broker is the host side of the HTTP transport. Send broadcasts to every
// connected panel stream; Recv yields the envelopes panels posted through
// Deliver.
//
// Concurrency model: a single internal event loop (goroutine) owns the
// client set. Public methods communicate with this loop through channels,
// so no mutexes are required.
type Broker struct {
	keepAlive time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan []byte
	countReqCh    chan chan int
	inbound       chan []byte

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends a keep-alive comment to idle
// streams every keepAlive.
func NewBroker(keepAlive time.Duration) *Broker {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	b := &Broker{
		keepAlive:     keepAlive,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan []byte, 256),
		countReqCh:    make(chan chan int),
		inbound:       make(chan []byte, 256),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	broadcast := func(raw []byte) {
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case raw := <-b.publishCh:
			broadcast(raw)

		case <-ticker.C:
			broadcast([]byte(": keep-alive\n\n"))

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Send broadcasts an encoded envelope to every connected stream. With no
// stream connected the envelope is dropped; the panel asks for a fresh view
// when it mounts.
func (b *Broker) Send(ctx context.Context, data []byte) error {
	if b.closed.Load() {
		return apperr.ErrClosed
	}
	raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", EventName, data))
	select {
	case b.publishCh <- raw:
		return nil
	case <-b.stopped:
		return apperr.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next envelope posted by a panel.
func (b *Broker) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-b.inbound:
		return data, nil
	case <-b.stopped:
		return nil, apperr.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver queues an envelope posted by a panel for Recv.
func (b *Broker) Deliver(ctx context.Context, data []byte) error {
	if b.closed.Load() {
		return apperr.ErrClosed
	}
	select {
	case b.inbound <- data:
		return nil
	case <-b.stopped:
		return apperr.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
	return nil
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// ServeHTTP is the SSE stream handler (GET /events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Subscribe before the headers go out: once a client sees the 200 it may
	// post a request whose response must find it subscribed.
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

// maxEnvelopeBytes caps the size of a posted envelope.
const maxEnvelopeBytes = 1 << 20

// HandlePost accepts an envelope posted by a panel (POST /bridge).
func (b *Broker) HandlePost(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err != nil {
		http.Error(w, "envelope too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !json.Valid(data) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := b.Deliver(r.Context(), data); err != nil {
		http.Error(w, "bridge closed", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
