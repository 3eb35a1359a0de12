package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/starford/dddot/internal/apperr"
	"github.com/starford/dddot/internal/metrics"
)

// Handler receives fire-and-forget messages subscribed with OnMessage.
type Handler func(ctx context.Context, msg Message)

// Responder answers requests sent with PostMessage from the other side.
// A nil result is sent back as JSON null.
type Responder interface {
	Respond(ctx context.Context, msg Message) (any, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, msg Message) (any, error)

// Respond calls f.
func (f ResponderFunc) Respond(ctx context.Context, msg Message) (any, error) {
	return f(ctx, msg)
}

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the endpoint logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Endpoint) { e.logger = l }
}

// WithResponder sets the handler for inbound requests.
func WithResponder(r Responder) Option {
	return func(e *Endpoint) { e.responder = r }
}

// WithMetrics records traffic on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Endpoint) { e.metrics = c }
}

// Endpoint is one side of the bridge.
//
// A single receive loop owns the transport's inbound side. Responses are
// matched to pending PostMessage calls by envelope id; requests are answered
// by the Responder, each in its own goroutine; events are queued per message
// type so deliveries of one type run in arrival order while different types
// never wait on each other.
type Endpoint struct {
	name      string
	transport Transport
	logger    *slog.Logger
	responder Responder
	metrics   *metrics.Collector

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[string]chan json.RawMessage
	subs    map[string][]*Subscription
	queues  map[string]*queue
}

type delivery struct {
	msg      Message
	handlers []*Subscription
}

type queue struct {
	items []delivery
}

// NewEndpoint starts an endpoint reading from t. The endpoint owns t and
// closes it on Close.
func NewEndpoint(name string, t Transport, opts ...Option) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Endpoint{
		name:      name,
		transport: t,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		stopped:   make(chan struct{}),
		pending:   make(map[string]chan json.RawMessage),
		subs:      make(map[string][]*Subscription),
		queues:    make(map[string]*queue),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

// Name returns the endpoint name used in logs and metrics.
func (e *Endpoint) Name() string {
	return e.name
}

// Done is closed once the receive loop has stopped.
func (e *Endpoint) Done() <-chan struct{} {
	return e.stopped
}

// PostMessage sends msg as a request and waits for the correlated response.
//
// There is no built-in timeout: if the other side never answers, the call
// only returns when ctx ends or the endpoint stops.
func (e *Endpoint) PostMessage(ctx context.Context, msg Message) (json.RawMessage, error) {
	env := requestEnvelope(msg)
	ch := make(chan json.RawMessage, 1)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, apperr.ErrClosed
	}
	e.pending[env.ID] = ch
	e.mu.Unlock()

	e.metrics.Pending(e.name, 1)
	defer e.metrics.Pending(e.name, -1)

	if err := e.send(ctx, env); err != nil {
		e.forget(env.ID)
		return nil, err
	}

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		e.forget(env.ID)
		return nil, ctx.Err()
	case <-e.stopped:
		e.forget(env.ID)
		return nil, apperr.ErrClosed
	}
}

// Emit sends msg as a fire-and-forget event.
func (e *Endpoint) Emit(ctx context.Context, msg Message) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return apperr.ErrClosed
	}
	return e.send(ctx, eventEnvelope(msg))
}

// OnMessage subscribes h to events of eventType.
func (e *Endpoint) OnMessage(eventType string, h Handler) *Subscription {
	s := &Subscription{endpoint: e, eventType: eventType, handler: h}
	e.mu.Lock()
	e.subs[eventType] = append(e.subs[eventType], s)
	e.mu.Unlock()
	return s
}

// Close stops the receive loop, closes the transport and waits for running
// handlers. Pending PostMessage calls return apperr.ErrClosed.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.stopped
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	err := e.transport.Close()
	<-e.stopped
	e.wg.Wait()
	return err
}

func (e *Endpoint) run() {
	defer close(e.stopped)
	for {
		data, err := e.transport.Recv(e.ctx)
		if err != nil {
			if !errors.Is(err, apperr.ErrClosed) && !errors.Is(err, context.Canceled) {
				e.logger.Warn("bridge: receive failed",
					slog.String("endpoint", e.name),
					slog.String("error", err.Error()))
			}
			return
		}
		e.dispatch(data)
	}
}

func (e *Endpoint) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || !env.valid() {
		e.metrics.Dropped(e.name, "malformed")
		e.logger.Debug("bridge: dropped malformed envelope", slog.String("endpoint", e.name))
		return
	}
	e.metrics.Received(e.name, string(env.Kind))

	switch env.Kind {
	case KindResponse:
		e.resolve(env)
	case KindRequest:
		e.wg.Add(1)
		go e.serve(env)
	case KindEvent:
		e.enqueue(*env.Message)
	}
}

func (e *Endpoint) resolve(env Envelope) {
	e.mu.Lock()
	ch, ok := e.pending[env.ID]
	delete(e.pending, env.ID)
	e.mu.Unlock()
	if !ok {
		e.metrics.Dropped(e.name, "unmatched")
		return
	}
	ch <- env.Result
}

func (e *Endpoint) serve(env Envelope) {
	defer e.wg.Done()

	msg := *env.Message
	var result json.RawMessage
	if e.responder != nil {
		result = e.respond(msg)
	} else {
		e.metrics.Dropped(e.name, "no_responder")
	}

	if err := e.send(e.ctx, responseEnvelope(env.ID, result)); err != nil {
		e.logger.Debug("bridge: response not sent",
			slog.String("endpoint", e.name),
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
	}
}

func (e *Endpoint) respond(msg Message) (result json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("bridge: responder panicked",
				slog.String("endpoint", e.name),
				slog.String("type", msg.Type),
				slog.Any("panic", r))
			result = nil
		}
	}()

	v, err := e.responder.Respond(e.ctx, msg)
	if err != nil {
		e.logger.Warn("bridge: request failed",
			slog.String("endpoint", e.name),
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		return nil
	}
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		e.logger.Warn("bridge: encode result failed",
			slog.String("endpoint", e.name),
			slog.String("type", msg.Type),
			slog.String("error", err.Error()))
		return nil
	}
	return data
}

func (e *Endpoint) enqueue(msg Message) {
	e.mu.Lock()
	handlers := slices.Clone(e.subs[msg.Type])
	if len(handlers) == 0 {
		e.mu.Unlock()
		e.metrics.Dropped(e.name, "unrouted")
		return
	}
	q, running := e.queues[msg.Type]
	if !running {
		q = &queue{}
		e.queues[msg.Type] = q
	}
	q.items = append(q.items, delivery{msg: msg, handlers: handlers})
	e.mu.Unlock()

	if !running {
		e.wg.Add(1)
		go e.drain(msg.Type, q)
	}
}

// drain delivers queued messages of one type until the queue is empty.
func (e *Endpoint) drain(eventType string, q *queue) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		if len(q.items) == 0 {
			delete(e.queues, eventType)
			e.mu.Unlock()
			return
		}
		d := q.items[0]
		q.items = q.items[1:]
		e.mu.Unlock()

		for _, s := range d.handlers {
			if s.active() {
				e.deliver(s, d.msg)
			}
		}
	}
}

func (e *Endpoint) deliver(s *Subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("bridge: handler panicked",
				slog.String("endpoint", e.name),
				slog.String("type", msg.Type),
				slog.Any("panic", r))
		}
	}()
	s.handler(e.ctx, msg)
}

func (e *Endpoint) send(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("bridge: encode %s: %w", env.Kind, err)
	}
	if err := e.transport.Send(ctx, data); err != nil {
		return fmt.Errorf("bridge: send %s: %w", env.Kind, err)
	}
	e.metrics.Sent(e.name, string(env.Kind))
	return nil
}

func (e *Endpoint) forget(id string) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

func (e *Endpoint) unsubscribe(s *Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[s.eventType] = slices.DeleteFunc(e.subs[s.eventType], func(x *Subscription) bool { return x == s })
	if len(e.subs[s.eventType]) == 0 {
		delete(e.subs, s.eventType)
	}
}

// Subscription is a handler registered with OnMessage.
type Subscription struct {
	endpoint  *Endpoint
	eventType string
	handler   Handler
	cancelled atomic.Bool
}

// Unsubscribe stops further deliveries to the handler, including messages
// already queued for it.
func (s *Subscription) Unsubscribe() {
	if s.cancelled.CompareAndSwap(false, true) {
		s.endpoint.unsubscribe(s)
	}
}

func (s *Subscription) active() bool {
	return !s.cancelled.Load()
}
