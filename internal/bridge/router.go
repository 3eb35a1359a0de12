package bridge

import (
	"context"
	"log/slog"
	"sync"
)

// Router is a Responder that dispatches requests by namespace, the part of
// the message type before the first dot. Requests for unknown namespaces are
// answered with null.
type Router struct {
	logger *slog.Logger

	mu     sync.RWMutex
	routes map[string]Responder
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{logger: logger, routes: make(map[string]Responder)}
}

// Handle routes requests in namespace to h, replacing any previous route.
func (r *Router) Handle(namespace string, h Responder) {
	r.mu.Lock()
	r.routes[namespace] = h
	r.mu.Unlock()
}

// HandleFunc routes requests in namespace to f.
func (r *Router) HandleFunc(namespace string, f func(ctx context.Context, msg Message) (any, error)) {
	r.Handle(namespace, ResponderFunc(f))
}

// Respond implements Responder.
func (r *Router) Respond(ctx context.Context, msg Message) (any, error) {
	r.mu.RLock()
	h, ok := r.routes[msg.Namespace()]
	r.mu.RUnlock()
	if !ok {
		r.logger.Debug("bridge: unrouted request", slog.String("type", msg.Type))
		return nil, nil
	}
	return h.Respond(ctx, msg)
}
