package bridge

import (
	"context"
	"sync"

	"github.com/starford/dddot/internal/apperr"
)

// Transport moves encoded envelopes between the two contexts.
// Recv blocks until data arrives, the context ends or the transport closes,
// in which case it returns apperr.ErrClosed.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

type pipeEnd struct {
	in   chan []byte
	peer *pipeEnd

	done chan struct{}
	once sync.Once
}

// Pipe returns two connected in-memory transports. Data sent on one end is
// received on the other in order. buffer is the per-direction queue size.
func Pipe(buffer int) (Transport, Transport) {
	a := &pipeEnd{in: make(chan []byte, buffer), done: make(chan struct{})}
	b := &pipeEnd{in: make(chan []byte, buffer), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeEnd) Send(ctx context.Context, data []byte) error {
	select {
	case <-p.done:
		return apperr.ErrClosed
	case <-p.peer.done:
		return apperr.ErrClosed
	default:
	}
	select {
	case p.peer.in <- data:
		return nil
	case <-p.done:
		return apperr.ErrClosed
	case <-p.peer.done:
		return apperr.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		return nil, apperr.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
