package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// DialFunc opens a new grid client connection.
type DialFunc func(ctx context.Context) (Client, error)

// Pool hands out a fixed number of grid clients to workers. The pool size
// bounds concurrent connections to the store independently of how many
// workers contend for them; Acquire blocks until a slot is free. The idle
// list is a stack, so the most recently released connection is reused before
// anything is redialed. A client returned with a connection error is closed
// and replaced on the next Acquire, so one bad connection never poisons the
// pool.
type Pool struct {
	dial   DialFunc
	tokens chan struct{} // one token per slot
	logger zerolog.Logger

	mu     sync.Mutex
	idle   []Client // live connections ready for reuse, newest last
	closed bool
}

// NewPool creates a pool of size clients. Connections are dialed lazily, on
// first acquisition of each slot.
func NewPool(size int, dial DialFunc, logger zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		dial:   dial,
		tokens: make(chan struct{}, size),
		logger: logger.With().Str("component", "pool").Logger(),
	}
	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}
	return p
}

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("client pool closed")

// Acquire checks a client out of the pool, blocking until a slot is free or
// ctx is done. The caller must balance every successful Acquire with Release.
func (p *Pool) Acquire(ctx context.Context) (Client, error) {
	select {
	case <-p.tokens:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	var c Client
	if n := len(p.idle); n > 0 {
		c = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	if c != nil {
		return c, nil
	}
	c, err := p.dial(ctx)
	if err != nil {
		// Slot stays free for the next caller.
		p.tokens <- struct{}{}
		return nil, fmt.Errorf("dial grid client: %w", err)
	}
	return c, nil
}

// Release returns a client to the pool. workErr is the error, if any, from
// the work done with the client: when it indicates a broken connection the
// client is discarded and the slot redialed on next use.
func (p *Pool) Release(c Client, workErr error) {
	if c != nil && errors.Is(workErr, ErrConnection) {
		p.logger.Debug().Err(workErr).Msg("Discarding broken grid client")
		_ = c.Close()
		c = nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if c != nil {
			_ = c.Close()
		}
		return
	}
	if c != nil {
		p.idle = append(p.idle, c)
	}
	p.mu.Unlock()
	p.tokens <- struct{}{}
}

// Close closes all idle clients. Acquire fails afterwards; clients still
// checked out are closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, c := range p.idle {
		_ = c.Close()
	}
	p.idle = nil
}
