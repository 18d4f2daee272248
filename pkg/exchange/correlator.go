// Package exchange correlates requests with responses on a connection that
// allows a single outstanding request.
//
// A Correlator holds at most one pending request. The first of a matching
// response, the request timeout or context cancellation resolves it and
// frees the slot:
//
//	Request(ctx, req) --send--> peer
//	        |                     |
//	        +<----- Deliver(resp) +   matched: returned to caller
//	                              |   otherwise: unsolicited handler
//
// A response that arrives after its request was resolved is treated as
// unsolicited.
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/backkem/hap/pkg/message"
	"github.com/pion/logging"
)

// DefaultTimeout bounds the wait for a response.
const DefaultTimeout = 3 * time.Second

// SendFunc writes an outbound message to the peer. It must give up once
// ctx is done.
type SendFunc func(ctx context.Context, msg message.Message) error

// Matcher reports whether resp answers req.
type Matcher func(req, resp message.Message) bool

// Handler receives messages that do not answer the pending request.
type Handler func(msg message.Message)

// Config configures a Correlator.
type Config struct {
	// Send writes requests. Required.
	Send SendFunc

	// Match decides whether an inbound message answers the pending request.
	// Nil accepts any inbound message.
	Match Matcher

	// Unsolicited receives inbound messages that are not matched. Nil drops
	// them.
	Unsolicited Handler

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

type result struct {
	msg message.Message
	err error
}

type pending struct {
	req  message.Message
	done chan result
}

// Correlator pairs outbound requests with inbound responses.
type Correlator struct {
	config Config
	log    logging.LeveledLogger

	mu      sync.Mutex
	pending *pending
	closed  error
}

// NewCorrelator creates a correlator.
func NewCorrelator(config Config) (*Correlator, error) {
	if config.Send == nil {
		return nil, fmt.Errorf("exchange: send function required")
	}
	config.applyDefaults()

	c := &Correlator{config: config}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("hap-exchange")
	}
	return c, nil
}

// Request sends req and waits for the matching response. The timeout
// covers the write as well as the wait.
func (c *Correlator) Request(ctx context.Context, req message.Message) (message.Message, error) {
	p := &pending{req: req, done: make(chan result, 1)}

	c.mu.Lock()
	if c.closed != nil {
		err := c.closed
		c.mu.Unlock()
		return nil, err
	}
	if c.pending != nil {
		c.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	c.pending = p
	c.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.config.Send(rctx, req); err != nil {
		if !c.release(p) {
			// A failed write may close the connection, which resolves p.
			err = (<-p.done).err
		}
		if rctx.Err() != nil {
			return nil, c.expired(ctx)
		}
		return nil, err
	}

	select {
	case r := <-p.done:
		return r.msg, r.err
	case <-rctx.Done():
		if !c.release(p) {
			r := <-p.done
			return r.msg, r.err
		}
		return nil, c.expired(ctx)
	}
}

// expired returns the caller's context error, or ErrRequestTimeout when
// the request timeout fired first.
func (c *Correlator) expired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.log != nil {
		c.log.Debugf("request timed out after %v", c.config.Timeout)
	}
	return ErrRequestTimeout
}

// release clears the slot if p still holds it. It returns false when p was
// already resolved by Deliver or Close.
func (c *Correlator) release(p *pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != p {
		return false
	}
	c.pending = nil
	return true
}

// Deliver hands an inbound message to the pending request if it matches,
// otherwise to the unsolicited handler. It reports whether the message
// resolved a request.
func (c *Correlator) Deliver(msg message.Message) bool {
	c.mu.Lock()
	p := c.pending
	if p != nil && (c.config.Match == nil || c.config.Match(p.req, msg)) {
		c.pending = nil
		c.mu.Unlock()
		p.done <- result{msg: msg}
		return true
	}
	c.mu.Unlock()

	if c.config.Unsolicited != nil {
		c.config.Unsolicited(msg)
	} else if c.log != nil {
		c.log.Debugf("dropping unmatched %T", msg)
	}
	return false
}

// Pending reports whether a request is waiting for its response.
func (c *Correlator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Close rejects the pending request and all later ones. cause, if non-nil,
// is wrapped alongside ErrConnectionClosed. Close is idempotent.
func (c *Correlator) Close(cause error) {
	err := ErrConnectionClosed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrConnectionClosed, cause)
	}

	c.mu.Lock()
	if c.closed != nil {
		c.mu.Unlock()
		return
	}
	c.closed = err
	p := c.pending
	c.pending = nil
	c.mu.Unlock()

	if p != nil {
		p.done <- result{err: err}
	}
}
