// Package transport carries pairing and session traffic over a TCP
// connection.
//
// A Conn combines a net.Conn, a Framing (text for AirPlay, binary for
// Companion-Link) and an exchange.Correlator. A read loop feeds received
// bytes through the framing and delivers each message to the correlator;
// messages that answer nothing go to the configured Handler:
//
//	Do(ctx, req) -> Framing.Encode -> net.Conn
//	net.Conn -> readLoop -> Framing.Feed -> Correlator.Deliver
//	                                         |-> pending Do
//	                                         `-> Handler
//
// Keys installed with Secure apply to every byte written or read after the
// call. Closing the connection rejects the pending request and zeroes the
// installed keys.
package transport

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/backkem/hap/pkg/exchange"
	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/session"
	"github.com/pion/logging"
)

// Defaults.
const (
	DefaultDialTimeout = 5 * time.Second

	readBufferSize = 4096
)

// Config configures a Conn.
type Config struct {
	// RequestTimeout bounds Do. Zero means exchange.DefaultTimeout.
	RequestTimeout time.Duration

	// DialTimeout bounds Dial. Zero means DefaultDialTimeout.
	DialTimeout time.Duration

	// Handler receives inbound messages that do not answer a pending
	// request: peer requests, events and late responses. Nil drops them.
	// It runs on the read loop; it may call Send but not Do.
	Handler func(c *Conn, msg message.Message)

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
}

// Conn is a framed, optionally encrypted connection to one peer.
type Conn struct {
	conn    net.Conn
	framing Framing
	corr    *exchange.Correlator
	handler func(*Conn, message.Message)
	log     logging.LeveledLogger

	// writeMu orders encoding with writing so nonces follow wire order.
	writeMu sync.Mutex

	keysMu sync.Mutex
	keys   *session.Keys

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
	wg        sync.WaitGroup
}

// Dial connects to addr over TCP and starts the read loop.
func Dial(ctx context.Context, addr string, framing Framing, config Config) (*Conn, error) {
	if framing == nil {
		return nil, ErrNoFraming
	}
	config.applyDefaults()

	d := net.Dialer{Timeout: config.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, err := NewConn(nc, framing, config)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// NewConn wraps an established connection and starts the read loop. The
// Conn owns nc from here on.
func NewConn(nc net.Conn, framing Framing, config Config) (*Conn, error) {
	if framing == nil {
		return nil, ErrNoFraming
	}
	config.applyDefaults()

	c := &Conn{
		conn:    nc,
		framing: framing,
		handler: config.Handler,
		done:    make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("hap-transport")
	}

	corr, err := exchange.NewCorrelator(exchange.Config{
		Send:          c.send,
		Match:         framing.Match,
		Unsolicited:   c.unsolicited,
		Timeout:       config.RequestTimeout,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	c.corr = corr

	if c.log != nil {
		c.log.Debugf("%s connection to %s", framing.Type(), nc.RemoteAddr())
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Do sends req and waits for its response. Only one Do may be pending.
func (c *Conn) Do(ctx context.Context, req message.Message) (message.Message, error) {
	return c.corr.Request(ctx, req)
}

// Send writes msg without waiting for a reply.
func (c *Conn) Send(msg message.Message) error {
	return c.send(context.Background(), msg)
}

// send writes msg, giving up when ctx is done. A write cut short leaves the
// stream mid-frame, so it shuts the connection down.
func (c *Conn) send(ctx context.Context, msg message.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := c.framing.Encode(msg)
	if err != nil {
		return err
	}

	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	}
	var (
		mu       sync.Mutex
		finished bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !finished {
			_ = c.conn.SetWriteDeadline(time.Unix(1, 0))
		}
	})

	_, err = c.conn.Write(data)

	mu.Lock()
	finished = true
	mu.Unlock()
	stop()
	_ = c.conn.SetWriteDeadline(time.Time{})

	if err != nil {
		if _, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) {
			// The write deadline is ctx's own; report it as ctx's error.
			<-ctx.Done()
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		c.shutdown(err)
		return err
	}
	return nil
}

// Secure installs session keys on the framing. Keys are copied; the copy
// is zeroed when the connection closes.
func (c *Conn) Secure(keys *session.Keys) error {
	if keys == nil {
		return session.ErrKeysZeroed
	}

	// Hold writes so no frame is encoded half under the old state.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.keysMu.Lock()
	defer c.keysMu.Unlock()

	if c.keys != nil {
		return ErrAlreadySecured
	}

	if err := c.framing.Secure(keys); err != nil {
		return err
	}
	k := *keys
	c.keys = &k

	if c.log != nil {
		c.log.Debug("session keys installed")
	}
	return nil
}

// Secured reports whether session keys are installed.
func (c *Conn) Secured() bool {
	return c.framing.Secured()
}

// Framing returns the connection's framing.
func (c *Conn) Framing() Framing {
	return c.framing
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that shut the connection down, or nil while it is
// open or after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close shuts the connection down and waits for the read loop to exit.
func (c *Conn) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()

		close(c.done)
		c.conn.Close()
		c.corr.Close(cause)

		c.keysMu.Lock()
		if c.keys != nil {
			c.keys.Zero()
		}
		c.keysMu.Unlock()

		if c.log != nil {
			if cause != nil {
				c.log.Debugf("connection closed: %v", cause)
			} else {
				c.log.Debug("connection closed")
			}
		}
	})
}

func (c *Conn) readLoop() {
	defer c.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			msgs, ferr := c.framing.Feed(buf[:n])
			for _, msg := range msgs {
				c.corr.Deliver(msg)
			}
			if ferr != nil {
				if c.log != nil {
					c.log.Warnf("dropping connection: %v", ferr)
				}
				c.shutdown(ferr)
				return
			}
		}
		if err != nil {
			select {
			case <-c.done:
			default:
				c.shutdown(err)
			}
			return
		}
	}
}

func (c *Conn) unsolicited(msg message.Message) {
	if c.handler != nil {
		c.handler(c, msg)
		return
	}
	if c.log != nil {
		c.log.Debugf("dropping unsolicited %T", msg)
	}
}
