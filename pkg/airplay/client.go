package airplay

import (
	"context"
	"net"
	"time"

	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/transport"
	"github.com/pion/logging"
)

// Config configures a Client.
type Config struct {
	// Identity is the controller identity used for pair-setup. A fresh one
	// named DefaultName is created when nil.
	Identity *hap.Identity

	// Store receives credentials after a PIN pairing. Optional.
	Store hap.CredentialStore

	// UserAgent defaults to transport.DefaultUserAgent.
	UserAgent string

	// RequestTimeout bounds each request. Zero means the exchange default.
	RequestTimeout time.Duration

	// DialTimeout bounds Dial. Zero means the transport default.
	DialTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() error {
	if c.Identity == nil {
		id, err := hap.NewIdentity("", DefaultName)
		if err != nil {
			return err
		}
		c.Identity = id
	}
	return nil
}

func (c *Config) transport() transport.Config {
	return transport.Config{
		RequestTimeout: c.RequestTimeout,
		DialTimeout:    c.DialTimeout,
		LoggerFactory:  c.LoggerFactory,
	}
}

// Client is a connection to an AirPlay receiver's control port.
type Client struct {
	config Config
	conn   *transport.Conn
	log    logging.LeveledLogger
}

// Dial connects to the control port at addr.
func Dial(ctx context.Context, addr string, config Config) (*Client, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	conn, err := transport.Dial(ctx, addr, transport.NewTextFraming(config.UserAgent), config.transport())
	if err != nil {
		return nil, err
	}
	return newClient(conn, config), nil
}

// NewClient wraps an established connection.
func NewClient(nc net.Conn, config Config) (*Client, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	conn, err := transport.NewConn(nc, transport.NewTextFraming(config.UserAgent), config.transport())
	if err != nil {
		return nil, err
	}
	return newClient(conn, config), nil
}

func newClient(conn *transport.Conn, config Config) *Client {
	c := &Client{config: config, conn: conn}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("hap-airplay")
	}
	return c
}

// Identity returns the controller identity.
func (c *Client) Identity() *hap.Identity {
	return c.config.Identity
}

// Do sends a request and returns the response. Non-2xx responses are
// returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, header message.Header, body []byte) (*message.Response, error) {
	req := &message.Request{Method: method, Path: path, Header: header, Body: body}
	msg, err := c.conn.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	resp, ok := msg.(*message.Response)
	if !ok {
		return nil, message.ErrInvalidFraming
	}
	if !resp.OK() {
		return resp, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// Info returns the raw body of GET /info. The body is a binary property
// list.
func (c *Client) Info(ctx context.Context) ([]byte, error) {
	resp, err := c.Do(ctx, "GET", PathInfo, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Secure installs control channel keys. Every later request and response
// is encrypted.
func (c *Client) Secure(keys *session.Keys) error {
	if err := c.conn.Secure(keys); err != nil {
		return err
	}
	if c.log != nil {
		c.log.Debug("control channel encrypted")
	}
	return nil
}

// Secured reports whether control channel keys are installed.
func (c *Client) Secured() bool {
	return c.conn.Secured()
}

// Close closes the connection and zeroes installed keys.
func (c *Client) Close() error {
	return c.conn.Close()
}
