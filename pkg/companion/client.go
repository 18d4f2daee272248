package companion

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"maps"
	"net"
	"sync"
	"time"

	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/transport"
	"github.com/pion/logging"
)

// Event is an unsolicited message pushed by the device.
type Event struct {
	Frame      message.FrameType
	Identifier string
	Content    map[string]any

	// Message is the whole decoded payload.
	Message map[string]any
}

// Config configures a Client.
type Config struct {
	// Identity is the controller identity used for pair-setup. When nil a
	// fresh one is created under PairingID(MAC).
	Identity *hap.Identity

	// MAC is the controller MAC address used as pairing id. Optional.
	MAC string

	// Store receives credentials after a PIN pairing. Optional.
	Store hap.CredentialStore

	// Codec encodes payloads. The connection also uses it to match
	// responses to requests. Defaults to OPACKCodec.
	Codec Codec

	// OnEvent receives unsolicited messages. It runs on the read loop and
	// must not block.
	OnEvent func(ev Event)

	// RequestTimeout bounds each request. Zero means the exchange default.
	RequestTimeout time.Duration

	// DialTimeout bounds Dial. Zero means the transport default.
	DialTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() error {
	if c.Codec == nil {
		c.Codec = OPACKCodec{}
	}
	if c.Identity == nil {
		id, err := hap.NewIdentity(PairingID(c.MAC), DefaultName)
		if err != nil {
			return err
		}
		c.Identity = id
	}
	return nil
}

// Client is a connection to a Companion-Link device.
type Client struct {
	config Config
	conn   *transport.Conn
	log    logging.LeveledLogger

	mu  sync.Mutex
	xid uint64
}

// Dial connects to the Companion-Link port at addr.
func Dial(ctx context.Context, addr string, config Config) (*Client, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	c := newClient(config)
	conn, err := transport.Dial(ctx, addr, transport.NewBinaryFramingWith(config.Codec), c.transport())
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

// NewClient wraps an established connection.
func NewClient(nc net.Conn, config Config) (*Client, error) {
	if err := config.applyDefaults(); err != nil {
		return nil, err
	}
	c := newClient(config)
	conn, err := transport.NewConn(nc, transport.NewBinaryFramingWith(config.Codec), c.transport())
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newClient(config Config) *Client {
	c := &Client{config: config, xid: randomXID()}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("hap-companion")
	}
	return c
}

func (c *Client) transport() transport.Config {
	return transport.Config{
		RequestTimeout: c.config.RequestTimeout,
		DialTimeout:    c.config.DialTimeout,
		Handler:        c.handle,
		LoggerFactory:  c.config.LoggerFactory,
	}
}

// randomXID picks the first transaction id below 65536.
func randomXID() uint64 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return uint64(binary.LittleEndian.Uint16(b[:]))
}

func (c *Client) nextXID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	x := c.xid
	c.xid++
	return x
}

// Identity returns the controller identity.
func (c *Client) Identity() *hap.Identity {
	return c.config.Identity
}

// Send sends an OPACK frame and returns the decoded reply. A _x
// transaction id is added when missing.
func (c *Client) Send(ctx context.Context, frameType message.FrameType, v map[string]any) (map[string]any, error) {
	body := make(map[string]any, len(v)+1)
	maps.Copy(body, v)
	if _, ok := body[FieldTransaction]; !ok {
		body[FieldTransaction] = c.nextXID()
	}
	payload, err := c.config.Codec.Marshal(body)
	if err != nil {
		return nil, err
	}

	msg, err := c.conn.Do(ctx, &message.Frame{Type: frameType, Payload: payload})
	if err != nil {
		return nil, err
	}
	frame, ok := msg.(*message.Frame)
	if !ok || !frame.Type.IsOPACK() {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedFrame, msg)
	}
	return c.config.Codec.Unmarshal(frame.Payload)
}

// Request sends an E_OPACK request named identifier and returns the reply
// content (_c). An _em field in the reply is returned as *RemoteError.
func (c *Client) Request(ctx context.Context, identifier string, content map[string]any) (map[string]any, error) {
	if content == nil {
		content = map[string]any{}
	}
	reply, err := c.Send(ctx, message.FrameEOPACK, map[string]any{
		FieldIdentifier: identifier,
		FieldType:       uint64(MessageTypeRequest),
		FieldContent:    content,
	})
	if err != nil {
		return nil, err
	}
	if em, ok := reply[FieldError].(string); ok {
		return nil, &RemoteError{Identifier: identifier, Message: em}
	}
	out, _ := reply[FieldContent].(map[string]any)
	return out, nil
}

// handle receives frames that answer no request.
func (c *Client) handle(_ *transport.Conn, msg message.Message) {
	frame, ok := msg.(*message.Frame)
	if !ok || !frame.Type.IsOPACK() {
		return
	}
	v, err := c.config.Codec.Unmarshal(frame.Payload)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("undecodable %s frame: %v", frame.Type, err)
		}
		return
	}
	if t, _ := v[FieldType].(uint64); MessageType(t) != MessageTypeEvent {
		if c.log != nil {
			c.log.Debugf("dropping unmatched %s message", MessageType(t))
		}
		return
	}
	ev := Event{Frame: frame.Type, Message: v}
	ev.Identifier, _ = v[FieldIdentifier].(string)
	ev.Content, _ = v[FieldContent].(map[string]any)
	if c.config.OnEvent != nil {
		c.config.OnEvent(ev)
	}
}

// Secured reports whether session keys are installed.
func (c *Client) Secured() bool {
	return c.conn.Secured()
}

// Close closes the connection and zeroes installed keys.
func (c *Client) Close() error {
	return c.conn.Close()
}
