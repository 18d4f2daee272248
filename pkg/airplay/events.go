package airplay

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/transport"
	"github.com/pion/logging"
)

// EventConfig configures an EventStream.
type EventConfig struct {
	// OnEvent receives every request the receiver pushes. It runs on the
	// read loop and must not block.
	OnEvent func(req *message.Request)

	// DialTimeout bounds DialEvents. Zero means the transport default.
	DialTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// EventStream is the reverse channel on which the receiver sends requests
// (POST /command) to the controller. It is encrypted from the first byte
// with keys derived from the pair-verify shared secret.
type EventStream struct {
	conn    *transport.Conn
	onEvent func(*message.Request)
	log     logging.LeveledLogger
}

// DialEvents connects to the event port announced in the SETUP reply.
func DialEvents(ctx context.Context, addr string, shared []byte, config EventConfig) (*EventStream, error) {
	d := net.Dialer{Timeout: config.DialTimeout}
	if d.Timeout == 0 {
		d.Timeout = transport.DefaultDialTimeout
	}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	es, err := NewEventStream(nc, shared, config)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return es, nil
}

// NewEventStream wraps an established event connection.
func NewEventStream(nc net.Conn, shared []byte, config EventConfig) (*EventStream, error) {
	keys, err := session.EventKeys(shared)
	if err != nil {
		return nil, err
	}
	defer keys.Zero()

	es := &EventStream{onEvent: config.OnEvent}
	if config.LoggerFactory != nil {
		es.log = config.LoggerFactory.NewLogger("hap-airplay")
	}

	framing := transport.NewTextFraming("")
	if err := framing.Secure(keys); err != nil {
		return nil, err
	}
	conn, err := transport.NewConn(nc, framing, transport.Config{
		Handler:       es.handle,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	es.conn = conn
	return es, nil
}

// handle acknowledges every pushed request and forwards it.
func (es *EventStream) handle(c *transport.Conn, msg message.Message) {
	req, ok := msg.(*message.Request)
	if !ok {
		return
	}

	header := message.Header{{Name: HeaderAudioLatency, Value: "0"}}
	if v := req.Header.Get(HeaderServer); v != "" {
		header.Add(HeaderServer, v)
	}
	if req.CSeq >= 0 {
		header.Add(message.HeaderCSeq, strconv.Itoa(req.CSeq))
	}
	if err := c.Send(&message.Response{StatusCode: 200, Status: "OK", Header: header}); err != nil && es.log != nil {
		es.log.Warnf("event reply failed: %v", err)
	}

	if es.log != nil {
		es.log.Debugf("event %s %s", req.Method, req.Path)
	}
	if es.onEvent != nil {
		es.onEvent(req)
	}
}

// Done is closed when the stream shuts down.
func (es *EventStream) Done() <-chan struct{} {
	return es.conn.Done()
}

// Close closes the stream.
func (es *EventStream) Close() error {
	return es.conn.Close()
}

// DataStreamKeys returns keys for a data stream channel set up with seed,
// oriented for the controller.
func DataStreamKeys(shared []byte, seed uint64) (*session.Keys, error) {
	return session.DataStreamKeys(shared, seed)
}
