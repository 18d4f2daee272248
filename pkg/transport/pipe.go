package transport

import (
	"net"
	"time"
)

// NetworkCondition shapes the byte stream of an in-memory pipe.
type NetworkCondition struct {
	// MaxSegment splits every write into pieces of at most this many
	// bytes. Zero leaves writes whole.
	MaxSegment int

	// Delay is added before each piece is delivered.
	Delay time.Duration
}

// segmentedConn applies a NetworkCondition to writes on a net.Conn.
type segmentedConn struct {
	net.Conn
	cond NetworkCondition
}

func (c *segmentedConn) Write(b []byte) (int, error) {
	if c.cond.MaxSegment <= 0 && c.cond.Delay == 0 {
		return c.Conn.Write(b)
	}
	written := 0
	for written < len(b) {
		end := len(b)
		if c.cond.MaxSegment > 0 && end-written > c.cond.MaxSegment {
			end = written + c.cond.MaxSegment
		}
		if c.cond.Delay > 0 {
			time.Sleep(c.cond.Delay)
		}
		n, err := c.Conn.Write(b[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// NewPipe returns both ends of a synchronous in-memory stream with cond
// applied in both directions.
func NewPipe(cond NetworkCondition) (net.Conn, net.Conn) {
	a, b := net.Pipe()
	return &segmentedConn{Conn: a, cond: cond}, &segmentedConn{Conn: b, cond: cond}
}

// NewConnPair connects two Conns over an in-memory pipe. It is used to run
// a controller against a scripted accessory.
func NewConnPair(cond NetworkCondition, client Framing, clientConfig Config, server Framing, serverConfig Config) (*Conn, *Conn, error) {
	a, b := NewPipe(cond)
	cc, err := NewConn(a, client, clientConfig)
	if err != nil {
		a.Close()
		b.Close()
		return nil, nil, err
	}
	sc, err := NewConn(b, server, serverConfig)
	if err != nil {
		cc.Close()
		b.Close()
		return nil, nil, err
	}
	return cc, sc, nil
}
