package session

import (
	"net"
	"sync"
)

// readChunk is the size of each read from the underlying connection.
const readChunk = 4096

// Conn is a net.Conn that applies a StreamCipher to all traffic.
type Conn struct {
	net.Conn
	cipher *StreamCipher

	readMu sync.Mutex
	plain  []byte
	buf    []byte

	writeMu sync.Mutex
}

// NewConn wraps conn. Writes use keys.Write and reads use keys.Read.
func NewConn(conn net.Conn, keys *Keys) (*Conn, error) {
	c, err := NewStreamCipher(keys)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn, cipher: c, buf: make([]byte, readChunk)}, nil
}

// Read returns decrypted bytes, reading from the underlying connection
// until at least one frame is complete.
func (c *Conn) Read(b []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.plain) == 0 {
		n, err := c.Conn.Read(c.buf)
		if n > 0 {
			plain, openErr := c.cipher.Open(c.buf[:n])
			c.plain = append(c.plain, plain...)
			if openErr != nil && len(c.plain) == 0 {
				return 0, openErr
			}
		}
		if err != nil && len(c.plain) == 0 {
			return 0, err
		}
	}

	n := copy(b, c.plain)
	c.plain = c.plain[n:]
	return n, nil
}

// Write encrypts b and writes the resulting frames.
func (c *Conn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	sealed, err := c.cipher.Seal(b)
	if err != nil {
		return 0, err
	}
	if _, err := c.Conn.Write(sealed); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Cipher returns the underlying stream cipher.
func (c *Conn) Cipher() *StreamCipher {
	return c.cipher
}
