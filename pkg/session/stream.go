package session

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
)

// Stream framing constants.
const (
	// MaxBlockSize is the largest plaintext carried by one stream frame.
	MaxBlockSize = 0x400

	// LengthSize is the size of the little-endian length prefix.
	LengthSize = 2

	// Overhead is the per-frame expansion: length prefix and tag.
	Overhead = LengthSize + crypto.TagSize
)

// direction is one half of a session: a key and its nonce counter.
type direction struct {
	aead    *crypto.AEAD
	counter uint64
}

func newDirection(key []byte) (*direction, error) {
	a, err := crypto.NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return &direction{aead: a}, nil
}

// next returns the nonce for the current counter and advances it.
func (d *direction) next() ([]byte, error) {
	if d.counter == math.MaxUint64 {
		return nil, ErrCounterExhausted
	}
	n := crypto.CounterNonce(d.counter)
	d.counter++
	return n, nil
}

// StreamCipher converts between a plaintext byte stream and HAP encrypted
// frames. Seal and Open may be called from different goroutines; each
// direction is serialized independently.
type StreamCipher struct {
	writeMu sync.Mutex
	write   *direction

	readMu  sync.Mutex
	read    *direction
	pending []byte // partial frame carried over between Open calls
	err     error
}

// NewStreamCipher creates a cipher that writes with keys.Write and reads
// with keys.Read.
func NewStreamCipher(keys *Keys) (*StreamCipher, error) {
	if keys == nil || keys.IsZero() {
		return nil, ErrKeysZeroed
	}
	w, err := newDirection(keys.Write[:])
	if err != nil {
		return nil, err
	}
	r, err := newDirection(keys.Read[:])
	if err != nil {
		return nil, err
	}
	return &StreamCipher{write: w, read: r}, nil
}

// Seal encrypts p into one or more frames of at most MaxBlockSize
// plaintext bytes each.
func (c *StreamCipher) Seal(p []byte) ([]byte, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	blocks := (len(p) + MaxBlockSize - 1) / MaxBlockSize
	out := make([]byte, 0, len(p)+blocks*Overhead)
	for len(p) > 0 {
		n := min(len(p), MaxBlockSize)

		nonce, err := c.write.next()
		if err != nil {
			return nil, err
		}

		start := len(out)
		out = binary.LittleEndian.AppendUint16(out, uint16(n))
		aad := out[start : start+LengthSize]
		out, err = c.write.aead.AppendSeal(out, nonce, aad, p[:n])
		if err != nil {
			return nil, err
		}
		p = p[n:]
	}
	return out, nil
}

// Open appends p to the carry-over buffer and decrypts every complete
// frame now available, in order. Bytes of an incomplete trailing frame are
// kept for the next call. It never blocks.
//
// A frame that fails authentication returns the plaintext decrypted before
// it together with crypto.ErrAuthenticationFailed; every later call
// returns ErrStreamBroken.
func (c *StreamCipher) Open(p []byte) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.err != nil {
		return nil, ErrStreamBroken
	}

	buf := p
	if len(c.pending) > 0 {
		buf = append(c.pending, p...)
	}

	var out []byte
	for len(buf) >= LengthSize {
		n := int(binary.LittleEndian.Uint16(buf))
		total := LengthSize + n + crypto.TagSize
		if len(buf) < total {
			break
		}

		nonce, err := c.read.next()
		if err != nil {
			c.err = err
			return out, err
		}
		plain, err := c.read.aead.OpenCombined(nonce, buf[:LengthSize], buf[LengthSize:total])
		if err != nil {
			c.err = err
			c.pending = nil
			return out, err
		}
		out = append(out, plain...)
		buf = buf[total:]
	}

	// Copy so the caller may reuse p.
	c.pending = append(c.pending[:0:0], buf...)
	return out, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (c *StreamCipher) Buffered() int {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return len(c.pending)
}

// Counters returns the current read and write nonce counters.
func (c *StreamCipher) Counters() (read, write uint64) {
	c.readMu.Lock()
	read = c.read.counter
	c.readMu.Unlock()

	c.writeMu.Lock()
	write = c.write.counter
	c.writeMu.Unlock()
	return read, write
}
