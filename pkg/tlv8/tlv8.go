// Package tlv8 implements the one-byte type, one-byte length record format
// used by HAP pairing messages.
//
// Values longer than 255 bytes are split into consecutive records of the
// same type. Decoding reassembles them by concatenation.
package tlv8

import "bytes"

// MaxChunk is the largest value carried by a single record.
const MaxChunk = 255

// Entry is one logical (type, value) pair prior to chunking.
type Entry struct {
	Type  Type
	Value []byte
}

// Byte returns an entry with a single-byte value.
func Byte(t Type, v uint8) Entry {
	return Entry{Type: t, Value: []byte{v}}
}

// Bytes returns an entry holding v.
func Bytes(t Type, v []byte) Entry {
	return Entry{Type: t, Value: v}
}

// String returns an entry holding the bytes of s.
func String(t Type, s string) Entry {
	return Entry{Type: t, Value: []byte(s)}
}

// Encode serializes entries in order. Each value is split into chunks of
// at most MaxChunk bytes; an empty value produces one zero-length record.
func Encode(entries ...Entry) []byte {
	size := 0
	for _, e := range entries {
		n := (len(e.Value) + MaxChunk - 1) / MaxChunk
		if n == 0 {
			n = 1
		}
		size += 2*n + len(e.Value)
	}

	out := make([]byte, 0, size)
	for _, e := range entries {
		v := e.Value
		for {
			n := len(v)
			if n > MaxChunk {
				n = MaxChunk
			}
			out = append(out, byte(e.Type), byte(n))
			out = append(out, v[:n]...)
			v = v[n:]
			if len(v) == 0 {
				break
			}
		}
	}
	return out
}

// Decode parses b into a Container. Records sharing a type are
// concatenated in the order they appear, whether or not they are adjacent.
func Decode(b []byte) (*Container, error) {
	return decode(b, false)
}

// DecodeStrict is like Decode but only merges adjacent records of the same
// type. A type that reappears after another type is rejected.
func DecodeStrict(b []byte) (*Container, error) {
	return decode(b, true)
}

func decode(b []byte, strict bool) (*Container, error) {
	c := NewContainer()
	prev := -1
	for i := 0; i < len(b); {
		if i+2 > len(b) {
			return nil, ErrTruncated
		}
		t := Type(b[i])
		n := int(b[i+1])
		i += 2
		if i+n > len(b) {
			return nil, ErrTruncated
		}
		if strict && int(t) != prev && c.Has(t) {
			return nil, ErrDuplicateType
		}
		c.append(t, b[i:i+n])
		i += n
		prev = int(t)
	}
	return c, nil
}

// Container holds decoded values keyed by type, remembering the order in
// which each type was first seen.
type Container struct {
	values map[Type][]byte
	order  []Type
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{values: make(map[Type][]byte)}
}

func (c *Container) append(t Type, v []byte) {
	existing, ok := c.values[t]
	if !ok {
		c.order = append(c.order, t)
		existing = make([]byte, 0, len(v))
	}
	c.values[t] = append(existing, v...)
}

// Has reports whether t is present.
func (c *Container) Has(t Type) bool {
	_, ok := c.values[t]
	return ok
}

// Get returns the value for t, or nil.
func (c *Container) Get(t Type) []byte {
	return c.values[t]
}

// Require returns the value for t or ErrMissing.
func (c *Container) Require(t Type) ([]byte, error) {
	v, ok := c.values[t]
	if !ok {
		return nil, missing(t)
	}
	return v, nil
}

// Byte returns the single-byte value for t.
func (c *Container) Byte(t Type) (uint8, error) {
	v, ok := c.values[t]
	if !ok {
		return 0, missing(t)
	}
	if len(v) != 1 {
		return 0, ErrInvalidLength
	}
	return v[0], nil
}

// Uint returns the little-endian unsigned value for t. Values of up to
// eight bytes are accepted.
func (c *Container) Uint(t Type) (uint64, error) {
	v, ok := c.values[t]
	if !ok {
		return 0, missing(t)
	}
	if len(v) == 0 || len(v) > 8 {
		return 0, ErrInvalidLength
	}
	var n uint64
	for i := len(v) - 1; i >= 0; i-- {
		n = n<<8 | uint64(v[i])
	}
	return n, nil
}

// Types returns the types in first-seen order.
func (c *Container) Types() []Type {
	out := make([]Type, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of distinct types.
func (c *Container) Len() int {
	return len(c.order)
}

// Entries returns the container contents in first-seen order.
func (c *Container) Entries() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, Entry{Type: t, Value: bytes.Clone(c.values[t])})
	}
	return out
}

func missing(t Type) error {
	return &MissingError{Type: t}
}

// MissingError names the absent type. It matches ErrMissing.
type MissingError struct {
	Type Type
}

func (e *MissingError) Error() string {
	return "tlv8: missing " + e.Type.String()
}

// Is reports whether target is ErrMissing.
func (e *MissingError) Is(target error) bool {
	return target == ErrMissing
}
