package session

import "sync"

// FrameCipher seals and opens whole frames whose header is sent in the
// clear. The header is authenticated as AAD; its length field must already
// account for the trailing tag.
type FrameCipher struct {
	writeMu sync.Mutex
	write   *direction

	readMu sync.Mutex
	read   *direction
}

// NewFrameCipher creates a cipher that writes with keys.Write and reads
// with keys.Read.
func NewFrameCipher(keys *Keys) (*FrameCipher, error) {
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
	return &FrameCipher{write: w, read: r}, nil
}

// Seal encrypts payload and returns ciphertext || tag.
func (c *FrameCipher) Seal(header, payload []byte) ([]byte, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	nonce, err := c.write.next()
	if err != nil {
		return nil, err
	}
	return c.write.aead.SealCombined(nonce, header, payload)
}

// Open authenticates and decrypts a frame body of ciphertext || tag.
func (c *FrameCipher) Open(header, body []byte) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	nonce, err := c.read.next()
	if err != nil {
		return nil, err
	}
	return c.read.aead.OpenCombined(nonce, header, body)
}
