package crypto

import (
	"encoding/binary"
	"errors"
)

const (
	// NonceSize is the ChaCha20-Poly1305 nonce length.
	NonceSize = 12

	// counterOffset is where the 64-bit frame counter sits in a nonce.
	counterOffset = 4
)

// Handshake nonce tags.
const (
	NoncePairSetupM5  = "PS-Msg05"
	NoncePairSetupM6  = "PS-Msg06"
	NoncePairVerifyM2 = "PV-Msg02"
	NoncePairVerifyM3 = "PV-Msg03"
)

// ErrInvalidNonceTag is returned for tags longer than NonceSize.
var ErrInvalidNonceTag = errors.New("nonce: tag longer than 12 bytes")

// CounterNonce builds the nonce used for stream frames.
//
// Format: 0x00000000 (4 bytes) || Counter (8 bytes LE)
func CounterNonce(counter uint64) []byte {
	nonce := make([]byte, NonceSize)
	binary.LittleEndian.PutUint64(nonce[counterOffset:], counter)
	return nonce
}

// TagNonce builds a handshake nonce by left-padding an ASCII tag with
// zero bytes, e.g. "PS-Msg05" becomes 00000000 || "PS-Msg05".
func TagNonce(tag string) ([]byte, error) {
	if len(tag) > NonceSize {
		return nil, ErrInvalidNonceTag
	}
	nonce := make([]byte, NonceSize)
	copy(nonce[NonceSize-len(tag):], tag)
	return nonce, nil
}
