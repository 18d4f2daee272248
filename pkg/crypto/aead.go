// ChaCha20-Poly1305 (RFC 8439) as used by HAP pairing and session framing:
//   - Key length: 256 bits (32 bytes)
//   - Tag length: 128 bits (16 bytes)
//   - Nonce length: 12 bytes

package crypto

import (
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// TagSize is the Poly1305 authentication tag length.
const TagSize = chacha20poly1305.Overhead

// Errors
var (
	ErrInvalidKeySize       = errors.New("aead: invalid key size, must be 32 bytes")
	ErrInvalidNonceSize     = errors.New("aead: invalid nonce size, must be 12 bytes")
	ErrInvalidTagSize       = errors.New("aead: invalid tag size, must be 16 bytes")
	ErrCiphertextTooShort   = errors.New("aead: ciphertext shorter than tag")
	ErrAuthenticationFailed = errors.New("aead: message authentication failed")
)

// AEAD is a ChaCha20-Poly1305 instance bound to one key.
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD creates a cipher for a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKeySize
	}
	a, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &AEAD{aead: a}, nil
}

// SealCombined encrypts plaintext and returns ciphertext || tag.
func (a *AEAD) SealCombined(nonce, aad, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	return a.aead.Seal(nil, nonce, plaintext, aad), nil
}

// AppendSeal appends ciphertext || tag to dst.
func (a *AEAD) AppendSeal(dst, nonce, aad, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	return a.aead.Seal(dst, nonce, plaintext, aad), nil
}

// OpenCombined authenticates and decrypts ciphertext || tag. No plaintext
// is returned when authentication fails.
func (a *AEAD) OpenCombined(nonce, aad, sealed []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	if len(sealed) < TagSize {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := a.aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}

// Seal encrypts plaintext and returns the ciphertext and tag separately.
func Seal(key, nonce, aad, plaintext []byte) (ciphertext, tag []byte, err error) {
	sealed, err := SealCombined(key, nonce, aad, plaintext)
	if err != nil {
		return nil, nil, err
	}
	n := len(sealed) - TagSize
	return sealed[:n:n], sealed[n:], nil
}

// Open verifies tag and decrypts ciphertext.
func Open(key, nonce, aad, ciphertext, tag []byte) ([]byte, error) {
	if len(tag) != TagSize {
		return nil, ErrInvalidTagSize
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	return OpenCombined(key, nonce, aad, sealed)
}

// SealCombined encrypts plaintext under key and returns ciphertext || tag,
// the layout carried in EncryptedData records.
func SealCombined(key, nonce, aad, plaintext []byte) ([]byte, error) {
	a, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.SealCombined(nonce, aad, plaintext)
}

// OpenCombined splits sealed into ciphertext and trailing tag and decrypts.
func OpenCombined(key, nonce, aad, sealed []byte) ([]byte, error) {
	a, err := NewAEAD(key)
	if err != nil {
		return nil, err
	}
	return a.OpenCombined(nonce, aad, sealed)
}

// SealMessage encrypts a handshake payload under a tag nonce such as
// NoncePairSetupM5.
func SealMessage(key []byte, tag string, plaintext []byte) ([]byte, error) {
	nonce, err := TagNonce(tag)
	if err != nil {
		return nil, err
	}
	return SealCombined(key, nonce, nil, plaintext)
}

// OpenMessage decrypts a handshake payload sealed under a tag nonce.
func OpenMessage(key []byte, tag string, sealed []byte) ([]byte, error) {
	nonce, err := TagNonce(tag)
	if err != nil {
		return nil, err
	}
	return OpenCombined(key, nonce, nil, sealed)
}
