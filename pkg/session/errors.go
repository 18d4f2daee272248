package session

import "errors"

// Session package errors.
var (
	// ErrInvalidKey is returned when an encryption key has invalid length.
	ErrInvalidKey = errors.New("session: invalid key length")

	// ErrInvalidRole is returned for roles other than Controller or Accessory.
	ErrInvalidRole = errors.New("session: invalid role")

	// ErrCounterExhausted is returned when a nonce counter would wrap.
	// The session must be re-established when this occurs.
	ErrCounterExhausted = errors.New("session: nonce counter exhausted")

	// ErrFrameTooLarge is returned when a frame exceeds its length field.
	ErrFrameTooLarge = errors.New("session: frame too large")

	// ErrStreamBroken is returned after a frame failed authentication. The
	// stream cannot be resynchronized.
	ErrStreamBroken = errors.New("session: stream broken by earlier failure")

	// ErrKeysZeroed is returned when keys were wiped before use.
	ErrKeysZeroed = errors.New("session: keys zeroed")
)
