package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed connection.
	ErrClosed = errors.New("transport: closed")

	// ErrUnsupportedMessage is returned when a framing is asked to encode a
	// message kind it does not carry.
	ErrUnsupportedMessage = errors.New("transport: unsupported message for framing")

	// ErrAlreadySecured is returned when keys are installed twice.
	ErrAlreadySecured = errors.New("transport: already secured")

	// ErrNoFraming is returned when a connection is created without a framing.
	ErrNoFraming = errors.New("transport: no framing configured")
)
