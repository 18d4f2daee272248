package securechannel

import (
	"errors"
	"fmt"

	"github.com/backkem/hap/pkg/tlv8"
)

// Errors.
var (
	// ErrUnexpectedMessage is returned by Responder for a body whose State
	// does not start or continue a handshake.
	ErrUnexpectedMessage = errors.New("securechannel: unexpected message")

	// ErrNoCredentials is returned when verify is attempted without stored
	// credentials.
	ErrNoCredentials = errors.New("securechannel: no credentials")
)

// HandshakeError reports the phase and step at which a handshake failed.
type HandshakeError struct {
	Phase Phase
	Step  tlv8.State
	Err   error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Step, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}
