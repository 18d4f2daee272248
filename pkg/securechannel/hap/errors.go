package hap

import (
	"errors"
	"fmt"
	"time"

	"github.com/backkem/hap/pkg/tlv8"
)

// Errors.
var (
	// ErrInvalidSignature is returned when a peer's Ed25519 signature does
	// not verify against its long-term public key.
	ErrInvalidSignature = errors.New("hap: invalid accessory signature")

	// ErrIdentityMismatch is returned when the identifier presented during
	// pair-verify differs from the stored one.
	ErrIdentityMismatch = errors.New("hap: identity mismatch")

	// ErrNotFound is returned by stores for unknown identifiers.
	ErrNotFound = errors.New("hap: credentials not found")

	// ErrInvalidCredentials is returned for credentials with missing or
	// mis-sized fields.
	ErrInvalidCredentials = errors.New("hap: invalid credentials")

	// ErrUnexpectedState is returned when a response carries the wrong
	// State value.
	ErrUnexpectedState = errors.New("hap: unexpected state")
)

// AccessoryError reports an Error record in an accessory response.
type AccessoryError struct {
	Code ErrorCode
}

func (e *AccessoryError) Error() string {
	return fmt.Sprintf("hap: accessory error %d (%s): %s", uint8(e.Code), e.Code, e.Code.Description())
}

// BusyError reports a BackOff record. The accessory asks the controller to
// wait RetryAfter before trying again. The core never retries.
type BusyError struct {
	RetryAfter time.Duration
	Code       ErrorCode
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("hap: accessory busy, retry after %s", e.RetryAfter)
}

// CheckError inspects a decoded response for an accessory error. A BackOff
// record takes precedence and yields *BusyError; an Error record alone
// yields *AccessoryError. It returns nil when neither is present.
func CheckError(c *tlv8.Container) error {
	if c.Has(tlv8.TypeBackOff) {
		seconds, err := c.Uint(tlv8.TypeBackOff)
		if err != nil {
			return fmt.Errorf("hap: malformed back-off: %w", err)
		}
		code := ErrorCodeBackOff
		if b, err := c.Byte(tlv8.TypeError); err == nil {
			code = ErrorCode(b)
		}
		return &BusyError{RetryAfter: time.Duration(seconds) * time.Second, Code: code}
	}
	if c.Has(tlv8.TypeError) {
		b, err := c.Byte(tlv8.TypeError)
		if err != nil {
			return fmt.Errorf("hap: malformed error: %w", err)
		}
		return &AccessoryError{Code: ErrorCode(b)}
	}
	return nil
}

// ErrorResponse encodes an accessory error reply for state.
func ErrorResponse(state tlv8.State, code ErrorCode) []byte {
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(state)),
		tlv8.Byte(tlv8.TypeError, uint8(code)),
	)
}

// BackOffResponse encodes a busy reply asking the controller to wait.
func BackOffResponse(state tlv8.State, wait time.Duration) []byte {
	seconds := uint16(wait / time.Second)
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(state)),
		tlv8.Byte(tlv8.TypeError, uint8(ErrorCodeBackOff)),
		tlv8.Bytes(tlv8.TypeBackOff, []byte{byte(seconds), byte(seconds >> 8)}),
	)
}

// ExpectState decodes a response, surfaces accessory errors and checks the
// State record when one is present.
func ExpectState(data []byte, want tlv8.State) (*tlv8.Container, error) {
	c, err := tlv8.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := CheckError(c); err != nil {
		return nil, err
	}
	if !c.Has(tlv8.TypeState) {
		return c, nil
	}
	state, err := c.Byte(tlv8.TypeState)
	if err != nil {
		return nil, err
	}
	if tlv8.State(state) != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedState, tlv8.State(state), want)
	}
	return c, nil
}
