package hap

import "fmt"

// ErrorCode is the value of an Error record sent by an accessory.
type ErrorCode uint8

const (
	ErrorCodeUnknown        ErrorCode = 0x01
	ErrorCodeAuthentication ErrorCode = 0x02
	ErrorCodeBackOff        ErrorCode = 0x03
	ErrorCodeMaxPeers       ErrorCode = 0x04
	ErrorCodeMaxTries       ErrorCode = 0x05
	ErrorCodeUnavailable    ErrorCode = 0x06
	ErrorCodeBusy           ErrorCode = 0x07
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeUnknown:
		return "Unknown"
	case ErrorCodeAuthentication:
		return "Authentication"
	case ErrorCodeBackOff:
		return "BackOff"
	case ErrorCodeMaxPeers:
		return "MaxPeers"
	case ErrorCodeMaxTries:
		return "MaxTries"
	case ErrorCodeUnavailable:
		return "Unavailable"
	case ErrorCodeBusy:
		return "Busy"
	default:
		return fmt.Sprintf("ErrorCode(%d)", uint8(c))
	}
}

// Description returns the accessory-side meaning of the code.
func (c ErrorCode) Description() string {
	switch c {
	case ErrorCodeUnknown:
		return "generic error to handle unexpected errors"
	case ErrorCodeAuthentication:
		return "setup code or signature verification failed"
	case ErrorCodeBackOff:
		return "client must look at the retry delay and wait that many seconds before retrying"
	case ErrorCodeMaxPeers:
		return "server cannot accept any more pairings"
	case ErrorCodeMaxTries:
		return "server reached its maximum number of authentication attempts"
	case ErrorCodeUnavailable:
		return "server pairing method is unavailable"
	case ErrorCodeBusy:
		return "server is busy and cannot accept a pairing request at this time"
	default:
		return "unknown pairing error"
	}
}

// Permissions is the controller permission byte kept with a pairing.
type Permissions uint8

const (
	PermissionUser  Permissions = 0x00
	PermissionAdmin Permissions = 0x01
)
