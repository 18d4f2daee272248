// Package companion is a Companion-Link client: HAP pairing carried in
// OPACK frames, then per-frame encrypted OPACK messaging.
//
// Pairing bodies travel in the _pd field of PS_Start/PS_Next (setup) and
// PV_Start/PV_Next (verify) frames. After pair-verify every frame payload
// is sealed with the MediaRemote keys:
//
//	+------+------------+------------------------------+
//	| type | length(24) | ChaCha20-Poly1305(OPACK) tag |
//	+------+------------+------------------------------+
//
// Messages are OPACK dictionaries with _i (identifier), _t (message type),
// _x (transaction id) and _c (content).
package companion

import (
	"errors"
	"fmt"

	"github.com/backkem/hap/pkg/opack"
	"github.com/google/uuid"
)

// MessageType is the _t field of an E_OPACK message.
type MessageType uint8

const (
	MessageTypeEvent    MessageType = 1
	MessageTypeRequest  MessageType = 2
	MessageTypeResponse MessageType = 3
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeEvent:
		return "Event"
	case MessageTypeRequest:
		return "Request"
	case MessageTypeResponse:
		return "Response"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Message fields.
const (
	FieldPairingData = "_pd"
	FieldPairingType = "_pwTy"
	FieldAuthType    = "_auTy"
	FieldIdentifier  = "_i"
	FieldType        = "_t"
	FieldTransaction = "_x"
	FieldContent     = "_c"
	FieldError       = "_em"
)

// Values of the pairing type fields.
const (
	pairingTypeSetup = 1
	authTypeVerify   = 4
)

// DefaultName is the controller name sent in pair-setup M5.
const DefaultName = "hap controller"

// pairingIDDomain is appended to a random UUID when no MAC is known.
const pairingIDDomain = "@companionlink.local"

// Errors.
var (
	// ErrNotPaired is returned when verify is attempted without credentials.
	ErrNotPaired = errors.New("companion: no credentials")

	// ErrMissingPairingData is returned when a pairing reply lacks _pd.
	ErrMissingPairingData = errors.New("companion: reply without pairing data")

	// ErrUnexpectedFrame is returned when a reply is not an OPACK frame.
	ErrUnexpectedFrame = errors.New("companion: unexpected frame")
)

// RemoteError reports an error string (_em) in a response.
type RemoteError struct {
	Identifier string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("companion: %s failed: %s", e.Identifier, e.Message)
}

// Codec encodes frame payloads.
type Codec interface {
	Marshal(v map[string]any) ([]byte, error)
	Unmarshal(data []byte) (map[string]any, error)
}

// OPACKCodec is the default Codec.
type OPACKCodec struct{}

// Marshal encodes v as OPACK.
func (OPACKCodec) Marshal(v map[string]any) ([]byte, error) {
	return opack.Marshal(v)
}

// Unmarshal decodes an OPACK dictionary.
func (OPACKCodec) Unmarshal(data []byte) (map[string]any, error) {
	return opack.UnmarshalDict(data)
}

// PairingID returns the identifier a controller pairs under: the MAC
// address when known, otherwise a random UUID in the companionlink.local
// domain.
func PairingID(mac string) string {
	if mac != "" {
		return mac
	}
	return uuid.NewString() + pairingIDDomain
}

// EncodeName encodes the controller name record of pair-setup M5.
func EncodeName(name string) ([]byte, error) {
	return opack.Marshal(map[string]any{"name": name})
}
