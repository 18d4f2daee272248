package tlv8

import "fmt"

// Type is the one-byte record type.
type Type uint8

// Record types used by pair-setup and pair-verify.
const (
	TypeMethod        Type = 0x00
	TypeIdentifier    Type = 0x01
	TypeSalt          Type = 0x02
	TypePublicKey     Type = 0x03
	TypeProof         Type = 0x04
	TypeEncryptedData Type = 0x05
	TypeState         Type = 0x06
	TypeError         Type = 0x07
	TypeBackOff       Type = 0x08
	TypeCertificate   Type = 0x09
	TypeSignature     Type = 0x0A
	TypePermissions   Type = 0x0B
	TypeFragmentData  Type = 0x0C
	TypeFragmentLast  Type = 0x0D
	TypeName          Type = 0x11
	TypeFlags         Type = 0x13
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeMethod:
		return "Method"
	case TypeIdentifier:
		return "Identifier"
	case TypeSalt:
		return "Salt"
	case TypePublicKey:
		return "PublicKey"
	case TypeProof:
		return "Proof"
	case TypeEncryptedData:
		return "EncryptedData"
	case TypeState:
		return "State"
	case TypeError:
		return "Error"
	case TypeBackOff:
		return "BackOff"
	case TypeCertificate:
		return "Certificate"
	case TypeSignature:
		return "Signature"
	case TypePermissions:
		return "Permissions"
	case TypeFragmentData:
		return "FragmentData"
	case TypeFragmentLast:
		return "FragmentLast"
	case TypeName:
		return "Name"
	case TypeFlags:
		return "Flags"
	default:
		return fmt.Sprintf("Type(0x%02x)", uint8(t))
	}
}

// Method is the value carried in a TypeMethod record.
type Method uint8

const (
	MethodPairSetup         Method = 0x00
	MethodPairSetupWithAuth Method = 0x01
	MethodPairVerify        Method = 0x02
	MethodAddPairing        Method = 0x03
	MethodRemovePairing     Method = 0x04
	MethodListPairings      Method = 0x05
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodPairSetup:
		return "PairSetup"
	case MethodPairSetupWithAuth:
		return "PairSetupWithAuth"
	case MethodPairVerify:
		return "PairVerify"
	case MethodAddPairing:
		return "AddPairing"
	case MethodRemovePairing:
		return "RemovePairing"
	case MethodListPairings:
		return "ListPairings"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// State is the handshake step carried in a TypeState record.
type State uint8

const (
	StateM1 State = 0x01
	StateM2 State = 0x02
	StateM3 State = 0x03
	StateM4 State = 0x04
	StateM5 State = 0x05
	StateM6 State = 0x06
)

// String returns "M1" through "M6".
func (s State) String() string {
	if s >= StateM1 && s <= StateM6 {
		return fmt.Sprintf("M%d", uint8(s))
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Flags is the bit set carried in a TypeFlags record.
type Flags uint32

// FlagTransient requests a pairing that yields session keys only.
const FlagTransient Flags = 0x10
