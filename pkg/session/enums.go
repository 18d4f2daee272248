// Package session implements the encrypted framing used once a pairing
// handshake has produced session keys.
//
// Two layouts are provided:
//   - StreamCipher: HAP stream framing. Plaintext is cut into blocks of at
//     most 1024 bytes, each sent as LE16 length || ciphertext || tag with
//     the length prefix as AAD. Used by AirPlay control, event and data
//     channels.
//   - FrameCipher: per-frame sealing for Companion-Link, where the frame
//     header stays in the clear and is authenticated as AAD.
//
// Both use a 12-byte nonce carrying a 64-bit little-endian counter at
// offset 4. Read and write directions keep independent counters that start
// at zero and are never reset for the lifetime of the keys.
package session

// Role selects which derived key protects which direction.
type Role int

const (
	// RoleController reads with the accessory-to-controller key.
	RoleController Role = iota

	// RoleAccessory reads with the controller-to-accessory key.
	RoleAccessory
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "Controller"
	case RoleAccessory:
		return "Accessory"
	default:
		return "Unknown"
	}
}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleController || r == RoleAccessory
}
