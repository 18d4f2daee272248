package crypto

import (
	"crypto/sha512"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every key derived for pairing and sessions.
const KeySize = 32

// HKDFSHA512 derives key material using HKDF-SHA512 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive
//
// Returns the derived key material of the specified length.
func HKDFSHA512(inputKey, salt, info []byte, length int) ([]byte, error) {
	reader := hkdf.New(sha512.New, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}

// HKDFExtractSHA512 performs only the HKDF-Extract operation and returns
// the 64-byte pseudorandom key.
func HKDFExtractSHA512(inputKey, salt []byte) []byte {
	return hkdf.Extract(sha512.New, inputKey, salt)
}

// KeyLabel is a fixed salt/info pair. The strings are part of the wire
// contract and must match byte for byte.
type KeyLabel struct {
	Salt string
	Info string
}

// Pair-setup and pair-verify labels.
var (
	PairSetupControllerSign = KeyLabel{"Pair-Setup-Controller-Sign-Salt", "Pair-Setup-Controller-Sign-Info"}
	PairSetupAccessorySign  = KeyLabel{"Pair-Setup-Accessory-Sign-Salt", "Pair-Setup-Accessory-Sign-Info"}
	PairSetupEncrypt        = KeyLabel{"Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info"}
	PairVerifyEncrypt       = KeyLabel{"Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info"}
)

// Session labels. Read keys protect accessory-to-controller traffic.
var (
	ControlRead      = KeyLabel{"Control-Salt", "Control-Read-Encryption-Key"}
	ControlWrite     = KeyLabel{"Control-Salt", "Control-Write-Encryption-Key"}
	MediaRemoteRead  = KeyLabel{"MediaRemote-Salt", "MediaRemote-Read-Encryption-Key"}
	MediaRemoteWrite = KeyLabel{"MediaRemote-Salt", "MediaRemote-Write-Encryption-Key"}
	EventsRead       = KeyLabel{"Events-Salt", "Events-Read-Encryption-Key"}
	EventsWrite      = KeyLabel{"Events-Salt", "Events-Write-Encryption-Key"}
	DataStreamRead   = KeyLabel{"DataStream-Salt", "DataStream-Read-Encryption-Key"}
	DataStreamWrite  = KeyLabel{"DataStream-Salt", "DataStream-Write-Encryption-Key"}
)

// DeriveKey derives a KeySize key from inputKey under label.
func DeriveKey(inputKey []byte, label KeyLabel) ([]byte, error) {
	return HKDFSHA512(inputKey, []byte(label.Salt), []byte(label.Info), KeySize)
}
