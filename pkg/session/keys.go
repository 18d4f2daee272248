package session

import (
	"strconv"

	"github.com/backkem/hap/pkg/crypto"
)

// Keys holds the two directional session keys produced by pair-verify or
// transient pair-setup.
type Keys struct {
	// Read protects accessory-to-controller traffic.
	Read [crypto.KeySize]byte

	// Write protects controller-to-accessory traffic.
	Write [crypto.KeySize]byte
}

// NewKeys copies read and write into a Keys value.
func NewKeys(read, write []byte) (*Keys, error) {
	if len(read) != crypto.KeySize || len(write) != crypto.KeySize {
		return nil, ErrInvalidKey
	}
	k := &Keys{}
	copy(k.Read[:], read)
	copy(k.Write[:], write)
	return k, nil
}

// DeriveKeys derives both keys from a shared secret under the given labels.
func DeriveKeys(shared []byte, read, write crypto.KeyLabel) (*Keys, error) {
	r, err := crypto.DeriveKey(shared, read)
	if err != nil {
		return nil, err
	}
	w, err := crypto.DeriveKey(shared, write)
	if err != nil {
		return nil, err
	}
	return NewKeys(r, w)
}

// ControlKeys derives the AirPlay control channel keys.
func ControlKeys(shared []byte) (*Keys, error) {
	return DeriveKeys(shared, crypto.ControlRead, crypto.ControlWrite)
}

// MediaRemoteKeys derives the Companion-Link session keys.
func MediaRemoteKeys(shared []byte) (*Keys, error) {
	return DeriveKeys(shared, crypto.MediaRemoteRead, crypto.MediaRemoteWrite)
}

// EventKeys derives the AirPlay event channel keys. The accessory is the
// sender on this channel, so the labels are swapped.
func EventKeys(shared []byte) (*Keys, error) {
	return DeriveKeys(shared, crypto.EventsWrite, crypto.EventsRead)
}

// DataStreamKeys derives the AirPlay data channel keys for the seed
// returned by SETUP. The seed is appended to the shared secret as a
// decimal string; labels are swapped as for EventKeys.
func DataStreamKeys(shared []byte, seed uint64) (*Keys, error) {
	ikm := make([]byte, 0, len(shared)+20)
	ikm = append(ikm, shared...)
	ikm = strconv.AppendUint(ikm, seed, 10)
	return DeriveKeys(ikm, crypto.DataStreamWrite, crypto.DataStreamRead)
}

// Swap returns the keys as seen from the other end of the connection.
func (k *Keys) Swap() *Keys {
	return &Keys{Read: k.Write, Write: k.Read}
}

// ForRole returns the keys oriented for role. Keys are always derived in
// the controller orientation.
func (k *Keys) ForRole(role Role) (*Keys, error) {
	switch role {
	case RoleController:
		c := *k
		return &c, nil
	case RoleAccessory:
		return k.Swap(), nil
	default:
		return nil, ErrInvalidRole
	}
}

// Zero wipes both keys.
func (k *Keys) Zero() {
	clear(k.Read[:])
	clear(k.Write[:])
}

// IsZero reports whether both keys are all zero bytes.
func (k *Keys) IsZero() bool {
	return k.Read == [crypto.KeySize]byte{} && k.Write == [crypto.KeySize]byte{}
}
