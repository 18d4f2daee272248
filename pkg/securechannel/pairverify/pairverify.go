// Package pairverify implements the HAP pair-verify exchange, which turns
// stored long-term credentials into fresh session keys.
//
// Protocol Flow:
//
//	Controller                                   Accessory
//	    |                                            |
//	    |------ M1 (State, PublicKey) -------------->|  X25519 ephemeral
//	    |<----- M2 (State, PublicKey, EncData) ------|  {Identifier, Signature}
//	    |                                            |
//	    |------ M3 (State, EncData) ---------------->|  {Identifier, Signature}
//	    |<----- M4 (State) --------------------------|
//
// Both sides derive the M2/M3 key from the X25519 shared secret with
// Pair-Verify-Encrypt. After M4 the session keys are derived from the same
// shared secret with the salts of the selected Channel.
package pairverify

import (
	"errors"

	"github.com/backkem/hap/pkg/session"
)

// Errors.
var (
	ErrInvalidState   = errors.New("pairverify: invalid state")
	ErrInvalidRole    = errors.New("pairverify: invalid role")
	ErrInvalidMessage = errors.New("pairverify: invalid message")

	// ErrUnknownController is returned by the accessory when the M3
	// identifier has no stored pairing.
	ErrUnknownController = errors.New("pairverify: unknown controller")
)

// Channel selects the salts used for the final session keys.
type Channel int

const (
	// ChannelControl derives AirPlay Control-Salt keys.
	ChannelControl Channel = iota

	// ChannelMediaRemote derives Companion-Link MediaRemote-Salt keys.
	ChannelMediaRemote
)

// String returns the channel name.
func (c Channel) String() string {
	switch c {
	case ChannelControl:
		return "Control"
	case ChannelMediaRemote:
		return "MediaRemote"
	default:
		return "Unknown"
	}
}

// DeriveKeys derives controller-oriented session keys for the channel.
func (c Channel) DeriveKeys(shared []byte) (*session.Keys, error) {
	switch c {
	case ChannelControl:
		return session.ControlKeys(shared)
	case ChannelMediaRemote:
		return session.MediaRemoteKeys(shared)
	default:
		return nil, errors.New("pairverify: unknown channel")
	}
}

// Role is the participant role.
type Role int

const (
	RoleController Role = iota
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

// State is the pair-verify state machine position.
type State int

const (
	StateInit      State = iota
	StateWaitingM2       // Controller: sent M1
	StateWaitingM3       // Accessory: sent M2
	StateWaitingM4       // Controller: sent M3
	StateComplete
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingM2:
		return "WaitingM2"
	case StateWaitingM3:
		return "WaitingM3"
	case StateWaitingM4:
		return "WaitingM4"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
