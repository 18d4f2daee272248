// Package pairsetup implements the HAP pair-setup exchange (SRP-6a with
// Ed25519 long-term key exchange) for both the controller and accessory
// roles.
//
// Protocol Flow:
//
//	Controller                                   Accessory
//	    |                                            |
//	    |------ M1 (Method, State, [Flags]) -------->|
//	    |<----- M2 (State, Salt, PublicKey B) -------|
//	    |                                            |
//	    |------ M3 (State, PublicKey A, Proof) ----->|
//	    |<----- M4 (State, Proof) -------------------|
//	    |                                            |
//	    |   [transient: stop, derive Control keys]   |
//	    |                                            |
//	    |------ M5 (State, EncryptedData) ---------->|
//	    |<----- M6 (State, EncryptedData) -----------|
//
// M5 carries the controller identifier, Ed25519 public key, and a signature
// over X || identifier || key, where X is derived from the SRP key K. M6
// carries the same for the accessory. Both are sealed with
// ChaCha20-Poly1305 under a key derived from K.
//
// Transient pairing sends Flags=Transient in M1 and ends after M4 with
// session keys instead of long-term credentials.
package pairsetup

import "errors"

// TransientPIN is the PIN used when no PIN is configured. AirPlay
// transient pairing and Companion-Link pairing without a displayed PIN
// both use it.
const TransientPIN = "3939"

// Errors.
var (
	// ErrInvalidState is returned when a message arrives in the wrong state.
	ErrInvalidState = errors.New("pairsetup: invalid state")

	// ErrInvalidRole is returned when an operation is called on the wrong
	// role.
	ErrInvalidRole = errors.New("pairsetup: invalid role")

	// ErrInvalidMessage is returned for structurally invalid messages.
	ErrInvalidMessage = errors.New("pairsetup: invalid message")

	// ErrAuthentication is returned by the accessory role when the
	// controller proof or signature does not verify.
	ErrAuthentication = errors.New("pairsetup: authentication failed")
)
