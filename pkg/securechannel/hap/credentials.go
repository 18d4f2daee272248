package hap

import (
	"bytes"
	"crypto/ed25519"
	"fmt"
)

// Credentials are the output of pair-setup and the input of pair-verify.
type Credentials struct {
	// AccessoryIdentifier is the identifier the accessory presented in M6.
	AccessoryIdentifier string

	// AccessoryLTPK is the accessory's long-term Ed25519 public key.
	AccessoryLTPK []byte

	// PairingID, PrivateKey and PublicKey are the controller identity used
	// during pair-setup.
	PairingID  []byte
	PrivateKey []byte
	PublicKey  []byte
}

// Validate checks field presence and sizes.
func (c *Credentials) Validate() error {
	switch {
	case c.AccessoryIdentifier == "":
		return fmt.Errorf("%w: empty accessory identifier", ErrInvalidCredentials)
	case len(c.AccessoryLTPK) != ed25519.PublicKeySize:
		return fmt.Errorf("%w: accessory key is %d bytes", ErrInvalidCredentials, len(c.AccessoryLTPK))
	case len(c.PairingID) == 0:
		return fmt.Errorf("%w: empty pairing id", ErrInvalidCredentials)
	case len(c.PrivateKey) != ed25519.PrivateKeySize:
		return fmt.Errorf("%w: private key is %d bytes", ErrInvalidCredentials, len(c.PrivateKey))
	case len(c.PublicKey) != ed25519.PublicKeySize:
		return fmt.Errorf("%w: public key is %d bytes", ErrInvalidCredentials, len(c.PublicKey))
	}
	return nil
}

// Identity returns the controller identity embedded in the credentials.
func (c *Credentials) Identity() *Identity {
	return &Identity{
		PairingID:  bytes.Clone(c.PairingID),
		PublicKey:  ed25519.PublicKey(bytes.Clone(c.PublicKey)),
		PrivateKey: ed25519.PrivateKey(bytes.Clone(c.PrivateKey)),
	}
}

// Clone returns a deep copy.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	return &Credentials{
		AccessoryIdentifier: c.AccessoryIdentifier,
		AccessoryLTPK:       bytes.Clone(c.AccessoryLTPK),
		PairingID:           bytes.Clone(c.PairingID),
		PrivateKey:          bytes.Clone(c.PrivateKey),
		PublicKey:           bytes.Clone(c.PublicKey),
	}
}

// Pairing is the accessory-side record of a paired controller.
type Pairing struct {
	Identifier  string
	PublicKey   []byte
	Permissions Permissions
}

// Clone returns a deep copy.
func (p *Pairing) Clone() *Pairing {
	if p == nil {
		return nil
	}
	return &Pairing{
		Identifier:  p.Identifier,
		PublicKey:   bytes.Clone(p.PublicKey),
		Permissions: p.Permissions,
	}
}

// CredentialStore persists controller-side credentials keyed by accessory
// identifier. The core never writes credentials on its own; callers pass a
// store to the pairing driver.
//
// All methods must be safe for concurrent use.
type CredentialStore interface {
	// LoadCredentials returns ErrNotFound for unknown identifiers.
	LoadCredentials(accessoryID string) (*Credentials, error)
	SaveCredentials(c *Credentials) error
	DeleteCredentials(accessoryID string) error
	ListCredentials() ([]*Credentials, error)
}

// PairingStore persists accessory-side pairings keyed by controller
// identifier.
//
// All methods must be safe for concurrent use.
type PairingStore interface {
	// LoadPairing returns ErrNotFound for unknown identifiers.
	LoadPairing(controllerID string) (*Pairing, error)
	SavePairing(p *Pairing) error
	DeletePairing(controllerID string) error
	ListPairings() ([]*Pairing, error)
}
