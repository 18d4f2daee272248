package hap

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Identity is a long-term Ed25519 key pair and the pairing identifier it
// is presented under.
type Identity struct {
	// PairingID is sent as the Identifier record. Usually a MAC address or
	// an upper-case UUID string.
	PairingID []byte

	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey

	// Name is the optional human-readable device name sent in M5.
	Name string
}

// NewIdentity creates an identity with a fresh key pair. An empty
// pairingID is replaced by a random UUID.
func NewIdentity(pairingID, name string) (*Identity, error) {
	return newIdentity(rand.Reader, pairingID, name)
}

func newIdentity(r io.Reader, pairingID, name string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, err
	}
	if pairingID == "" {
		pairingID = NewPairingID()
	}
	return &Identity{
		PairingID:  []byte(pairingID),
		PublicKey:  pub,
		PrivateKey: priv,
		Name:       name,
	}, nil
}

// IdentityFromSeed derives the key pair from a 32-byte Ed25519 seed.
func IdentityFromSeed(pairingID string, seed []byte, name string) (*Identity, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes", ErrInvalidCredentials, ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Identity{
		PairingID:  []byte(pairingID),
		PublicKey:  priv.Public().(ed25519.PublicKey),
		PrivateKey: priv,
		Name:       name,
	}, nil
}

// NewPairingID returns a random upper-case UUID.
func NewPairingID() string {
	return strings.ToUpper(uuid.New().String())
}

// Sign signs parts concatenated in order.
func (id *Identity) Sign(parts ...[]byte) []byte {
	return ed25519.Sign(id.PrivateKey, bytes.Join(parts, nil))
}

// Verify checks an Ed25519 signature over parts concatenated in order.
func Verify(publicKey, signature []byte, parts ...[]byte) error {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(publicKey, bytes.Join(parts, nil), signature) {
		return ErrInvalidSignature
	}
	return nil
}
