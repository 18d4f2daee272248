// Package srp adapts SRP-6a to the HAP pair-setup profile.
//
// HAP uses the RFC 5054 3072-bit group with SHA-512, the fixed username
// "Pair-Setup" and the RFC 2945 key derivation:
//
//	x  = H(s | H(I | ":" | P))
//	M1 = H(H(N) xor H(g), H(I), s, A, B, K)
//	M2 = H(A, M1, K)
//
// K is the full SHA-512 digest of the premaster secret (64 bytes). It is
// handed to HKDF unmodified.
package srp

import (
	"crypto/sha512"
	"errors"

	tsrp "github.com/tadglines/go-pkgs/crypto/srp"
)

const (
	// Group is the SRP group name.
	Group = "rfc5054.3072"

	// Username is the fixed SRP identity used by pair-setup.
	Username = "Pair-Setup"

	// SaltSize is the salt length generated by the accessory role.
	SaltSize = 16

	// KeySize is the length of the shared key K.
	KeySize = sha512.Size

	// ProofSize is the length of M1 and M2.
	ProofSize = sha512.Size
)

// Errors.
var (
	ErrServerProofMismatch = errors.New("srp: server proof mismatch")
	ErrClientProofMismatch = errors.New("srp: client proof mismatch")
	ErrInvalidPublicKey    = errors.New("srp: invalid public key")
	ErrInvalidSalt         = errors.New("srp: invalid salt")
	ErrInvalidKeyLength    = errors.New("srp: unexpected shared key length")
	ErrInvalidState        = errors.New("srp: invalid state")
)

// keyDerivationRFC2945 returns x = H(s | H(I | ":" | P)).
func keyDerivationRFC2945(username []byte) tsrp.KeyDerivationFunc {
	return func(salt, password []byte) []byte {
		h1 := sha512.New()
		h1.Write(username)
		h1.Write([]byte(":"))
		h1.Write(password)

		h2 := sha512.New()
		h2.Write(salt)
		h2.Write(h1.Sum(nil))
		return h2.Sum(nil)
	}
}

func newSRP() (*tsrp.SRP, error) {
	s, err := tsrp.NewSRP(Group, sha512.New, keyDerivationRFC2945([]byte(Username)))
	if err != nil {
		return nil, err
	}
	s.SaltLength = SaltSize
	return s, nil
}

// Client is the controller half of the exchange.
type Client struct {
	session *tsrp.ClientSession
	key     []byte
	proof   []byte
}

// NewClient creates a client for the given PIN.
func NewClient(pin string) (*Client, error) {
	s, err := newSRP()
	if err != nil {
		return nil, err
	}
	return &Client{session: s.NewClientSession([]byte(Username), []byte(pin))}, nil
}

// Compute processes the accessory salt and public key B and returns the
// client public key A and proof M1.
func (c *Client) Compute(salt, serverPublicKey []byte) (publicKey, proof []byte, err error) {
	if len(salt) == 0 {
		return nil, nil, ErrInvalidSalt
	}
	if len(serverPublicKey) == 0 {
		return nil, nil, ErrInvalidPublicKey
	}
	key, err := c.session.ComputeKey(salt, serverPublicKey)
	if err != nil {
		return nil, nil, ErrInvalidPublicKey
	}
	if len(key) != KeySize {
		return nil, nil, ErrInvalidKeyLength
	}
	c.key = key
	c.proof = c.session.ComputeAuthenticator()
	return c.session.GetA(), c.proof, nil
}

// Verify checks the accessory proof M2 and returns the shared key K.
func (c *Client) Verify(serverProof []byte) ([]byte, error) {
	if c.key == nil {
		return nil, ErrInvalidState
	}
	if !c.session.VerifyServerAuthenticator(serverProof) {
		return nil, ErrServerProofMismatch
	}
	return append([]byte(nil), c.key...), nil
}

// Server is the accessory half of the exchange.
type Server struct {
	session *tsrp.ServerSession
	salt    []byte
}

// NewServer creates an accessory session for pin with a fresh random salt.
func NewServer(pin string) (*Server, error) {
	s, err := newSRP()
	if err != nil {
		return nil, err
	}
	salt, verifier, err := s.ComputeVerifier([]byte(pin))
	if err != nil {
		return nil, err
	}
	return &Server{
		session: s.NewServerSession([]byte(Username), salt, verifier),
		salt:    salt,
	}, nil
}

// Salt returns the salt sent in M2.
func (s *Server) Salt() []byte {
	return append([]byte(nil), s.salt...)
}

// PublicKey returns the accessory public key B.
func (s *Server) PublicKey() []byte {
	return s.session.GetB()
}

// Verify processes the client public key A and proof M1. It returns the
// accessory proof M2 and the shared key K.
func (s *Server) Verify(clientPublicKey, clientProof []byte) (proof, key []byte, err error) {
	if len(clientPublicKey) == 0 {
		return nil, nil, ErrInvalidPublicKey
	}
	// The key must be computed before the client proof can be checked.
	key, err = s.session.ComputeKey(clientPublicKey)
	if err != nil {
		return nil, nil, ErrInvalidPublicKey
	}
	if !s.session.VerifyClientAuthenticator(clientProof) {
		return nil, nil, ErrClientProofMismatch
	}
	return s.session.ComputeAuthenticator(clientProof), append([]byte(nil), key...), nil
}
