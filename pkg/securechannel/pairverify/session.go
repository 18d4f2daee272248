package pairverify

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/curve25519"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
)

// Session implements the pair-verify state machine for one role.
//
// Usage (Controller):
//
//	s, _ := pairverify.NewController(creds, pairverify.ChannelControl)
//	m1, _ := s.Start()
//	// send m1, receive m2
//	m3, _ := s.HandleM2(m2)
//	// send m3, receive m4
//	keys, _ := s.HandleM4(m4)
type Session struct {
	role    Role
	state   State
	channel Channel

	creds    *hap.Credentials // Controller only
	identity *hap.Identity    // Accessory only
	store    hap.PairingStore // Accessory only

	ephemeralPrivate [curve25519.ScalarSize]byte
	ephemeralPublic  []byte
	peerPublic       []byte
	sharedSecret     []byte
	encryptKey       []byte

	// secret is the X25519 shared secret kept after completion for
	// deriving secondary channel keys.
	secret []byte

	keys *session.Keys

	// For testing: injectable random source
	rand io.Reader

	mu sync.Mutex
}

// NewController creates a controller session for stored credentials.
func NewController(creds *hap.Credentials, channel Channel) (*Session, error) {
	if creds == nil {
		return nil, hap.ErrInvalidCredentials
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		role:    RoleController,
		state:   StateInit,
		channel: channel,
		creds:   creds.Clone(),
		rand:    rand.Reader,
	}, nil
}

// NewAccessory creates an accessory session that authenticates
// controllers against store.
func NewAccessory(identity *hap.Identity, store hap.PairingStore, channel Channel) (*Session, error) {
	if identity == nil {
		return nil, fmt.Errorf("pairverify: accessory identity required")
	}
	if store == nil {
		return nil, fmt.Errorf("pairverify: pairing store required")
	}
	return &Session{
		role:     RoleAccessory,
		state:    StateInit,
		channel:  channel,
		identity: identity,
		store:    store,
		rand:     rand.Reader,
	}, nil
}

// SetRandom replaces the ephemeral key source.
func (s *Session) SetRandom(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Keys returns the session keys, oriented for the local role, once the
// exchange is complete.
func (s *Session) Keys() (*session.Keys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrInvalidState
	}
	return s.keys, nil
}

// SharedSecret returns a copy of the X25519 shared secret once the
// exchange is complete. AirPlay derives event and data stream keys from it.
func (s *Session) SharedSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrInvalidState
	}
	return append([]byte(nil), s.secret...), nil
}

func (s *Session) expect(role Role, state State) error {
	if s.role != role {
		return ErrInvalidRole
	}
	if s.state != state {
		return fmt.Errorf("%w: in %s", ErrInvalidState, s.state)
	}
	return nil
}

// generateEphemeral creates the X25519 key pair for this run.
func (s *Session) generateEphemeral() error {
	if _, err := io.ReadFull(s.rand, s.ephemeralPrivate[:]); err != nil {
		return err
	}
	pub, err := curve25519.X25519(s.ephemeralPrivate[:], curve25519.Basepoint)
	if err != nil {
		return err
	}
	s.ephemeralPublic = pub
	return nil
}

// agree computes the shared secret and the M2/M3 encryption key.
func (s *Session) agree(peerPublic []byte) error {
	if len(peerPublic) != curve25519.PointSize {
		return fmt.Errorf("%w: public key is %d bytes", ErrInvalidMessage, len(peerPublic))
	}
	shared, err := curve25519.X25519(s.ephemeralPrivate[:], peerPublic)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	key, err := crypto.DeriveKey(shared, crypto.PairVerifyEncrypt)
	if err != nil {
		return err
	}
	s.peerPublic = append([]byte(nil), peerPublic...)
	s.sharedSecret = shared
	s.encryptKey = key
	return nil
}

// finish derives the channel keys and wipes handshake secrets.
func (s *Session) finish(role session.Role) error {
	keys, err := s.channel.DeriveKeys(s.sharedSecret)
	if err != nil {
		return err
	}
	local, err := keys.ForRole(role)
	if err != nil {
		return err
	}
	keys.Zero()
	s.keys = local
	s.secret = append([]byte(nil), s.sharedSecret...)
	s.state = StateComplete
	s.wipe()
	return nil
}

func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.wipe()
	if s.keys != nil {
		s.keys.Zero()
		s.keys = nil
	}
	clear(s.secret)
	s.secret = nil
	return err
}

func (s *Session) wipe() {
	clear(s.ephemeralPrivate[:])
	clear(s.sharedSecret)
	clear(s.encryptKey)
	s.sharedSecret = nil
	s.encryptKey = nil
}
