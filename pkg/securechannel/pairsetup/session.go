package pairsetup

import (
	"fmt"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/crypto/srp"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
)

// NameCodec encodes the controller name carried in the M5 Name record.
// AirPlay and Companion-Link expect an OPACK dictionary {"name": name}.
type NameCodec func(name string) ([]byte, error)

// Config configures the controller role.
type Config struct {
	// Identity is the controller long-term identity. A fresh identity
	// with a random pairing id is created when nil.
	Identity *hap.Identity

	// PIN is the setup code shown by the accessory. Defaults to
	// TransientPIN unless PromptPIN is set.
	PIN string

	// PromptPIN, when set and PIN is empty, is called on receipt of M2.
	// The accessory displays its code after answering M1.
	PromptPIN func() (string, error)

	// Mode selects full or transient pairing.
	Mode Mode

	// NameCodec encodes Identity.Name for M5. The Name record is omitted
	// when either is empty.
	NameCodec NameCodec
}

func (c *Config) applyDefaults() error {
	if c.PIN == "" && c.PromptPIN == nil {
		c.PIN = TransientPIN
	}
	if c.Identity == nil {
		id, err := hap.NewIdentity("", "")
		if err != nil {
			return err
		}
		c.Identity = id
	}
	return nil
}

// AccessoryConfig configures the accessory role.
type AccessoryConfig struct {
	// Identity is the accessory long-term identity. Required.
	Identity *hap.Identity

	// PIN is the setup code. Defaults to TransientPIN.
	PIN string

	// Store receives the controller pairing after M5. Optional.
	Store hap.PairingStore
}

// Result is the outcome of a completed exchange.
type Result struct {
	// Credentials is set on the controller after a PIN pairing.
	Credentials *hap.Credentials

	// Pairing is set on the accessory after a PIN pairing.
	Pairing *hap.Pairing

	// Keys is set after a transient pairing. Keys are oriented for the
	// local role.
	Keys *session.Keys

	// SharedSecret is the SRP key K after a transient pairing.
	SharedSecret []byte
}

// Session implements the pair-setup state machine for one role.
//
// Usage (Controller):
//
//	s, _ := pairsetup.NewController(pairsetup.Config{PIN: pin})
//	m1, _ := s.Start()
//	// send m1, receive m2
//	m3, _ := s.HandleM2(m2)
//	// send m3, receive m4
//	m5, _ := s.HandleM4(m4) // nil in transient mode
//	// send m5, receive m6
//	_ = s.HandleM6(m6)
//	res, _ := s.Result()
//
// Usage (Accessory):
//
//	s, _ := pairsetup.NewAccessory(pairsetup.AccessoryConfig{Identity: id})
//	m2, _ := s.HandleM1(m1)
//	m4, _ := s.HandleM3(m3)
//	m6, _ := s.HandleM5(m5)
type Session struct {
	role  Role
	state State
	mode  Mode

	identity  *hap.Identity
	pin       string
	prompt    func() (string, error)
	nameCodec NameCodec
	store     hap.PairingStore

	client *srp.Client // Controller only
	server *srp.Server // Accessory only

	// sharedKey is the SRP key K; encryptKey protects M5 and M6.
	sharedKey  []byte
	encryptKey []byte

	result *Result

	mu sync.Mutex
}

// NewController creates a controller session.
func NewController(cfg Config) (*Session, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if cfg.Mode != ModePIN && cfg.Mode != ModeTransient {
		return nil, fmt.Errorf("pairsetup: unknown mode %d", cfg.Mode)
	}
	return &Session{
		role:      RoleController,
		state:     StateInit,
		mode:      cfg.Mode,
		identity:  cfg.Identity,
		pin:       cfg.PIN,
		prompt:    cfg.PromptPIN,
		nameCodec: cfg.NameCodec,
	}, nil
}

// NewAccessory creates an accessory session. The mode is taken from the
// Flags record in M1.
func NewAccessory(cfg AccessoryConfig) (*Session, error) {
	if cfg.Identity == nil {
		return nil, fmt.Errorf("pairsetup: accessory identity required")
	}
	if cfg.PIN == "" {
		cfg.PIN = TransientPIN
	}
	return &Session{
		role:     RoleAccessory,
		state:    StateInit,
		identity: cfg.Identity,
		pin:      cfg.PIN,
		store:    cfg.Store,
	}, nil
}

// Role returns the session role.
func (s *Session) Role() Role {
	return s.role
}

// Mode returns the pairing mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the local long-term identity.
func (s *Session) Identity() *hap.Identity {
	return s.identity
}

// Result returns the outcome once the exchange is complete.
func (s *Session) Result() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrInvalidState
	}
	return s.result, nil
}

// expect checks role and state before handling a message.
func (s *Session) expect(role Role, state State) error {
	if s.role != role {
		return ErrInvalidRole
	}
	if s.state != state {
		return fmt.Errorf("%w: in %s", ErrInvalidState, s.state)
	}
	return nil
}

// fail moves the session to StateFailed and wipes all secrets.
func (s *Session) fail(err error) error {
	s.state = StateFailed
	s.wipe()
	return err
}

func (s *Session) wipe() {
	s.client = nil
	s.server = nil
	clear(s.sharedKey)
	clear(s.encryptKey)
	s.sharedKey = nil
	s.encryptKey = nil
}

// complete records the result and drops handshake secrets.
func (s *Session) complete(res *Result) {
	s.result = res
	s.state = StateComplete
	s.client = nil
	s.server = nil
	clear(s.encryptKey)
	s.encryptKey = nil
	// K is handed to the caller in transient mode.
	if res.SharedSecret == nil {
		clear(s.sharedKey)
	}
	s.sharedKey = nil
}

// deriveEncryptKey derives the M5/M6 key from K.
func (s *Session) deriveEncryptKey() error {
	k, err := crypto.DeriveKey(s.sharedKey, crypto.PairSetupEncrypt)
	if err != nil {
		return err
	}
	s.encryptKey = k
	return nil
}
