package securechannel

import (
	"fmt"
	"sync"

	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/securechannel/pairsetup"
	"github.com/backkem/hap/pkg/securechannel/pairverify"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
	"github.com/pion/logging"
)

// ResponderConfig configures the accessory side of the handshakes.
type ResponderConfig struct {
	// Identity is the accessory long-term identity. Required.
	Identity *hap.Identity

	// PIN is the setup code. Defaults to pairsetup.TransientPIN.
	PIN string

	// Store holds paired controllers. Required.
	Store hap.PairingStore

	// Channel selects the session key labels derived by pair-verify.
	Channel pairverify.Channel

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Validate checks required fields.
func (c *ResponderConfig) Validate() error {
	if c.Identity == nil {
		return fmt.Errorf("securechannel: responder identity required")
	}
	if c.Store == nil {
		return fmt.Errorf("securechannel: responder pairing store required")
	}
	return nil
}

// Responder answers pair-setup and pair-verify bodies as an accessory. An
// M1 body always starts a fresh handshake of its kind.
type Responder struct {
	config ResponderConfig
	log    logging.LeveledLogger

	mu     sync.Mutex
	setup  *pairsetup.Session
	verify *pairverify.Session
}

// NewResponder creates a responder.
func NewResponder(config ResponderConfig) (*Responder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r := &Responder{config: config}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("hap-securechannel")
	}
	return r, nil
}

// PairSetup handles one pair-setup body. result is non-nil once the
// handshake completes. When err is non-nil, reply may still hold an error
// response to send to the controller.
func (r *Responder) PairSetup(body []byte) (reply []byte, result *pairsetup.Result, err error) {
	state, err := stateOf(body)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if state == tlv8.StateM1 {
		s, err := pairsetup.NewAccessory(pairsetup.AccessoryConfig{
			Identity: r.config.Identity,
			PIN:      r.config.PIN,
			Store:    r.config.Store,
		})
		if err != nil {
			return nil, nil, err
		}
		r.setup = s
	}
	s := r.setup
	if s == nil {
		return hap.ErrorResponse(state+1, hap.ErrorCodeUnknown), nil, fmt.Errorf("%w: pair-setup %s without M1", ErrUnexpectedMessage, state)
	}

	switch state {
	case tlv8.StateM1:
		reply, err = s.HandleM1(body)
	case tlv8.StateM3:
		reply, err = s.HandleM3(body)
	case tlv8.StateM5:
		reply, err = s.HandleM5(body)
	default:
		return nil, nil, fmt.Errorf("%w: pair-setup %s", ErrUnexpectedMessage, state)
	}
	if err != nil {
		if r.log != nil {
			r.log.Debugf("pair-setup %s failed: %v", state, err)
		}
		return reply, nil, err
	}

	if s.State() == pairsetup.StateComplete {
		r.setup = nil
		result, err = s.Result()
		if r.log != nil && err == nil {
			r.log.Infof("pair-setup complete (%s)", s.Mode())
		}
	}
	return reply, result, err
}

// PairVerify handles one pair-verify body. keys is non-nil, oriented for
// the accessory, once the handshake completes.
func (r *Responder) PairVerify(body []byte) (reply []byte, keys *session.Keys, err error) {
	state, err := stateOf(body)
	if err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch state {
	case tlv8.StateM1:
		s, err := pairverify.NewAccessory(r.config.Identity, r.config.Store, r.config.Channel)
		if err != nil {
			return nil, nil, err
		}
		r.verify = s
		reply, err = s.HandleM1(body)
		if err != nil {
			r.verify = nil
		}
		return reply, nil, err
	case tlv8.StateM3:
		s := r.verify
		if s == nil {
			return hap.ErrorResponse(tlv8.StateM4, hap.ErrorCodeUnknown), nil, fmt.Errorf("%w: pair-verify M3 without M1", ErrUnexpectedMessage)
		}
		r.verify = nil
		reply, err = s.HandleM3(body)
		if err != nil {
			if r.log != nil {
				r.log.Debugf("pair-verify M3 failed: %v", err)
			}
			return reply, nil, err
		}
		keys, err = s.Keys()
		if r.log != nil && err == nil {
			r.log.Infof("pair-verify complete (%s)", r.config.Channel)
		}
		return reply, keys, err
	default:
		return nil, nil, fmt.Errorf("%w: pair-verify %s", ErrUnexpectedMessage, state)
	}
}
