// Package securechannel drives the HAP pairing handshakes over a
// request/response channel.
//
// The state machines in pairsetup and pairverify are transport-free; a
// Channel carries their bodies to the accessory and returns the replies.
// Setup and Verify run the controller side to completion, and Responder
// serves the accessory side.
//
//	Controller                          Accessory
//	Setup(ctx, ch, cfg)
//	  M1 --ch.PairSetup-->              Responder.PairSetup
//	  M2 <---------------
//	  ...                               (M3..M6)
//	Verify(ctx, ch, creds, channel)
//	  M1 --ch.PairVerify->              Responder.PairVerify
//	  ...                               (M2..M4)
//	session.Keys                        session.Keys (mirrored)
//
// Every controller failure is returned as a *HandshakeError naming the
// phase and step, wrapping the cause. Nothing is retried.
package securechannel

import (
	"context"
	"fmt"

	"github.com/backkem/hap/pkg/securechannel/pairsetup"
	"github.com/backkem/hap/pkg/securechannel/pairverify"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// Channel carries handshake bodies to an accessory.
type Channel interface {
	// PairSetup sends a pair-setup body and returns the accessory reply.
	PairSetup(ctx context.Context, body []byte) ([]byte, error)

	// PairVerify sends a pair-verify body and returns the accessory reply.
	PairVerify(ctx context.Context, body []byte) ([]byte, error)
}

// Setup runs pair-setup as controller. A PIN pairing returns credentials;
// a transient pairing returns session keys and the shared secret.
func Setup(ctx context.Context, ch Channel, cfg pairsetup.Config) (*pairsetup.Result, error) {
	fail := func(step tlv8.State, err error) (*pairsetup.Result, error) {
		return nil, &HandshakeError{Phase: PhasePairSetup, Step: step, Err: err}
	}

	s, err := pairsetup.NewController(cfg)
	if err != nil {
		return fail(tlv8.StateM1, err)
	}

	m1, err := s.Start()
	if err != nil {
		return fail(tlv8.StateM1, err)
	}
	m2, err := ch.PairSetup(ctx, m1)
	if err != nil {
		return fail(tlv8.StateM1, err)
	}

	m3, err := s.HandleM2(m2)
	if err != nil {
		return fail(tlv8.StateM2, err)
	}
	m4, err := ch.PairSetup(ctx, m3)
	if err != nil {
		return fail(tlv8.StateM3, err)
	}

	m5, err := s.HandleM4(m4)
	if err != nil {
		return fail(tlv8.StateM4, err)
	}
	if m5 == nil {
		return s.Result()
	}
	m6, err := ch.PairSetup(ctx, m5)
	if err != nil {
		return fail(tlv8.StateM5, err)
	}

	if err := s.HandleM6(m6); err != nil {
		return fail(tlv8.StateM6, err)
	}
	return s.Result()
}

// VerifyResult is the outcome of a controller pair-verify.
type VerifyResult struct {
	// Keys are oriented for the controller.
	Keys *session.Keys

	// SharedSecret is the X25519 shared secret, the input for secondary
	// channel keys.
	SharedSecret []byte
}

// Zero wipes the keys and the shared secret.
func (r *VerifyResult) Zero() {
	if r.Keys != nil {
		r.Keys.Zero()
	}
	clear(r.SharedSecret)
}

// Verify runs pair-verify as controller and returns keys in the
// controller orientation, derived for channel.
func Verify(ctx context.Context, ch Channel, creds *hap.Credentials, channel pairverify.Channel) (*session.Keys, error) {
	res, err := VerifyShared(ctx, ch, creds, channel)
	if err != nil {
		return nil, err
	}
	clear(res.SharedSecret)
	return res.Keys, nil
}

// VerifyShared runs pair-verify like Verify and also returns the shared
// secret.
func VerifyShared(ctx context.Context, ch Channel, creds *hap.Credentials, channel pairverify.Channel) (*VerifyResult, error) {
	fail := func(step tlv8.State, err error) (*VerifyResult, error) {
		return nil, &HandshakeError{Phase: PhasePairVerify, Step: step, Err: err}
	}
	if creds == nil {
		return fail(tlv8.StateM1, ErrNoCredentials)
	}

	s, err := pairverify.NewController(creds, channel)
	if err != nil {
		return fail(tlv8.StateM1, err)
	}

	m1, err := s.Start()
	if err != nil {
		return fail(tlv8.StateM1, err)
	}
	m2, err := ch.PairVerify(ctx, m1)
	if err != nil {
		return fail(tlv8.StateM1, err)
	}

	m3, err := s.HandleM2(m2)
	if err != nil {
		return fail(tlv8.StateM2, err)
	}
	m4, err := ch.PairVerify(ctx, m3)
	if err != nil {
		return fail(tlv8.StateM3, err)
	}

	keys, err := s.HandleM4(m4)
	if err != nil {
		return fail(tlv8.StateM4, err)
	}
	shared, err := s.SharedSecret()
	if err != nil {
		return fail(tlv8.StateM4, err)
	}
	return &VerifyResult{Keys: keys, SharedSecret: shared}, nil
}

// stateOf returns the State record of a handshake body.
func stateOf(body []byte) (tlv8.State, error) {
	c, err := tlv8.Decode(body)
	if err != nil {
		return 0, err
	}
	b, err := c.Byte(tlv8.TypeState)
	if err != nil {
		return 0, fmt.Errorf("%w: missing state", ErrUnexpectedMessage)
	}
	return tlv8.State(b), nil
}
