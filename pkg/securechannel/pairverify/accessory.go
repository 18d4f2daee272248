package pairverify

import (
	"errors"
	"fmt"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// HandleM1 answers the controller ephemeral key with M2.
func (s *Session) HandleM1(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleAccessory, StateInit); err != nil {
		return nil, err
	}

	c, err := hap.ExpectState(data, tlv8.StateM1)
	if err != nil {
		return nil, s.fail(err)
	}
	controllerPublic, err := c.Require(tlv8.TypePublicKey)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.generateEphemeral(); err != nil {
		return nil, s.fail(err)
	}
	if err := s.agree(controllerPublic); err != nil {
		return nil, s.fail(err)
	}

	id := s.identity
	signature := id.Sign(s.ephemeralPublic, id.PairingID, controllerPublic)
	inner := tlv8.Encode(
		tlv8.Bytes(tlv8.TypeIdentifier, id.PairingID),
		tlv8.Bytes(tlv8.TypeSignature, signature),
	)
	sealed, err := crypto.SealMessage(s.encryptKey, crypto.NoncePairVerifyM2, inner)
	if err != nil {
		return nil, s.fail(err)
	}

	s.state = StateWaitingM3
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM2)),
		tlv8.Bytes(tlv8.TypePublicKey, s.ephemeralPublic),
		tlv8.Bytes(tlv8.TypeEncryptedData, sealed),
	), nil
}

// HandleM3 authenticates the controller against the pairing store and
// returns M4. On failure the returned message is an Authentication error
// response that should still be sent.
func (s *Session) HandleM3(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleAccessory, StateWaitingM3); err != nil {
		return nil, err
	}
	reject := hap.ErrorResponse(tlv8.StateM4, hap.ErrorCodeAuthentication)

	c, err := hap.ExpectState(data, tlv8.StateM3)
	if err != nil {
		return nil, s.fail(err)
	}
	sealed, err := c.Require(tlv8.TypeEncryptedData)
	if err != nil {
		return nil, s.fail(err)
	}
	plain, err := crypto.OpenMessage(s.encryptKey, crypto.NoncePairVerifyM3, sealed)
	if err != nil {
		return reject, s.fail(err)
	}
	inner, err := tlv8.Decode(plain)
	if err != nil {
		return nil, s.fail(err)
	}
	controllerID, err := inner.Require(tlv8.TypeIdentifier)
	if err != nil {
		return nil, s.fail(err)
	}
	signature, err := inner.Require(tlv8.TypeSignature)
	if err != nil {
		return nil, s.fail(err)
	}

	pairing, err := s.store.LoadPairing(string(controllerID))
	if errors.Is(err, hap.ErrNotFound) {
		return reject, s.fail(fmt.Errorf("%w: %q", ErrUnknownController, controllerID))
	}
	if err != nil {
		return nil, s.fail(err)
	}
	if err := hap.Verify(pairing.PublicKey, signature, s.peerPublic, controllerID, s.ephemeralPublic); err != nil {
		return reject, s.fail(err)
	}

	if err := s.finish(session.RoleAccessory); err != nil {
		return nil, s.fail(err)
	}
	return tlv8.Encode(tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM4))), nil
}
