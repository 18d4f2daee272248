package pairverify

import (
	"bytes"
	"fmt"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// Start returns M1 carrying a fresh ephemeral public key.
func (s *Session) Start() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleController, StateInit); err != nil {
		return nil, err
	}
	if err := s.generateEphemeral(); err != nil {
		return nil, s.fail(err)
	}

	s.state = StateWaitingM2
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM1)),
		tlv8.Bytes(tlv8.TypePublicKey, s.ephemeralPublic),
	), nil
}

// HandleM2 authenticates the accessory and returns M3. The identifier is
// compared before the signature is checked.
func (s *Session) HandleM2(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleController, StateWaitingM2); err != nil {
		return nil, err
	}

	c, err := hap.ExpectState(data, tlv8.StateM2)
	if err != nil {
		return nil, s.fail(err)
	}
	accessoryPublic, err := c.Require(tlv8.TypePublicKey)
	if err != nil {
		return nil, s.fail(err)
	}
	sealed, err := c.Require(tlv8.TypeEncryptedData)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.agree(accessoryPublic); err != nil {
		return nil, s.fail(err)
	}

	plain, err := crypto.OpenMessage(s.encryptKey, crypto.NoncePairVerifyM2, sealed)
	if err != nil {
		return nil, s.fail(err)
	}
	inner, err := tlv8.Decode(plain)
	if err != nil {
		return nil, s.fail(err)
	}
	accessoryID, err := inner.Require(tlv8.TypeIdentifier)
	if err != nil {
		return nil, s.fail(err)
	}
	signature, err := inner.Require(tlv8.TypeSignature)
	if err != nil {
		return nil, s.fail(err)
	}

	if !bytes.Equal(accessoryID, []byte(s.creds.AccessoryIdentifier)) {
		return nil, s.fail(fmt.Errorf("%w: got %q, want %q",
			hap.ErrIdentityMismatch, accessoryID, s.creds.AccessoryIdentifier))
	}
	if err := hap.Verify(s.creds.AccessoryLTPK, signature, accessoryPublic, accessoryID, s.ephemeralPublic); err != nil {
		return nil, s.fail(err)
	}

	id := s.creds.Identity()
	proof := id.Sign(s.ephemeralPublic, id.PairingID, accessoryPublic)
	m3Inner := tlv8.Encode(
		tlv8.Bytes(tlv8.TypeIdentifier, id.PairingID),
		tlv8.Bytes(tlv8.TypeSignature, proof),
	)
	m3Sealed, err := crypto.SealMessage(s.encryptKey, crypto.NoncePairVerifyM3, m3Inner)
	if err != nil {
		return nil, s.fail(err)
	}

	s.state = StateWaitingM4
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM3)),
		tlv8.Bytes(tlv8.TypeEncryptedData, m3Sealed),
	), nil
}

// HandleM4 completes the exchange and returns controller-oriented keys.
func (s *Session) HandleM4(data []byte) (*session.Keys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleController, StateWaitingM4); err != nil {
		return nil, err
	}
	if _, err := hap.ExpectState(data, tlv8.StateM4); err != nil {
		return nil, s.fail(err)
	}
	if err := s.finish(session.RoleController); err != nil {
		return nil, s.fail(err)
	}
	return s.keys, nil
}
