package pairsetup

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/crypto/srp"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// HandleM1 starts the SRP exchange and returns M2.
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
	if c.Has(tlv8.TypeFlags) {
		flags, err := c.Uint(tlv8.TypeFlags)
		if err != nil {
			return nil, s.fail(err)
		}
		if tlv8.Flags(flags)&tlv8.FlagTransient != 0 {
			s.mode = ModeTransient
		}
	}

	server, err := srp.NewServer(s.pin)
	if err != nil {
		return nil, s.fail(err)
	}
	s.server = server

	s.state = StateWaitingM3
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM2)),
		tlv8.Bytes(tlv8.TypeSalt, server.Salt()),
		tlv8.Bytes(tlv8.TypePublicKey, server.PublicKey()),
	), nil
}

// HandleM3 checks the controller proof and returns M4. On a wrong PIN the
// returned message is an Authentication error response that should still
// be sent, and the error is ErrAuthentication.
func (s *Session) HandleM3(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleAccessory, StateWaitingM3); err != nil {
		return nil, err
	}

	c, err := hap.ExpectState(data, tlv8.StateM3)
	if err != nil {
		return nil, s.fail(err)
	}
	clientPublicKey, err := c.Require(tlv8.TypePublicKey)
	if err != nil {
		return nil, s.fail(err)
	}
	clientProof, err := c.Require(tlv8.TypeProof)
	if err != nil {
		return nil, s.fail(err)
	}

	proof, key, err := s.server.Verify(clientPublicKey, clientProof)
	if errors.Is(err, srp.ErrClientProofMismatch) {
		return hap.ErrorResponse(tlv8.StateM4, hap.ErrorCodeAuthentication), s.fail(ErrAuthentication)
	}
	if err != nil {
		return nil, s.fail(err)
	}
	s.sharedKey = key

	m4 := tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM4)),
		tlv8.Bytes(tlv8.TypeProof, proof),
	)

	if s.mode == ModeTransient {
		keys, err := session.ControlKeys(key)
		if err != nil {
			return nil, s.fail(err)
		}
		local, err := keys.ForRole(session.RoleAccessory)
		if err != nil {
			return nil, s.fail(err)
		}
		s.complete(&Result{Keys: local, SharedSecret: key})
		return m4, nil
	}

	if err := s.deriveEncryptKey(); err != nil {
		return nil, s.fail(err)
	}
	s.state = StateWaitingM5
	return m4, nil
}

// HandleM5 verifies the controller identity, records the pairing and
// returns M6.
func (s *Session) HandleM5(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleAccessory, StateWaitingM5); err != nil {
		return nil, err
	}

	c, err := hap.ExpectState(data, tlv8.StateM5)
	if err != nil {
		return nil, s.fail(err)
	}
	sealed, err := c.Require(tlv8.TypeEncryptedData)
	if err != nil {
		return nil, s.fail(err)
	}
	plain, err := crypto.OpenMessage(s.encryptKey, crypto.NoncePairSetupM5, sealed)
	if err != nil {
		return hap.ErrorResponse(tlv8.StateM6, hap.ErrorCodeAuthentication), s.fail(ErrAuthentication)
	}

	controllerID, ltpk, signature, err := decodeIdentity(plain)
	if err != nil {
		return nil, s.fail(err)
	}
	deviceX, err := crypto.DeriveKey(s.sharedKey, crypto.PairSetupControllerSign)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := hap.Verify(ltpk, signature, deviceX, controllerID, ltpk); err != nil {
		return hap.ErrorResponse(tlv8.StateM6, hap.ErrorCodeAuthentication),
			s.fail(fmt.Errorf("%w: controller signature", ErrAuthentication))
	}

	pairing := &hap.Pairing{
		Identifier:  string(controllerID),
		PublicKey:   bytes.Clone(ltpk),
		Permissions: hap.PermissionAdmin,
	}
	if s.store != nil {
		if err := s.store.SavePairing(pairing); err != nil {
			return hap.ErrorResponse(tlv8.StateM6, hap.ErrorCodeMaxPeers), s.fail(err)
		}
	}

	m6, err := s.buildM6()
	if err != nil {
		return nil, s.fail(err)
	}
	s.complete(&Result{Pairing: pairing})
	return m6, nil
}

func (s *Session) buildM6() ([]byte, error) {
	accessoryX, err := crypto.DeriveKey(s.sharedKey, crypto.PairSetupAccessorySign)
	if err != nil {
		return nil, err
	}
	id := s.identity
	signature := id.Sign(accessoryX, id.PairingID, id.PublicKey)

	inner := tlv8.Encode(
		tlv8.Bytes(tlv8.TypeIdentifier, id.PairingID),
		tlv8.Bytes(tlv8.TypePublicKey, id.PublicKey),
		tlv8.Bytes(tlv8.TypeSignature, signature),
	)
	sealed, err := crypto.SealMessage(s.encryptKey, crypto.NoncePairSetupM6, inner)
	if err != nil {
		return nil, err
	}
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM6)),
		tlv8.Bytes(tlv8.TypeEncryptedData, sealed),
	), nil
}
