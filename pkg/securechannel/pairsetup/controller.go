package pairsetup

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/crypto/srp"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// Start returns M1.
func (s *Session) Start() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleController, StateInit); err != nil {
		return nil, err
	}

	entries := []tlv8.Entry{
		tlv8.Byte(tlv8.TypeMethod, uint8(tlv8.MethodPairSetup)),
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM1)),
	}
	if s.mode == ModeTransient {
		entries = append(entries, tlv8.Byte(tlv8.TypeFlags, uint8(tlv8.FlagTransient)))
	}

	s.state = StateWaitingM2
	return tlv8.Encode(entries...), nil
}

// HandleM2 processes the accessory salt and public key and returns M3.
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
	salt, err := c.Require(tlv8.TypeSalt)
	if err != nil {
		return nil, s.fail(err)
	}
	serverPublicKey, err := c.Require(tlv8.TypePublicKey)
	if err != nil {
		return nil, s.fail(err)
	}

	if s.pin == "" && s.prompt != nil {
		pin, err := s.prompt()
		if err != nil {
			return nil, s.fail(err)
		}
		s.pin = pin
	}
	client, err := srp.NewClient(s.pin)
	if err != nil {
		return nil, s.fail(err)
	}
	publicKey, proof, err := client.Compute(salt, serverPublicKey)
	if err != nil {
		return nil, s.fail(err)
	}
	s.client = client

	s.state = StateWaitingM4
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM3)),
		tlv8.Bytes(tlv8.TypePublicKey, publicKey),
		tlv8.Bytes(tlv8.TypeProof, proof),
	), nil
}

// HandleM4 verifies the accessory proof. In transient mode the session
// completes and nil is returned; otherwise it returns M5.
func (s *Session) HandleM4(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleController, StateWaitingM4); err != nil {
		return nil, err
	}

	c, err := hap.ExpectState(data, tlv8.StateM4)
	if err != nil {
		return nil, s.fail(err)
	}
	serverProof, err := c.Require(tlv8.TypeProof)
	if err != nil {
		return nil, s.fail(err)
	}
	key, err := s.client.Verify(serverProof)
	if err != nil {
		return nil, s.fail(err)
	}
	s.sharedKey = key

	if s.mode == ModeTransient {
		keys, err := session.ControlKeys(key)
		if err != nil {
			return nil, s.fail(err)
		}
		s.complete(&Result{Keys: keys, SharedSecret: key})
		return nil, nil
	}

	if err := s.deriveEncryptKey(); err != nil {
		return nil, s.fail(err)
	}
	m5, err := s.buildM5()
	if err != nil {
		return nil, s.fail(err)
	}

	s.state = StateWaitingM6
	return m5, nil
}

func (s *Session) buildM5() ([]byte, error) {
	deviceX, err := crypto.DeriveKey(s.sharedKey, crypto.PairSetupControllerSign)
	if err != nil {
		return nil, err
	}
	id := s.identity
	signature := id.Sign(deviceX, id.PairingID, id.PublicKey)

	inner := []tlv8.Entry{
		tlv8.Bytes(tlv8.TypeIdentifier, id.PairingID),
		tlv8.Bytes(tlv8.TypePublicKey, id.PublicKey),
		tlv8.Bytes(tlv8.TypeSignature, signature),
	}
	if id.Name != "" && s.nameCodec != nil {
		name, err := s.nameCodec(id.Name)
		if err != nil {
			return nil, fmt.Errorf("pairsetup: encode name: %w", err)
		}
		inner = append(inner, tlv8.Bytes(tlv8.TypeName, name))
	}

	sealed, err := crypto.SealMessage(s.encryptKey, crypto.NoncePairSetupM5, tlv8.Encode(inner...))
	if err != nil {
		return nil, err
	}
	return tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM5)),
		tlv8.Bytes(tlv8.TypeEncryptedData, sealed),
	), nil
}

// HandleM6 verifies the accessory identity and completes the session with
// long-term credentials.
func (s *Session) HandleM6(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(RoleController, StateWaitingM6); err != nil {
		return err
	}

	c, err := hap.ExpectState(data, tlv8.StateM6)
	if err != nil {
		return s.fail(err)
	}
	sealed, err := c.Require(tlv8.TypeEncryptedData)
	if err != nil {
		return s.fail(err)
	}
	plain, err := crypto.OpenMessage(s.encryptKey, crypto.NoncePairSetupM6, sealed)
	if err != nil {
		return s.fail(err)
	}

	accessoryID, ltpk, signature, err := decodeIdentity(plain)
	if err != nil {
		return s.fail(err)
	}

	accessoryX, err := crypto.DeriveKey(s.sharedKey, crypto.PairSetupAccessorySign)
	if err != nil {
		return s.fail(err)
	}
	if err := hap.Verify(ltpk, signature, accessoryX, accessoryID, ltpk); err != nil {
		return s.fail(err)
	}

	id := s.identity
	s.complete(&Result{Credentials: &hap.Credentials{
		AccessoryIdentifier: string(accessoryID),
		AccessoryLTPK:       bytes.Clone(ltpk),
		PairingID:           bytes.Clone(id.PairingID),
		PrivateKey:          bytes.Clone(id.PrivateKey),
		PublicKey:           bytes.Clone(id.PublicKey),
	}})
	return nil
}

// decodeIdentity extracts the identifier, public key and signature from
// a decrypted M5 or M6 sub-TLV.
func decodeIdentity(plain []byte) (id, publicKey, signature []byte, err error) {
	inner, err := tlv8.Decode(plain)
	if err != nil {
		return nil, nil, nil, err
	}
	if id, err = inner.Require(tlv8.TypeIdentifier); err != nil {
		return nil, nil, nil, err
	}
	if publicKey, err = inner.Require(tlv8.TypePublicKey); err != nil {
		return nil, nil, nil, err
	}
	if signature, err = inner.Require(tlv8.TypeSignature); err != nil {
		return nil, nil, nil, err
	}
	if len(publicKey) != ed25519.PublicKeySize {
		return nil, nil, nil, fmt.Errorf("%w: public key is %d bytes", ErrInvalidMessage, len(publicKey))
	}
	return id, publicKey, signature, nil
}
