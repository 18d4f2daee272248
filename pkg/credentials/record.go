package credentials

import (
	"encoding/hex"
	"fmt"

	"github.com/backkem/hap/pkg/securechannel/hap"
)

// credentialRecord is the serialized form of hap.Credentials.
type credentialRecord struct {
	AccessoryIdentifier string `yaml:"accessory_identifier"`
	AccessoryLTPK       string `yaml:"accessory_ltpk"`
	PairingID           string `yaml:"pairing_id"`
	PrivateKey          string `yaml:"private_key"`
	PublicKey           string `yaml:"public_key"`
}

func newCredentialRecord(c *hap.Credentials) credentialRecord {
	return credentialRecord{
		AccessoryIdentifier: c.AccessoryIdentifier,
		AccessoryLTPK:       hex.EncodeToString(c.AccessoryLTPK),
		PairingID:           string(c.PairingID),
		PrivateKey:          hex.EncodeToString(c.PrivateKey),
		PublicKey:           hex.EncodeToString(c.PublicKey),
	}
}

func (r credentialRecord) credentials() (*hap.Credentials, error) {
	ltpk, err := hex.DecodeString(r.AccessoryLTPK)
	if err != nil {
		return nil, fmt.Errorf("%w: accessory_ltpk: %v", hap.ErrInvalidCredentials, err)
	}
	priv, err := hex.DecodeString(r.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private_key: %v", hap.ErrInvalidCredentials, err)
	}
	pub, err := hex.DecodeString(r.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public_key: %v", hap.ErrInvalidCredentials, err)
	}
	c := &hap.Credentials{
		AccessoryIdentifier: r.AccessoryIdentifier,
		AccessoryLTPK:       ltpk,
		PairingID:           []byte(r.PairingID),
		PrivateKey:          priv,
		PublicKey:           pub,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// pairingRecord is the serialized form of hap.Pairing.
type pairingRecord struct {
	Identifier  string `yaml:"identifier"`
	PublicKey   string `yaml:"public_key"`
	Permissions uint8  `yaml:"permissions"`
}

func newPairingRecord(p *hap.Pairing) pairingRecord {
	return pairingRecord{
		Identifier:  p.Identifier,
		PublicKey:   hex.EncodeToString(p.PublicKey),
		Permissions: uint8(p.Permissions),
	}
}

func (r pairingRecord) pairing() (*hap.Pairing, error) {
	pub, err := hex.DecodeString(r.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public_key: %v", hap.ErrInvalidCredentials, err)
	}
	return &hap.Pairing{
		Identifier:  r.Identifier,
		PublicKey:   pub,
		Permissions: hap.Permissions(r.Permissions),
	}, nil
}

func validatePairing(p *hap.Pairing) error {
	if p == nil || p.Identifier == "" {
		return fmt.Errorf("%w: empty controller identifier", hap.ErrInvalidCredentials)
	}
	if len(p.PublicKey) != 32 {
		return fmt.Errorf("%w: controller key is %d bytes", hap.ErrInvalidCredentials, len(p.PublicKey))
	}
	return nil
}

func validateCredentials(c *hap.Credentials) error {
	if c == nil {
		return hap.ErrInvalidCredentials
	}
	return c.Validate()
}
