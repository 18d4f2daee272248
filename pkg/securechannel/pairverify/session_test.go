package pairverify

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/backkem/hap/pkg/credentials"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/tlv8"
)

const (
	accessorySeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	accessoryID   = "AA:BB:CC:DD:EE:FF"

	// RFC 7748 Section 6.1.
	alicePrivate = "77076d0a7318a57d3c16c17251b26645df4c2f87ebc0992ab177fba51db92c2a"
	alicePublic  = "8520f0098930a754748b7ddcb43ef75a0dbf3a0d26381af4eba4a98eaa9b4e6a"
)

type fixture struct {
	accessory  *hap.Identity
	controller *hap.Identity
	creds      *hap.Credentials
	store      *credentials.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seed, _ := hex.DecodeString(accessorySeed)
	acc, err := hap.IdentityFromSeed(accessoryID, seed, "")
	if err != nil {
		t.Fatalf("IdentityFromSeed() error = %v", err)
	}
	ctrl, err := hap.NewIdentity("", "")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}

	store := credentials.NewMemoryStore()
	if err := store.SavePairing(&hap.Pairing{
		Identifier:  string(ctrl.PairingID),
		PublicKey:   ctrl.PublicKey,
		Permissions: hap.PermissionAdmin,
	}); err != nil {
		t.Fatalf("SavePairing() error = %v", err)
	}

	return &fixture{
		accessory:  acc,
		controller: ctrl,
		store:      store,
		creds: &hap.Credentials{
			AccessoryIdentifier: accessoryID,
			AccessoryLTPK:       acc.PublicKey,
			PairingID:           ctrl.PairingID,
			PrivateKey:          ctrl.PrivateKey,
			PublicKey:           ctrl.PublicKey,
		},
	}
}

func (f *fixture) sessions(t *testing.T, channel Channel) (*Session, *Session) {
	t.Helper()
	ctrl, err := NewController(f.creds, channel)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	acc, err := NewAccessory(f.accessory, f.store, channel)
	if err != nil {
		t.Fatalf("NewAccessory() error = %v", err)
	}
	return ctrl, acc
}

func TestPairVerify_Channels(t *testing.T) {
	f := newFixture(t)

	for _, channel := range []Channel{ChannelControl, ChannelMediaRemote} {
		t.Run(channel.String(), func(t *testing.T) {
			ctrl, acc := f.sessions(t, channel)

			m1, err := ctrl.Start()
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			m2, err := acc.HandleM1(m1)
			if err != nil {
				t.Fatalf("HandleM1() error = %v", err)
			}
			m3, err := ctrl.HandleM2(m2)
			if err != nil {
				t.Fatalf("HandleM2() error = %v", err)
			}
			m4, err := acc.HandleM3(m3)
			if err != nil {
				t.Fatalf("HandleM3() error = %v", err)
			}
			keys, err := ctrl.HandleM4(m4)
			if err != nil {
				t.Fatalf("HandleM4() error = %v", err)
			}

			accKeys, err := acc.Keys()
			if err != nil {
				t.Fatalf("accessory Keys() error = %v", err)
			}
			if keys.Write != accKeys.Read || keys.Read != accKeys.Write {
				t.Error("accessory keys are not the mirror of controller keys")
			}
			if keys.IsZero() || keys.Read == keys.Write {
				t.Error("degenerate session keys")
			}

			cs, err := ctrl.SharedSecret()
			if err != nil {
				t.Fatalf("SharedSecret() error = %v", err)
			}
			as, _ := acc.SharedSecret()
			if len(cs) != 32 || !bytes.Equal(cs, as) {
				t.Error("shared secrets differ")
			}
		})
	}
}

func TestPairVerify_ChannelsDiffer(t *testing.T) {
	shared := bytes.Repeat([]byte{0x42}, 32)
	control, _ := ChannelControl.DeriveKeys(shared)
	media, _ := ChannelMediaRemote.DeriveKeys(shared)
	if control.Read == media.Read || control.Write == media.Write {
		t.Error("Control and MediaRemote keys should differ")
	}
	if _, err := Channel(9).DeriveKeys(shared); err == nil {
		t.Error("unknown channel should fail")
	}
}

func TestPairVerify_IdentityMismatchBeforeSignature(t *testing.T) {
	f := newFixture(t)

	// Both the identifier and the key are wrong; the identifier must be
	// reported.
	other, _ := hap.NewIdentity("", "")
	creds := f.creds.Clone()
	creds.AccessoryIdentifier = "11:22:33:44:55:66"
	creds.AccessoryLTPK = other.PublicKey

	ctrl, _ := NewController(creds, ChannelControl)
	acc, _ := NewAccessory(f.accessory, f.store, ChannelControl)

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	_, err := ctrl.HandleM2(m2)
	if !errors.Is(err, hap.ErrIdentityMismatch) {
		t.Fatalf("HandleM2() error = %v, want ErrIdentityMismatch", err)
	}
	if errors.Is(err, hap.ErrInvalidSignature) {
		t.Error("signature error reported for identity mismatch")
	}
	if ctrl.State() != StateFailed {
		t.Errorf("state = %s, want Failed", ctrl.State())
	}
	if _, err := ctrl.Keys(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Keys() error = %v, want ErrInvalidState", err)
	}
}

func TestPairVerify_InvalidSignature(t *testing.T) {
	f := newFixture(t)

	other, _ := hap.NewIdentity("", "")
	creds := f.creds.Clone()
	creds.AccessoryLTPK = other.PublicKey

	ctrl, _ := NewController(creds, ChannelControl)
	acc, _ := NewAccessory(f.accessory, f.store, ChannelControl)

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	if _, err := ctrl.HandleM2(m2); !errors.Is(err, hap.ErrInvalidSignature) {
		t.Errorf("HandleM2() error = %v, want ErrInvalidSignature", err)
	}
}

func TestPairVerify_UnknownController(t *testing.T) {
	f := newFixture(t)
	ctrl, _ := NewController(f.creds, ChannelControl)
	acc, _ := NewAccessory(f.accessory, credentials.NewMemoryStore(), ChannelControl)

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	m3, err := ctrl.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2() error = %v", err)
	}

	m4, err := acc.HandleM3(m3)
	if !errors.Is(err, ErrUnknownController) {
		t.Fatalf("HandleM3() error = %v, want ErrUnknownController", err)
	}

	_, err = ctrl.HandleM4(m4)
	var accErr *hap.AccessoryError
	if !errors.As(err, &accErr) || accErr.Code != hap.ErrorCodeAuthentication {
		t.Fatalf("HandleM4() error = %v, want Authentication error", err)
	}
	if _, err := ctrl.Keys(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Keys() after failure error = %v, want ErrInvalidState", err)
	}
}

func TestPairVerify_DeterministicEphemeral(t *testing.T) {
	f := newFixture(t)
	ctrl, _ := NewController(f.creds, ChannelControl)

	priv, _ := hex.DecodeString(alicePrivate)
	ctrl.SetRandom(bytes.NewReader(priv))

	m1, err := ctrl.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	c, _ := tlv8.Decode(m1)
	if got := hex.EncodeToString(c.Get(tlv8.TypePublicKey)); got != alicePublic {
		t.Errorf("M1 public key = %s, want %s", got, alicePublic)
	}
	if s, _ := c.Byte(tlv8.TypeState); tlv8.State(s) != tlv8.StateM1 {
		t.Errorf("M1 state = %d", s)
	}
}

func TestPairVerify_LowOrderPoint(t *testing.T) {
	f := newFixture(t)
	ctrl, _ := NewController(f.creds, ChannelControl)
	if _, err := ctrl.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m2 := tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM2)),
		tlv8.Bytes(tlv8.TypePublicKey, make([]byte, 32)),
		tlv8.Bytes(tlv8.TypeEncryptedData, make([]byte, 64)),
	)
	if _, err := ctrl.HandleM2(m2); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("HandleM2() error = %v, want ErrInvalidMessage", err)
	}
}

func TestPairVerify_InvalidConstruction(t *testing.T) {
	if _, err := NewController(nil, ChannelControl); !errors.Is(err, hap.ErrInvalidCredentials) {
		t.Errorf("NewController(nil) error = %v", err)
	}
	if _, err := NewController(&hap.Credentials{}, ChannelControl); !errors.Is(err, hap.ErrInvalidCredentials) {
		t.Errorf("NewController(empty) error = %v", err)
	}
	f := newFixture(t)
	if _, err := NewAccessory(f.accessory, nil, ChannelControl); err == nil {
		t.Error("NewAccessory() without store should fail")
	}

	ctrl, _ := NewController(f.creds, ChannelControl)
	if _, err := ctrl.HandleM1(nil); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("controller HandleM1() error = %v, want ErrInvalidRole", err)
	}
	if _, err := ctrl.HandleM4(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("HandleM4() before Start error = %v, want ErrInvalidState", err)
	}
}
