package pairsetup

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/backkem/hap/pkg/credentials"
	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/crypto/srp"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/tlv8"
)

// RFC 8032 Section 7.1, TEST 1 key used as the accessory identity.
const (
	accessorySeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	accessoryLTPK = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	accessoryID   = "AA:BB:CC:DD:EE:FF"
)

func testAccessoryIdentity(t *testing.T) *hap.Identity {
	t.Helper()
	seed, _ := hex.DecodeString(accessorySeed)
	id, err := hap.IdentityFromSeed(accessoryID, seed, "")
	if err != nil {
		t.Fatalf("IdentityFromSeed() error = %v", err)
	}
	return id
}

// run drives both sessions to completion and returns the first error.
func run(t *testing.T, ctrl, acc *Session) error {
	t.Helper()

	m1, err := ctrl.Start()
	if err != nil {
		return err
	}
	m2, err := acc.HandleM1(m1)
	if err != nil {
		return err
	}
	m3, err := ctrl.HandleM2(m2)
	if err != nil {
		return err
	}
	m4, accErr := acc.HandleM3(m3)
	if m4 == nil {
		return accErr
	}
	m5, err := ctrl.HandleM4(m4)
	if err != nil {
		return err
	}
	if m5 == nil {
		return nil
	}
	m6, accErr := acc.HandleM5(m5)
	if m6 == nil {
		return accErr
	}
	return ctrl.HandleM6(m6)
}

func TestPairSetup_PIN(t *testing.T) {
	store := credentials.NewMemoryStore()
	ctrlID, err := hap.NewIdentity("", "Test Controller")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}

	var encodedName string
	ctrl, err := NewController(Config{
		Identity: ctrlID,
		PIN:      "1234",
		NameCodec: func(name string) ([]byte, error) {
			encodedName = name
			return []byte(name), nil
		},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	acc, err := NewAccessory(AccessoryConfig{
		Identity: testAccessoryIdentity(t),
		PIN:      "1234",
		Store:    store,
	})
	if err != nil {
		t.Fatalf("NewAccessory() error = %v", err)
	}

	if err := run(t, ctrl, acc); err != nil {
		t.Fatalf("pairing failed: %v", err)
	}
	if encodedName != "Test Controller" {
		t.Errorf("NameCodec got %q", encodedName)
	}

	res, err := ctrl.Result()
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	creds := res.Credentials
	if creds == nil {
		t.Fatal("Result().Credentials is nil")
	}
	if creds.AccessoryIdentifier != accessoryID {
		t.Errorf("AccessoryIdentifier = %q, want %q", creds.AccessoryIdentifier, accessoryID)
	}
	if got := hex.EncodeToString(creds.AccessoryLTPK); got != accessoryLTPK {
		t.Errorf("AccessoryLTPK = %s, want %s", got, accessoryLTPK)
	}
	if !bytes.Equal(creds.PairingID, ctrlID.PairingID) {
		t.Errorf("PairingID = %s, want %s", creds.PairingID, ctrlID.PairingID)
	}
	if err := creds.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if res.Keys != nil {
		t.Error("PIN pairing should not produce session keys")
	}

	pairing, err := store.LoadPairing(string(ctrlID.PairingID))
	if err != nil {
		t.Fatalf("LoadPairing() error = %v", err)
	}
	if !bytes.Equal(pairing.PublicKey, ctrlID.PublicKey) {
		t.Error("stored controller key mismatch")
	}
	if pairing.Permissions != hap.PermissionAdmin {
		t.Errorf("Permissions = %v, want admin", pairing.Permissions)
	}

	accRes, err := acc.Result()
	if err != nil {
		t.Fatalf("accessory Result() error = %v", err)
	}
	if accRes.Pairing == nil || accRes.Pairing.Identifier != string(ctrlID.PairingID) {
		t.Error("accessory result missing pairing")
	}
}

func TestPairSetup_PINWipesSRPKey(t *testing.T) {
	ctrlID, _ := hap.NewIdentity("", "")
	ctrl, _ := NewController(Config{Identity: ctrlID, PIN: "1234"})
	acc, _ := NewAccessory(AccessoryConfig{
		Identity: testAccessoryIdentity(t),
		PIN:      "1234",
		Store:    credentials.NewMemoryStore(),
	})

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	m3, err := ctrl.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2() error = %v", err)
	}
	m4, err := acc.HandleM3(m3)
	if err != nil {
		t.Fatalf("HandleM3() error = %v", err)
	}
	m5, err := ctrl.HandleM4(m4)
	if err != nil {
		t.Fatalf("HandleM4() error = %v", err)
	}

	ctrlK, accK := ctrl.sharedKey, acc.sharedKey
	if len(ctrlK) != 64 || len(accK) != 64 {
		t.Fatalf("K lengths = %d, %d, want 64", len(ctrlK), len(accK))
	}

	m6, err := acc.HandleM5(m5)
	if err != nil {
		t.Fatalf("HandleM5() error = %v", err)
	}
	if err := ctrl.HandleM6(m6); err != nil {
		t.Fatalf("HandleM6() error = %v", err)
	}

	zero := make([]byte, 64)
	if !bytes.Equal(ctrlK, zero) {
		t.Error("controller K not wiped after PIN pairing")
	}
	if !bytes.Equal(accK, zero) {
		t.Error("accessory K not wiped after PIN pairing")
	}
}

func TestPairSetup_Transient(t *testing.T) {
	ctrl, err := NewController(Config{Mode: ModeTransient})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	acc, err := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t)})
	if err != nil {
		t.Fatalf("NewAccessory() error = %v", err)
	}

	m1, _ := ctrl.Start()
	c, err := tlv8.Decode(m1)
	if err != nil {
		t.Fatalf("Decode(M1) error = %v", err)
	}
	if got := c.Get(tlv8.TypeFlags); !bytes.Equal(got, []byte{0x10}) {
		t.Errorf("M1 flags = %x, want 10", got)
	}

	m2, err := acc.HandleM1(m1)
	if err != nil {
		t.Fatalf("HandleM1() error = %v", err)
	}
	if acc.Mode() != ModeTransient {
		t.Fatalf("accessory mode = %s, want Transient", acc.Mode())
	}
	m3, err := ctrl.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2() error = %v", err)
	}
	m4, err := acc.HandleM3(m3)
	if err != nil {
		t.Fatalf("HandleM3() error = %v", err)
	}
	m5, err := ctrl.HandleM4(m4)
	if err != nil {
		t.Fatalf("HandleM4() error = %v", err)
	}
	if m5 != nil {
		t.Fatal("transient HandleM4() returned M5")
	}

	cr, err := ctrl.Result()
	if err != nil {
		t.Fatalf("controller Result() error = %v", err)
	}
	ar, err := acc.Result()
	if err != nil {
		t.Fatalf("accessory Result() error = %v", err)
	}
	if len(cr.SharedSecret) != srp.KeySize {
		t.Errorf("SharedSecret is %d bytes, want %d", len(cr.SharedSecret), srp.KeySize)
	}
	if !bytes.Equal(cr.SharedSecret, ar.SharedSecret) {
		t.Fatal("shared secrets differ")
	}
	if cr.Keys.Write != ar.Keys.Read || cr.Keys.Read != ar.Keys.Write {
		t.Error("accessory keys are not the mirror of controller keys")
	}

	want, _ := crypto.DeriveKey(cr.SharedSecret, crypto.ControlWrite)
	if !bytes.Equal(cr.Keys.Write[:], want) {
		t.Error("controller write key is not Control-Write-Encryption-Key")
	}
}

func TestPairSetup_WrongPIN(t *testing.T) {
	ctrl, _ := NewController(Config{PIN: "1111"})
	acc, _ := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t), PIN: "2222"})

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	m3, err := ctrl.HandleM2(m2)
	if err != nil {
		t.Fatalf("HandleM2() error = %v", err)
	}

	m4, err := acc.HandleM3(m3)
	if !errors.Is(err, ErrAuthentication) {
		t.Fatalf("HandleM3() error = %v, want ErrAuthentication", err)
	}
	if acc.State() != StateFailed {
		t.Errorf("accessory state = %s, want Failed", acc.State())
	}

	_, err = ctrl.HandleM4(m4)
	var accErr *hap.AccessoryError
	if !errors.As(err, &accErr) {
		t.Fatalf("HandleM4() error = %v, want *hap.AccessoryError", err)
	}
	if accErr.Code != hap.ErrorCodeAuthentication {
		t.Errorf("Code = %s, want Authentication", accErr.Code)
	}
	if ctrl.State() != StateFailed {
		t.Errorf("controller state = %s, want Failed", ctrl.State())
	}
	if _, err := ctrl.Result(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Result() error = %v, want ErrInvalidState", err)
	}
}

func TestPairSetup_PromptPIN(t *testing.T) {
	prompted := 0
	ctrl, err := NewController(Config{PromptPIN: func() (string, error) {
		prompted++
		return "5678", nil
	}})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	acc, _ := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t), PIN: "5678"})

	if err := run(t, ctrl, acc); err != nil {
		t.Fatalf("pairing with prompted PIN error = %v", err)
	}
	if prompted != 1 {
		t.Errorf("PromptPIN called %d times, want 1", prompted)
	}

	errAbort := errors.New("aborted")
	ctrl, _ = NewController(Config{PromptPIN: func() (string, error) { return "", errAbort }})
	acc, _ = NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t), PIN: "5678"})
	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	if _, err := ctrl.HandleM2(m2); !errors.Is(err, errAbort) {
		t.Errorf("HandleM2() error = %v, want prompt error", err)
	}
	if ctrl.State() != StateFailed {
		t.Errorf("state = %s, want Failed", ctrl.State())
	}
}

func TestPairSetup_ForgedServerProof(t *testing.T) {
	ctrl, _ := NewController(Config{})
	acc, _ := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t)})

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	m3, _ := ctrl.HandleM2(m2)
	if _, err := acc.HandleM3(m3); err != nil {
		t.Fatalf("HandleM3() error = %v", err)
	}

	forged := tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM4)),
		tlv8.Bytes(tlv8.TypeProof, make([]byte, srp.ProofSize)),
	)
	if _, err := ctrl.HandleM4(forged); !errors.Is(err, srp.ErrServerProofMismatch) {
		t.Errorf("HandleM4() error = %v, want ErrServerProofMismatch", err)
	}
}

func TestPairSetup_TamperedM6(t *testing.T) {
	ctrl, _ := NewController(Config{})
	acc, _ := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t)})

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)
	m3, _ := ctrl.HandleM2(m2)
	m4, _ := acc.HandleM3(m3)
	m5, _ := ctrl.HandleM4(m4)
	m6, err := acc.HandleM5(m5)
	if err != nil {
		t.Fatalf("HandleM5() error = %v", err)
	}

	c, _ := tlv8.Decode(m6)
	sealed := bytes.Clone(c.Get(tlv8.TypeEncryptedData))
	sealed[0] ^= 0xFF
	tampered := tlv8.Encode(
		tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM6)),
		tlv8.Bytes(tlv8.TypeEncryptedData, sealed),
	)

	if err := ctrl.HandleM6(tampered); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Errorf("HandleM6() error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestPairSetup_WrongState(t *testing.T) {
	ctrl, _ := NewController(Config{})
	acc, _ := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t)})

	m1, _ := ctrl.Start()
	m2, _ := acc.HandleM1(m1)

	// A response carrying M4 where M2 is expected.
	bad := bytes.Clone(m2)
	bad[2] = uint8(tlv8.StateM4)
	if _, err := ctrl.HandleM2(bad); !errors.Is(err, hap.ErrUnexpectedState) {
		t.Errorf("HandleM2() error = %v, want ErrUnexpectedState", err)
	}
}

func TestPairSetup_OutOfOrder(t *testing.T) {
	ctrl, _ := NewController(Config{})
	if _, err := ctrl.HandleM2(nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("HandleM2() before Start error = %v, want ErrInvalidState", err)
	}
	if _, err := ctrl.HandleM1(nil); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("controller HandleM1() error = %v, want ErrInvalidRole", err)
	}

	acc, _ := NewAccessory(AccessoryConfig{Identity: testAccessoryIdentity(t)})
	if _, err := acc.Start(); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("accessory Start() error = %v, want ErrInvalidRole", err)
	}
	if _, err := NewAccessory(AccessoryConfig{}); err == nil {
		t.Error("NewAccessory() without identity should fail")
	}
}

func TestPairSetup_BusyAccessory(t *testing.T) {
	ctrl, _ := NewController(Config{})
	if _, err := ctrl.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	busy := hap.BackOffResponse(tlv8.StateM2, 0)
	_, err := ctrl.HandleM2(busy)
	var busyErr *hap.BusyError
	if !errors.As(err, &busyErr) {
		t.Fatalf("HandleM2() error = %v, want *hap.BusyError", err)
	}
}

func TestEnums_String(t *testing.T) {
	if ModeTransient.String() != "Transient" || ModePIN.String() != "PIN" {
		t.Error("Mode.String() mismatch")
	}
	if RoleAccessory.String() != "Accessory" {
		t.Error("Role.String() mismatch")
	}
	if StateWaitingM6.String() != "WaitingM6" || State(99).String() != "Unknown" {
		t.Error("State.String() mismatch")
	}
}
