package securechannel

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/backkem/hap/pkg/credentials"
	"github.com/backkem/hap/pkg/securechannel/hap"
	"github.com/backkem/hap/pkg/securechannel/pairsetup"
	"github.com/backkem/hap/pkg/securechannel/pairverify"
	"github.com/backkem/hap/pkg/session"
	"github.com/backkem/hap/pkg/tlv8"
)

// RFC 8032 Section 7.1, TEST 1 key used as the accessory identity.
const (
	accessorySeed = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	accessoryLTPK = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"
	accessoryID   = "AA:BB:CC:DD:EE:FF"
)

// loopChannel hands bodies straight to a Responder.
type loopChannel struct {
	r        *Responder
	setupErr error
	setup    *pairsetup.Result
	keys     *session.Keys
}

func (c *loopChannel) PairSetup(_ context.Context, body []byte) ([]byte, error) {
	if c.setupErr != nil {
		return nil, c.setupErr
	}
	reply, res, err := c.r.PairSetup(body)
	if reply == nil && err != nil {
		return nil, err
	}
	if res != nil {
		c.setup = res
	}
	return reply, nil
}

func (c *loopChannel) PairVerify(_ context.Context, body []byte) ([]byte, error) {
	reply, keys, err := c.r.PairVerify(body)
	if reply == nil && err != nil {
		return nil, err
	}
	if keys != nil {
		c.keys = keys
	}
	return reply, nil
}

func newAccessory(t *testing.T, pin string, channel pairverify.Channel) (*loopChannel, *credentials.MemoryStore) {
	t.Helper()
	seed, _ := hex.DecodeString(accessorySeed)
	id, err := hap.IdentityFromSeed(accessoryID, seed, "")
	if err != nil {
		t.Fatalf("IdentityFromSeed() error = %v", err)
	}
	store := credentials.NewMemoryStore()
	r, err := NewResponder(ResponderConfig{Identity: id, PIN: pin, Store: store, Channel: channel})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	return &loopChannel{r: r}, store
}

func TestSetupAndVerify(t *testing.T) {
	for _, channel := range []pairverify.Channel{pairverify.ChannelControl, pairverify.ChannelMediaRemote} {
		t.Run(channel.String(), func(t *testing.T) {
			ctx := context.Background()
			ch, store := newAccessory(t, "1234", channel)

			controller, err := hap.NewIdentity("", "hap controller")
			if err != nil {
				t.Fatalf("NewIdentity() error = %v", err)
			}
			res, err := Setup(ctx, ch, pairsetup.Config{Identity: controller, PIN: "1234"})
			if err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			creds := res.Credentials
			if creds == nil {
				t.Fatal("Setup() returned no credentials")
			}
			if creds.AccessoryIdentifier != accessoryID {
				t.Errorf("AccessoryIdentifier = %q, want %q", creds.AccessoryIdentifier, accessoryID)
			}
			if got := hex.EncodeToString(creds.AccessoryLTPK); got != accessoryLTPK {
				t.Errorf("AccessoryLTPK = %s, want %s", got, accessoryLTPK)
			}
			if _, err := store.LoadPairing(string(controller.PairingID)); err != nil {
				t.Errorf("accessory did not store the controller: %v", err)
			}

			keys, err := Verify(ctx, ch, creds, channel)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if ch.keys == nil {
				t.Fatal("responder did not complete pair-verify")
			}
			if keys.Read != ch.keys.Write || keys.Write != ch.keys.Read {
				t.Error("controller and accessory keys are not mirrored")
			}
		})
	}
}

func TestSetup_Transient(t *testing.T) {
	ch, _ := newAccessory(t, "", pairverify.ChannelControl)

	res, err := Setup(context.Background(), ch, pairsetup.Config{Mode: pairsetup.ModeTransient})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if res.Keys == nil || res.Credentials != nil {
		t.Fatalf("transient result = %+v", res)
	}
	if ch.setup == nil || ch.setup.Keys == nil {
		t.Fatal("responder did not complete transient pair-setup")
	}
	if res.Keys.Read != ch.setup.Keys.Write || res.Keys.Write != ch.setup.Keys.Read {
		t.Error("transient keys are not mirrored")
	}
	if !bytes.Equal(res.SharedSecret, ch.setup.SharedSecret) {
		t.Error("shared secrets differ")
	}
}

func TestSetup_WrongPIN(t *testing.T) {
	ch, _ := newAccessory(t, "1234", pairverify.ChannelControl)

	_, err := Setup(context.Background(), ch, pairsetup.Config{PIN: "4321"})

	var he *HandshakeError
	if !errors.As(err, &he) {
		t.Fatalf("Setup() error = %v, want *HandshakeError", err)
	}
	if he.Phase != PhasePairSetup || he.Step != tlv8.StateM4 {
		t.Errorf("failed at %s %s, want pair-setup M4", he.Phase, he.Step)
	}
	var ae *hap.AccessoryError
	if !errors.As(err, &ae) || ae.Code != hap.ErrorCodeAuthentication {
		t.Errorf("Setup() error = %v, want authentication AccessoryError", err)
	}
	if !strings.HasPrefix(err.Error(), "pair-setup M4: ") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSetup_ChannelFailure(t *testing.T) {
	ch, _ := newAccessory(t, "", pairverify.ChannelControl)
	ch.setupErr = io.ErrUnexpectedEOF

	_, err := Setup(context.Background(), ch, pairsetup.Config{})
	var he *HandshakeError
	if !errors.As(err, &he) || he.Step != tlv8.StateM1 {
		t.Fatalf("Setup() error = %v, want failure at M1", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Setup() error = %v, want wrapped ErrUnexpectedEOF", err)
	}
}

func TestVerify_UnknownController(t *testing.T) {
	ctx := context.Background()
	ch, _ := newAccessory(t, "", pairverify.ChannelControl)
	res, err := Setup(ctx, ch, pairsetup.Config{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	// A second accessory with the same identity but an empty store.
	other, _ := newAccessory(t, "", pairverify.ChannelControl)
	_, err = Verify(ctx, other, res.Credentials, pairverify.ChannelControl)

	var he *HandshakeError
	if !errors.As(err, &he) || he.Phase != PhasePairVerify || he.Step != tlv8.StateM4 {
		t.Fatalf("Verify() error = %v, want pair-verify M4", err)
	}
	var ae *hap.AccessoryError
	if !errors.As(err, &ae) || ae.Code != hap.ErrorCodeAuthentication {
		t.Errorf("Verify() error = %v, want authentication AccessoryError", err)
	}
	if other.keys != nil {
		t.Error("responder produced keys for an unknown controller")
	}
}

func TestVerify_NoCredentials(t *testing.T) {
	ch, _ := newAccessory(t, "", pairverify.ChannelControl)
	if _, err := Verify(context.Background(), ch, nil, pairverify.ChannelControl); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Verify() error = %v, want ErrNoCredentials", err)
	}
}

func TestResponder_OutOfOrder(t *testing.T) {
	ch, _ := newAccessory(t, "", pairverify.ChannelControl)
	m3 := tlv8.Encode(tlv8.Byte(tlv8.TypeState, uint8(tlv8.StateM3)))

	reply, _, err := ch.r.PairSetup(m3)
	if !errors.Is(err, ErrUnexpectedMessage) {
		t.Errorf("PairSetup(M3) error = %v, want ErrUnexpectedMessage", err)
	}
	c, derr := tlv8.Decode(reply)
	if derr != nil || hap.CheckError(c) == nil {
		t.Errorf("PairSetup(M3) reply %x is not an error response", reply)
	}

	if _, _, err := ch.r.PairVerify(m3); !errors.Is(err, ErrUnexpectedMessage) {
		t.Errorf("PairVerify(M3) error = %v, want ErrUnexpectedMessage", err)
	}
	if _, _, err := ch.r.PairVerify([]byte{0x01}); err == nil {
		t.Error("PairVerify(truncated) should fail")
	}
}

func TestNewResponder_Validate(t *testing.T) {
	if _, err := NewResponder(ResponderConfig{}); err == nil {
		t.Error("NewResponder() without identity should fail")
	}
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		p    Phase
		want string
	}{
		{PhasePairSetup, "pair-setup"},
		{PhasePairVerify, "pair-verify"},
		{PhaseUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
