package session

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/backkem/hap/pkg/crypto"
)

func framePair(t *testing.T) (*FrameCipher, *FrameCipher) {
	t.Helper()
	k := testKeys(t)
	ctrl, err := NewFrameCipher(k)
	if err != nil {
		t.Fatalf("NewFrameCipher() error = %v", err)
	}
	acc, err := NewFrameCipher(k.Swap())
	if err != nil {
		t.Fatalf("NewFrameCipher() error = %v", err)
	}
	return ctrl, acc
}

func TestFrameCipher_SealVector(t *testing.T) {
	ctrl, _ := framePair(t)
	header := []byte{0x08, 0x00, 0x00, 0x15}

	got, err := ctrl.Seal(header, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	want := "0befbb7a0895a978d9de534772849b988776287ab6"
	if hex.EncodeToString(got) != want {
		t.Errorf("Seal() = %x, want %s", got, want)
	}
}

func TestFrameCipher_RoundTrip(t *testing.T) {
	ctrl, acc := framePair(t)
	header := []byte{0x08, 0x00, 0x00, 0x15}

	for i := 0; i < 3; i++ {
		body, err := ctrl.Seal(header, []byte("payload"))
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		got, err := acc.Open(header, body)
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i, err)
		}
		if string(got) != "payload" {
			t.Errorf("Open() = %q", got)
		}
	}
}

func TestFrameCipher_HeaderAuthenticated(t *testing.T) {
	ctrl, acc := framePair(t)
	body, _ := ctrl.Seal([]byte{0x08, 0x00, 0x00, 0x15}, []byte("hello"))

	if _, err := acc.Open([]byte{0x07, 0x00, 0x00, 0x15}, body); !errors.Is(err, crypto.ErrAuthenticationFailed) {
		t.Errorf("Open() with altered type error = %v, want ErrAuthenticationFailed", err)
	}
}
