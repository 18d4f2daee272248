package session

import (
	"bytes"
	"io"
	"net"
	"testing"
)

func TestConn_RoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	k := testKeys(t)
	ctrl, err := NewConn(a, k)
	if err != nil {
		t.Fatalf("NewConn() error = %v", err)
	}
	acc, err := NewConn(b, k.Swap())
	if err != nil {
		t.Fatalf("NewConn() error = %v", err)
	}

	plain := bytes.Repeat([]byte("0123456789"), 500)
	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.Write(plain)
		errCh <- err
	}()

	got := make([]byte, len(plain))
	if _, err := io.ReadFull(acc, got); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Error("plaintext mismatch")
	}
	if r, _ := acc.Cipher().Counters(); r != 5 {
		t.Errorf("read counter = %d, want 5", r)
	}
}
