package credentials

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/backkem/hap/pkg/securechannel/hap"
)

type store interface {
	hap.CredentialStore
	hap.PairingStore
}

func testCredentials(t *testing.T, accessoryID string) *hap.Credentials {
	t.Helper()
	ctrl, err := hap.NewIdentity("", "")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	acc, err := hap.NewIdentity(accessoryID, "")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	return &hap.Credentials{
		AccessoryIdentifier: accessoryID,
		AccessoryLTPK:       acc.PublicKey,
		PairingID:           ctrl.PairingID,
		PrivateKey:          ctrl.PrivateKey,
		PublicKey:           ctrl.PublicKey,
	}
}

func testPairing(t *testing.T, id string) *hap.Pairing {
	t.Helper()
	ctrl, err := hap.NewIdentity(id, "")
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	return &hap.Pairing{Identifier: id, PublicKey: ctrl.PublicKey, Permissions: hap.PermissionAdmin}
}

func credentialsEqual(a, b *hap.Credentials) bool {
	return a.AccessoryIdentifier == b.AccessoryIdentifier &&
		bytes.Equal(a.AccessoryLTPK, b.AccessoryLTPK) &&
		bytes.Equal(a.PairingID, b.PairingID) &&
		bytes.Equal(a.PrivateKey, b.PrivateKey) &&
		bytes.Equal(a.PublicKey, b.PublicKey)
}

func openStores(t *testing.T) map[string]store {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "credentials.yaml"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	bolt, err := OpenBoltStore(filepath.Join(dir, "credentials.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	t.Cleanup(func() { bolt.Close() })

	return map[string]store{
		"memory": NewMemoryStore(),
		"file":   file,
		"bolt":   bolt,
	}
}

func TestStores_Credentials(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.LoadCredentials("AA:BB:CC:DD:EE:FF"); !errors.Is(err, hap.ErrNotFound) {
				t.Errorf("LoadCredentials(unknown) error = %v, want ErrNotFound", err)
			}

			a := testCredentials(t, "AA:BB:CC:DD:EE:FF")
			b := testCredentials(t, "11:22:33:44:55:66")
			for _, c := range []*hap.Credentials{a, b} {
				if err := s.SaveCredentials(c); err != nil {
					t.Fatalf("SaveCredentials() error = %v", err)
				}
			}

			got, err := s.LoadCredentials(a.AccessoryIdentifier)
			if err != nil {
				t.Fatalf("LoadCredentials() error = %v", err)
			}
			if !credentialsEqual(got, a) {
				t.Error("loaded credentials differ from saved")
			}

			// Returned values are copies.
			got.AccessoryLTPK[0] ^= 0xFF
			again, _ := s.LoadCredentials(a.AccessoryIdentifier)
			if !credentialsEqual(again, a) {
				t.Error("store shares memory with returned credentials")
			}

			list, err := s.ListCredentials()
			if err != nil {
				t.Fatalf("ListCredentials() error = %v", err)
			}
			if len(list) != 2 || list[0].AccessoryIdentifier != b.AccessoryIdentifier {
				t.Errorf("ListCredentials() = %d entries, want 2 ordered by identifier", len(list))
			}

			if err := s.DeleteCredentials(a.AccessoryIdentifier); err != nil {
				t.Fatalf("DeleteCredentials() error = %v", err)
			}
			if _, err := s.LoadCredentials(a.AccessoryIdentifier); !errors.Is(err, hap.ErrNotFound) {
				t.Errorf("LoadCredentials(deleted) error = %v, want ErrNotFound", err)
			}
			if err := s.DeleteCredentials("unknown"); err != nil {
				t.Errorf("DeleteCredentials(unknown) error = %v", err)
			}
		})
	}
}

func TestStores_Pairings(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			p := testPairing(t, "C0FFEE00-0000-4000-8000-000000000001")
			if err := s.SavePairing(p); err != nil {
				t.Fatalf("SavePairing() error = %v", err)
			}

			got, err := s.LoadPairing(p.Identifier)
			if err != nil {
				t.Fatalf("LoadPairing() error = %v", err)
			}
			if !bytes.Equal(got.PublicKey, p.PublicKey) || got.Permissions != hap.PermissionAdmin {
				t.Error("loaded pairing differs from saved")
			}

			list, _ := s.ListPairings()
			if len(list) != 1 {
				t.Errorf("ListPairings() = %d entries, want 1", len(list))
			}

			if err := s.DeletePairing(p.Identifier); err != nil {
				t.Fatalf("DeletePairing() error = %v", err)
			}
			if _, err := s.LoadPairing(p.Identifier); !errors.Is(err, hap.ErrNotFound) {
				t.Errorf("LoadPairing(deleted) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStores_RejectInvalid(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.SaveCredentials(&hap.Credentials{AccessoryIdentifier: "x"}); !errors.Is(err, hap.ErrInvalidCredentials) {
				t.Errorf("SaveCredentials(invalid) error = %v", err)
			}
			if err := s.SaveCredentials(nil); !errors.Is(err, hap.ErrInvalidCredentials) {
				t.Errorf("SaveCredentials(nil) error = %v", err)
			}
			if err := s.SavePairing(&hap.Pairing{Identifier: "x", PublicKey: []byte{1}}); !errors.Is(err, hap.ErrInvalidCredentials) {
				t.Errorf("SavePairing(invalid) error = %v", err)
			}
		})
	}
}

func TestFileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	c := testCredentials(t, "AA:BB:CC:DD:EE:FF")
	if err := s.SaveCredentials(c); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}
	p := testPairing(t, "controller-1")
	if err := s.SavePairing(p); err != nil {
		t.Fatalf("SavePairing() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != fileMode {
		t.Errorf("file mode = %o, want %o", info.Mode().Perm(), fileMode)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "AA:BB:CC:DD:EE:FF") {
		t.Errorf("file does not contain identifier:\n%s", data)
	}

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore(reopen) error = %v", err)
	}
	got, err := reopened.LoadCredentials(c.AccessoryIdentifier)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if !credentialsEqual(got, c) {
		t.Error("reloaded credentials differ")
	}
	if _, err := reopened.LoadPairing("controller-1"); err != nil {
		t.Errorf("LoadPairing() error = %v", err)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	if err := os.WriteFile(path, []byte("credentials:\n  - accessory_ltpk: zz\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); !errors.Is(err, hap.ErrInvalidCredentials) {
		t.Errorf("NewFileStore(corrupt) error = %v, want ErrInvalidCredentials", err)
	}
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	c := testCredentials(t, "AA:BB:CC:DD:EE:FF")
	if err := s.SaveCredentials(c); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore(reopen) error = %v", err)
	}
	defer s.Close()
	got, err := s.LoadCredentials(c.AccessoryIdentifier)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if !credentialsEqual(got, c) {
		t.Error("reopened credentials differ")
	}
}
