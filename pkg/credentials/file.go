package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/backkem/hap/pkg/securechannel/hap"
)

// fileMode is the permission of the credentials file. It holds private
// keys.
const fileMode = 0o600

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Credentials []credentialRecord `yaml:"credentials"`
	Pairings    []pairingRecord    `yaml:"pairings"`
}

// FileStore persists records in a YAML file. Every write rewrites the file
// through a temporary file and a rename.
//
// All methods are safe for concurrent use.
type FileStore struct {
	path string

	// mu serializes writes to the file; mem guards its own maps.
	mu  sync.Mutex
	mem *MemoryStore
}

var (
	_ hap.CredentialStore = (*FileStore)(nil)
	_ hap.PairingStore    = (*FileStore)(nil)
)

// NewFileStore opens path, loading existing records. A missing file is
// treated as empty and is created on the first write.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, mem: NewMemoryStore()}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("credentials: parse %s: %w", s.path, err)
	}
	for _, r := range doc.Credentials {
		c, err := r.credentials()
		if err != nil {
			return fmt.Errorf("credentials: %s: %w", r.AccessoryIdentifier, err)
		}
		if err := s.mem.SaveCredentials(c); err != nil {
			return err
		}
	}
	for _, r := range doc.Pairings {
		p, err := r.pairing()
		if err != nil {
			return fmt.Errorf("credentials: %s: %w", r.Identifier, err)
		}
		if err := s.mem.SavePairing(p); err != nil {
			return err
		}
	}
	return nil
}

// flush writes the current records. Callers hold s.mu.
func (s *FileStore) flush() error {
	var doc fileDocument
	creds, _ := s.mem.ListCredentials()
	for _, c := range creds {
		doc.Credentials = append(doc.Credentials, newCredentialRecord(c))
	}
	pairings, _ := s.mem.ListPairings()
	for _, p := range pairings {
		doc.Pairings = append(doc.Pairings, newPairingRecord(p))
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// update applies fn to the in-memory records and persists the result.
func (s *FileStore) update(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	return s.flush()
}

// LoadCredentials returns the credentials for an accessory.
func (s *FileStore) LoadCredentials(accessoryID string) (*hap.Credentials, error) {
	return s.mem.LoadCredentials(accessoryID)
}

// SaveCredentials stores or replaces credentials.
func (s *FileStore) SaveCredentials(c *hap.Credentials) error {
	return s.update(func() error { return s.mem.SaveCredentials(c) })
}

// DeleteCredentials removes credentials.
func (s *FileStore) DeleteCredentials(accessoryID string) error {
	return s.update(func() error { return s.mem.DeleteCredentials(accessoryID) })
}

// ListCredentials returns all credentials.
func (s *FileStore) ListCredentials() ([]*hap.Credentials, error) {
	return s.mem.ListCredentials()
}

// LoadPairing returns the pairing for a controller.
func (s *FileStore) LoadPairing(controllerID string) (*hap.Pairing, error) {
	return s.mem.LoadPairing(controllerID)
}

// SavePairing stores or replaces a pairing.
func (s *FileStore) SavePairing(p *hap.Pairing) error {
	return s.update(func() error { return s.mem.SavePairing(p) })
}

// DeletePairing removes a pairing.
func (s *FileStore) DeletePairing(controllerID string) error {
	return s.update(func() error { return s.mem.DeletePairing(controllerID) })
}

// ListPairings returns all pairings.
func (s *FileStore) ListPairings() ([]*hap.Pairing, error) {
	return s.mem.ListPairings()
}
