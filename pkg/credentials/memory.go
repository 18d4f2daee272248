package credentials

import (
	"sort"
	"sync"

	"github.com/backkem/hap/pkg/securechannel/hap"
)

// MemoryStore is an in-memory store. Data is lost when the process exits.
//
// All methods are safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	credentials map[string]*hap.Credentials
	pairings    map[string]*hap.Pairing
}

var (
	_ hap.CredentialStore = (*MemoryStore)(nil)
	_ hap.PairingStore    = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*hap.Credentials),
		pairings:    make(map[string]*hap.Pairing),
	}
}

// LoadCredentials returns the credentials for an accessory.
func (m *MemoryStore) LoadCredentials(accessoryID string) (*hap.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.credentials[accessoryID]
	if !ok {
		return nil, hap.ErrNotFound
	}
	return c.Clone(), nil
}

// SaveCredentials stores or replaces credentials.
func (m *MemoryStore) SaveCredentials(c *hap.Credentials) error {
	if err := validateCredentials(c); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credentials[c.AccessoryIdentifier] = c.Clone()
	return nil
}

// DeleteCredentials removes credentials. Unknown identifiers are ignored.
func (m *MemoryStore) DeleteCredentials(accessoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.credentials, accessoryID)
	return nil
}

// ListCredentials returns all credentials ordered by accessory identifier.
func (m *MemoryStore) ListCredentials() ([]*hap.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*hap.Credentials, 0, len(m.credentials))
	for _, c := range m.credentials {
		result = append(result, c.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccessoryIdentifier < result[j].AccessoryIdentifier
	})
	return result, nil
}

// LoadPairing returns the pairing for a controller.
func (m *MemoryStore) LoadPairing(controllerID string) (*hap.Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pairings[controllerID]
	if !ok {
		return nil, hap.ErrNotFound
	}
	return p.Clone(), nil
}

// SavePairing stores or replaces a pairing.
func (m *MemoryStore) SavePairing(p *hap.Pairing) error {
	if err := validatePairing(p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pairings[p.Identifier] = p.Clone()
	return nil
}

// DeletePairing removes a pairing. Unknown identifiers are ignored.
func (m *MemoryStore) DeletePairing(controllerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.pairings, controllerID)
	return nil
}

// ListPairings returns all pairings ordered by controller identifier.
func (m *MemoryStore) ListPairings() ([]*hap.Pairing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*hap.Pairing, 0, len(m.pairings))
	for _, p := range m.pairings {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Identifier < result[j].Identifier
	})
	return result, nil
}
