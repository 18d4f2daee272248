package credentials

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"gopkg.in/yaml.v3"

	"github.com/backkem/hap/pkg/securechannel/hap"
)

var (
	credentialsBucket = []byte("credentials")
	pairingsBucket    = []byte("pairings")
)

// BoltStore persists records in a bbolt database, one bucket per record
// kind. Values are YAML-encoded records.
type BoltStore struct {
	db *bbolt.DB
}

var (
	_ hap.CredentialStore = (*BoltStore)(nil)
	_ hap.PairingStore    = (*BoltStore)(nil)
)

// OpenBoltStore opens or creates the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("credentials: open %s: %w", path, err)
	}
	return NewBoltStore(db)
}

// NewBoltStore uses an open database. The buckets are created if needed.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{credentialsBucket, pairingsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func (b *BoltStore) get(bucket []byte, key string, out any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return hap.ErrNotFound
		}
		return yaml.Unmarshal(v, out)
	})
}

func (b *BoltStore) put(bucket []byte, key string, record any) error {
	v, err := yaml.Marshal(record)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), v)
	})
}

func (b *BoltStore) delete(bucket []byte, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// each calls fn for every value in bucket in key order.
func (b *BoltStore) each(bucket []byte, fn func(v []byte) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(_, v []byte) error {
			return fn(v)
		})
	})
}

// LoadCredentials returns the credentials for an accessory.
func (b *BoltStore) LoadCredentials(accessoryID string) (*hap.Credentials, error) {
	var r credentialRecord
	if err := b.get(credentialsBucket, accessoryID, &r); err != nil {
		return nil, err
	}
	return r.credentials()
}

// SaveCredentials stores or replaces credentials.
func (b *BoltStore) SaveCredentials(c *hap.Credentials) error {
	if err := validateCredentials(c); err != nil {
		return err
	}
	return b.put(credentialsBucket, c.AccessoryIdentifier, newCredentialRecord(c))
}

// DeleteCredentials removes credentials.
func (b *BoltStore) DeleteCredentials(accessoryID string) error {
	return b.delete(credentialsBucket, accessoryID)
}

// ListCredentials returns all credentials ordered by accessory identifier.
func (b *BoltStore) ListCredentials() ([]*hap.Credentials, error) {
	var result []*hap.Credentials
	err := b.each(credentialsBucket, func(v []byte) error {
		var r credentialRecord
		if err := yaml.Unmarshal(v, &r); err != nil {
			return err
		}
		c, err := r.credentials()
		if err != nil {
			return err
		}
		result = append(result, c)
		return nil
	})
	return result, err
}

// LoadPairing returns the pairing for a controller.
func (b *BoltStore) LoadPairing(controllerID string) (*hap.Pairing, error) {
	var r pairingRecord
	if err := b.get(pairingsBucket, controllerID, &r); err != nil {
		return nil, err
	}
	return r.pairing()
}

// SavePairing stores or replaces a pairing.
func (b *BoltStore) SavePairing(p *hap.Pairing) error {
	if err := validatePairing(p); err != nil {
		return err
	}
	return b.put(pairingsBucket, p.Identifier, newPairingRecord(p))
}

// DeletePairing removes a pairing.
func (b *BoltStore) DeletePairing(controllerID string) error {
	return b.delete(pairingsBucket, controllerID)
}

// ListPairings returns all pairings ordered by controller identifier.
func (b *BoltStore) ListPairings() ([]*hap.Pairing, error) {
	var result []*hap.Pairing
	err := b.each(pairingsBucket, func(v []byte) error {
		var r pairingRecord
		if err := yaml.Unmarshal(v, &r); err != nil {
			return err
		}
		p, err := r.pairing()
		if err != nil {
			return err
		}
		result = append(result, p)
		return nil
	})
	return result, err
}
