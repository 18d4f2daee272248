// Package credentials provides storage adapters for pairing material.
//
// Each store implements both hap.CredentialStore (controller side, keyed
// by accessory identifier) and hap.PairingStore (accessory side, keyed by
// controller identifier):
//
//   - MemoryStore keeps records in process memory.
//   - FileStore keeps records in a YAML file with hex-encoded keys.
//   - BoltStore keeps records in a bbolt database.
//
// Stores return copies; callers may modify returned values freely.
package credentials
