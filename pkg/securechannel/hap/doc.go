// Package hap holds the types shared by the pair-setup and pair-verify
// state machines: long-term identities, the credentials produced by
// pair-setup, the stores that persist them, and the accessory error
// codes carried in Error and BackOff records.
//
// # Lifecycle
//
//	Identity ──pair-setup──▶ Credentials ──pair-verify──▶ session keys
//
// An Identity is created once per controller and reused. Credentials are
// handed to the caller, who persists them through a CredentialStore.
// Session keys are derived per connection and never stored.
package hap
