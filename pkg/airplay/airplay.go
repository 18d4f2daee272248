// Package airplay is an AirPlay control client: HAP pairing over RTSP-style
// requests and the encrypted control, event and data channels that follow.
//
// A typical session:
//
//	c, _ := airplay.Dial(ctx, "10.0.0.5:7000", airplay.Config{Store: store})
//	res, _ := c.Pair(ctx, airplay.PairOptions{PIN: pin})   // once
//	v, _ := c.Verify(ctx, res.Credentials)                 // every connection
//	_ = c.Secure(v.Keys)
//	ev, _ := airplay.DialEvents(ctx, "10.0.0.5:7001", v.SharedSecret, airplay.EventConfig{})
//
// Transient pairing (PIN 3939, no stored credentials) returns control keys
// directly from pair-setup.
package airplay

import (
	"errors"
	"fmt"

	"github.com/backkem/hap/pkg/opack"
)

// Request paths.
const (
	PathPairPinStart = "/pair-pin-start"
	PathPairSetup    = "/pair-setup"
	PathPairVerify   = "/pair-verify"
	PathInfo         = "/info"
	PathCommand      = "/command"
)

// Header names and values.
const (
	HeaderHKP          = "X-Apple-HKP"
	HeaderServer       = "Server"
	HeaderAudioLatency = "Audio-Latency"

	ContentTypeOctetStream = "application/octet-stream"
	ContentTypePairingTLV8 = "application/pairing+tlv8"
)

// HKP values announce the pairing flavor.
const (
	hkpPIN       = "3"
	hkpTransient = "4"
)

// DefaultName is the controller name sent in pair-setup M5.
const DefaultName = "hap controller"

// Errors.
var (
	// ErrNotPaired is returned when verify is attempted without credentials.
	ErrNotPaired = errors.New("airplay: no credentials")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("airplay: %s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Status)
}

// EncodeName encodes the controller name record of pair-setup M5.
func EncodeName(name string) ([]byte, error) {
	return opack.Marshal(map[string]any{"name": name})
}
