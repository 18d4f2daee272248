package securechannel

// Phase names a handshake.
type Phase int

const (
	// PhaseUnknown is the zero value.
	PhaseUnknown Phase = iota
	// PhasePairSetup is the SRP-based pairing that exchanges long-term keys.
	PhasePairSetup
	// PhasePairVerify is the X25519 handshake that derives session keys.
	PhasePairVerify
)

// String returns the phase in wire path form.
func (p Phase) String() string {
	switch p {
	case PhasePairSetup:
		return "pair-setup"
	case PhasePairVerify:
		return "pair-verify"
	default:
		return "unknown"
	}
}
