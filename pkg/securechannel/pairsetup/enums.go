package pairsetup

// Mode selects between full and transient pairing.
type Mode int

const (
	// ModePIN runs M1 to M6 and produces long-term credentials.
	ModePIN Mode = iota

	// ModeTransient stops after M4 and produces session keys.
	ModeTransient
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePIN:
		return "PIN"
	case ModeTransient:
		return "Transient"
	default:
		return "Unknown"
	}
}

// Role is the participant role.
type Role int

const (
	// RoleController knows the PIN and starts the exchange.
	RoleController Role = iota
	// RoleAccessory displays the PIN and answers.
	RoleAccessory
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "Controller"
	case RoleAccessory:
		return "Accessory"
	default:
		return "Unknown"
	}
}

// State is the pair-setup state machine position.
type State int

const (
	StateInit       State = iota
	StateWaitingM2        // Controller: sent M1
	StateWaitingM3        // Accessory: sent M2
	StateWaitingM4        // Controller: sent M3
	StateWaitingM5        // Accessory: sent M4
	StateWaitingM6        // Controller: sent M5
	StateComplete
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingM2:
		return "WaitingM2"
	case StateWaitingM3:
		return "WaitingM3"
	case StateWaitingM4:
		return "WaitingM4"
	case StateWaitingM5:
		return "WaitingM5"
	case StateWaitingM6:
		return "WaitingM6"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
