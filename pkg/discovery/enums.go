// Package discovery browses DNS-SD (mDNS) for AirPlay, RAOP and
// Companion-Link devices.
package discovery

// ServiceType identifies a DNS-SD service.
type ServiceType int

// ServiceType constants.
const (
	ServiceTypeUnknown ServiceType = iota

	// ServiceTypeAirPlay is the AirPlay control service (_airplay._tcp).
	ServiceTypeAirPlay

	// ServiceTypeCompanion is the Companion-Link service
	// (_companion-link._tcp).
	ServiceTypeCompanion

	// ServiceTypeRAOP is the AirTunes audio service (_raop._tcp).
	ServiceTypeRAOP
)

// DNS-SD service type strings.
const (
	ServiceAirPlay   = "_airplay._tcp"
	ServiceCompanion = "_companion-link._tcp"
	ServiceRAOP      = "_raop._tcp"

	// DefaultDomain is the default mDNS domain.
	DefaultDomain = "local."
)

// String returns a human-readable string for the service type.
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeAirPlay:
		return "AirPlay"
	case ServiceTypeCompanion:
		return "Companion"
	case ServiceTypeRAOP:
		return "RAOP"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the service type is known.
func (s ServiceType) IsValid() bool {
	return s >= ServiceTypeAirPlay && s <= ServiceTypeRAOP
}

// ServiceString returns the DNS-SD service string.
func (s ServiceType) ServiceString() string {
	switch s {
	case ServiceTypeAirPlay:
		return ServiceAirPlay
	case ServiceTypeCompanion:
		return ServiceCompanion
	case ServiceTypeRAOP:
		return ServiceRAOP
	default:
		return ""
	}
}

// ParseServiceType maps a CLI name ("airplay", "companion", "raop") to a
// ServiceType.
func ParseServiceType(name string) (ServiceType, error) {
	switch name {
	case "airplay":
		return ServiceTypeAirPlay, nil
	case "companion":
		return ServiceTypeCompanion, nil
	case "raop":
		return ServiceTypeRAOP, nil
	}
	return ServiceTypeUnknown, ErrInvalidServiceType
}
