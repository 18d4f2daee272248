package transport

// FramingType identifies the wire framing of a connection.
type FramingType int

const (
	// FramingTypeUnknown is the zero value for unknown framing.
	FramingTypeUnknown FramingType = iota
	// FramingTypeText is RTSP-style text framing with stream encryption (AirPlay).
	FramingTypeText
	// FramingTypeBinary is typed binary framing with per-frame encryption (Companion-Link).
	FramingTypeBinary
)

// String returns the string representation of the framing type.
func (t FramingType) String() string {
	switch t {
	case FramingTypeText:
		return "Text"
	case FramingTypeBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the framing type is a known valid type.
func (t FramingType) IsValid() bool {
	return t == FramingTypeText || t == FramingTypeBinary
}
