package tlv8

import "errors"

var (
	// ErrTruncated is returned when a record header or value runs past the
	// end of the input.
	ErrTruncated = errors.New("tlv8: truncated record")

	// ErrDuplicateType is returned by DecodeStrict when a type reappears
	// after a record of a different type.
	ErrDuplicateType = errors.New("tlv8: non-adjacent duplicate type")

	// ErrMissing is returned when a required type is absent.
	ErrMissing = errors.New("tlv8: missing required type")

	// ErrInvalidLength is returned when a value has an unexpected length.
	ErrInvalidLength = errors.New("tlv8: invalid value length")
)
