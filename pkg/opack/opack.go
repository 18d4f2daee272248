// Package opack implements OPACK, the compact binary object encoding used
// by Companion-Link payloads.
//
// Supported Go types and their encodings:
//
//	nil                     0x04
//	bool                    0x01 true, 0x02 false
//	unsigned integers       0x08+n for n < 0x28, else 0x30..0x33 with
//	                        1, 2, 4 or 8 little-endian bytes
//	float32, float64        0x35, 0x36 (little-endian IEEE 754)
//	uuid.UUID               0x05 followed by 16 bytes
//	string                  0x40+len for len <= 0x20, else 0x61..0x64 with
//	                        a 1 to 4 byte little-endian length
//	[]byte                  0x70+len for len <= 0x20, else 0x91..0x94
//	slices                  0xD0+count for count < 15, else 0xDF ... 0x03
//	map[string]T            0xE0+count for count < 15, else 0xEF ... 0x03
//
// Unmarshal decodes integers as uint64, floats as float64, arrays as []any
// and dictionaries as map[string]any. Back-references (0xA0..0xC4) to
// earlier values are resolved while decoding; Marshal never emits them.
package opack

import "errors"

// Tags.
const (
	tagTrue       = 0x01
	tagFalse      = 0x02
	tagTerminator = 0x03
	tagNull       = 0x04
	tagUUID       = 0x05
	tagDate       = 0x06
	tagSmallInt   = 0x08
	tagInt8       = 0x30
	tagInt16      = 0x31
	tagInt32      = 0x32
	tagInt64      = 0x33
	tagFloat32    = 0x35
	tagFloat64    = 0x36
	tagString     = 0x40
	tagString8    = 0x61
	tagData       = 0x70
	tagData8      = 0x91
	tagRef        = 0xA0
	tagRef8       = 0xC1
	tagArray      = 0xD0
	tagArrayOpen  = 0xDF
	tagDict       = 0xE0
	tagDictOpen   = 0xEF
)

const (
	// maxSmallInt is the largest integer encoded in the tag byte.
	maxSmallInt = 0x27

	// maxInline is the largest string or data length encoded in the tag.
	maxInline = 0x20

	// maxCounted is the largest container count encoded in the tag.
	maxCounted = 14

	// maxRefInline is the largest back-reference index encoded in the tag.
	maxRefInline = 0x20
)

// Errors.
var (
	ErrUnsupportedType = errors.New("opack: unsupported type")
	ErrNegativeInteger = errors.New("opack: negative integers are not supported")
	ErrTruncated       = errors.New("opack: truncated data")
	ErrUnknownTag      = errors.New("opack: unknown tag")
	ErrTrailingData    = errors.New("opack: trailing data")
	ErrInvalidKey      = errors.New("opack: dictionary key is not a string")
	ErrInvalidRef      = errors.New("opack: back-reference out of range")
	ErrTooDeep         = errors.New("opack: nesting too deep")
)

// maxDepth bounds container nesting while decoding.
const maxDepth = 64
