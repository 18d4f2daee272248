package message

import (
	"bytes"
	"fmt"
)

// FrameType is the first byte of a binary frame header.
type FrameType uint8

const (
	FrameUnknown                FrameType = 0
	FrameNoop                   FrameType = 1
	FramePSStart                FrameType = 3
	FramePSNext                 FrameType = 4
	FramePVStart                FrameType = 5
	FramePVNext                 FrameType = 6
	FrameUOPACK                 FrameType = 7
	FrameEOPACK                 FrameType = 8
	FramePOPACK                 FrameType = 9
	FramePARequest              FrameType = 10
	FramePAResponse             FrameType = 11
	FrameSessionStartRequest    FrameType = 16
	FrameSessionStartResponse   FrameType = 17
	FrameSessionData            FrameType = 18
	FrameFamilyIdentityRequest  FrameType = 32
	FrameFamilyIdentityResponse FrameType = 33
	FrameFamilyIdentityUpdate   FrameType = 34
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameUnknown:
		return "Unknown"
	case FrameNoop:
		return "Noop"
	case FramePSStart:
		return "PS_Start"
	case FramePSNext:
		return "PS_Next"
	case FramePVStart:
		return "PV_Start"
	case FramePVNext:
		return "PV_Next"
	case FrameUOPACK:
		return "U_OPACK"
	case FrameEOPACK:
		return "E_OPACK"
	case FramePOPACK:
		return "P_OPACK"
	case FramePARequest:
		return "PA_Request"
	case FramePAResponse:
		return "PA_Response"
	case FrameSessionStartRequest:
		return "SessionStartRequest"
	case FrameSessionStartResponse:
		return "SessionStartResponse"
	case FrameSessionData:
		return "SessionData"
	case FrameFamilyIdentityRequest:
		return "FamilyIdentityRequest"
	case FrameFamilyIdentityResponse:
		return "FamilyIdentityResponse"
	case FrameFamilyIdentityUpdate:
		return "FamilyIdentityUpdate"
	default:
		return fmt.Sprintf("FrameType(%d)", uint8(t))
	}
}

// ResponseType returns the frame type a reply to t carries. Pairing start
// frames are answered with their Next type; all others with the same type.
func (t FrameType) ResponseType() FrameType {
	switch t {
	case FramePSStart:
		return FramePSNext
	case FramePVStart:
		return FramePVNext
	default:
		return t
	}
}

// IsOPACK reports whether the payload of t is an OPACK dictionary.
func (t FrameType) IsOPACK() bool {
	switch t {
	case FramePSStart, FramePSNext, FramePVStart, FramePVNext,
		FrameUOPACK, FrameEOPACK, FramePOPACK:
		return true
	}
	return false
}

// Binary frame layout.
const (
	// FrameHeaderSize is the size of the type and length header.
	FrameHeaderSize = 4

	// MaxFramePayload is the largest payload the 24-bit length can carry.
	MaxFramePayload = 1<<24 - 1
)

// Frame is a binary-framed message. For encrypted frames Payload holds
// ciphertext || tag as read from the wire.
type Frame struct {
	Type    FrameType
	Payload []byte
}

// FrameHeader returns the header for a frame of type t with an n-byte body.
func FrameHeader(t FrameType, n int) ([]byte, error) {
	if n < 0 || n > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	return []byte{byte(t), byte(n >> 16), byte(n >> 8), byte(n)}, nil
}

// Header returns the header for f as it appears on the wire.
func (f *Frame) Header() ([]byte, error) {
	return FrameHeader(f.Type, len(f.Payload))
}

// Encode returns header || payload.
func (f *Frame) Encode() ([]byte, error) {
	h, err := f.Header()
	if err != nil {
		return nil, err
	}
	return append(h, f.Payload...), nil
}

// BinaryDecoder splits a byte stream into frames.
type BinaryDecoder struct {
	buf []byte
}

// Feed appends p and returns all complete frames in order.
func (d *BinaryDecoder) Feed(p []byte) ([]Message, error) {
	d.buf = append(d.buf, p...)

	var out []Message
	for len(d.buf) >= FrameHeaderSize {
		n := int(d.buf[1])<<16 | int(d.buf[2])<<8 | int(d.buf[3])
		total := FrameHeaderSize + n
		if len(d.buf) < total {
			break
		}
		out = append(out, &Frame{
			Type:    FrameType(d.buf[0]),
			Payload: bytes.Clone(d.buf[FrameHeaderSize:total]),
		})
		d.buf = d.buf[total:]
	}
	return out, nil
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *BinaryDecoder) Buffered() int {
	return len(d.buf)
}
