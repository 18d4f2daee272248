// Package message implements the two wire framings used by the pairing
// transports.
//
// Text framing (AirPlay) carries RTSP-style requests and responses:
//
//	POST /pair-setup RTSP/1.0\r\n
//	Connection: keep-alive\r\n
//	CSeq: 0\r\n
//	User-Agent: AirPlay/320.20\r\n
//	Content-Type: application/octet-stream\r\n
//	Content-Length: 6\r\n
//	\r\n
//	<body>
//
// Binary framing (Companion-Link) carries frames with a 4-byte header:
//
//	+------+-----------------------+
//	| type | length (24-bit, BE)   |  payload (length bytes)
//	+------+-----------------------+
//
// Both decoders are incremental: Feed appends to an internal buffer and
// returns every message that is now complete, keeping partial data.
package message

import "errors"

// Message is a decoded or outbound unit: *Request, *Response or *Frame.
type Message interface {
	isMessage()
}

func (*Request) isMessage()  {}
func (*Response) isMessage() {}
func (*Frame) isMessage()    {}

// Errors.
var (
	// ErrInvalidFraming is returned when a start line or header cannot be
	// parsed. The stream cannot be resynchronized afterwards.
	ErrInvalidFraming = errors.New("message: invalid framing")

	// ErrFrameTooLarge is returned when a payload does not fit the length
	// field.
	ErrFrameTooLarge = errors.New("message: frame too large")
)
