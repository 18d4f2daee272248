package transport

import (
	"fmt"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
	"github.com/backkem/hap/pkg/message"
	"github.com/backkem/hap/pkg/opack"
	"github.com/backkem/hap/pkg/session"
)

// DefaultUserAgent is sent on every text-framed request.
const DefaultUserAgent = "AirPlay/320.20"

// Framing turns messages into wire bytes and back, and applies session
// encryption once keys are installed. Implementations are safe for one
// concurrent encoder and one concurrent decoder.
type Framing interface {
	// Type returns the framing type.
	Type() FramingType

	// Encode returns the wire bytes for msg, encrypted if secured. Calls
	// must be serialized in wire order.
	Encode(msg message.Message) ([]byte, error)

	// Feed consumes received bytes and returns every complete message.
	Feed(p []byte) ([]message.Message, error)

	// Match reports whether resp answers req.
	Match(req, resp message.Message) bool

	// Secure installs session keys. Bytes encoded or fed afterwards are
	// encrypted.
	Secure(keys *session.Keys) error

	// Secured reports whether keys are installed.
	Secured() bool
}

// TextFraming is the AirPlay framing: RTSP-style messages, optionally
// wrapped in the HAP stream cipher.
type TextFraming struct {
	userAgent string

	mu      sync.Mutex
	cseq    int
	decoder message.TextDecoder
	cipher  *session.StreamCipher
}

// NewTextFraming creates a text framing. An empty userAgent selects
// DefaultUserAgent.
func NewTextFraming(userAgent string) *TextFraming {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &TextFraming{userAgent: userAgent}
}

// Type returns FramingTypeText.
func (f *TextFraming) Type() FramingType {
	return FramingTypeText
}

// Encode serializes a *message.Request or *message.Response. Requests are
// assigned the next CSeq, starting at 0.
func (f *TextFraming) Encode(msg message.Message) ([]byte, error) {
	f.mu.Lock()
	cipher := f.cipher
	var data []byte
	switch m := msg.(type) {
	case *message.Request:
		m.CSeq = f.cseq
		f.cseq++
		data = message.EncodeRequest(m, m.CSeq, f.userAgent)
	case *message.Response:
		data = m.Encode()
	default:
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
	}
	f.mu.Unlock()

	if cipher == nil {
		return data, nil
	}
	return cipher.Seal(data)
}

// Feed decrypts p if secured and decodes complete messages.
func (f *TextFraming) Feed(p []byte) ([]message.Message, error) {
	f.mu.Lock()
	cipher := f.cipher
	f.mu.Unlock()

	if cipher != nil {
		plain, err := cipher.Open(p)
		if err != nil {
			msgs, _ := f.decoder.Feed(plain)
			return msgs, err
		}
		p = plain
	}
	return f.decoder.Feed(p)
}

// Match accepts a response whose CSeq is absent or equal to the request's.
func (f *TextFraming) Match(req, resp message.Message) bool {
	r, ok := resp.(*message.Response)
	if !ok {
		return false
	}
	q, ok := req.(*message.Request)
	if !ok {
		return false
	}
	cseq := r.CSeq()
	return cseq < 0 || cseq == q.CSeq
}

// Secure installs the stream cipher.
func (f *TextFraming) Secure(keys *session.Keys) error {
	c, err := session.NewStreamCipher(keys)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cipher != nil {
		return ErrAlreadySecured
	}
	f.cipher = c
	return nil
}

// Secured reports whether the stream cipher is installed.
func (f *TextFraming) Secured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cipher != nil
}

// Companion-Link OPACK message fields used for correlation.
const (
	fieldTransaction = "_x"
	fieldType        = "_t"

	// messageTypeResponse is the _t value of a response.
	messageTypeResponse = 3
)

// DictUnmarshaler decodes an E_OPACK payload into a dictionary.
type DictUnmarshaler interface {
	Unmarshal(data []byte) (map[string]any, error)
}

type opackDict struct{}

func (opackDict) Unmarshal(data []byte) (map[string]any, error) {
	return opack.UnmarshalDict(data)
}

// BinaryFraming is the Companion-Link framing: typed frames whose payload
// is encrypted per frame once secured.
type BinaryFraming struct {
	dict DictUnmarshaler

	mu      sync.Mutex
	decoder message.BinaryDecoder
	cipher  *session.FrameCipher
}

// NewBinaryFraming creates a binary framing that reads E_OPACK payloads
// as OPACK.
func NewBinaryFraming() *BinaryFraming {
	return NewBinaryFramingWith(nil)
}

// NewBinaryFramingWith creates a binary framing that reads E_OPACK
// payloads with dict. A nil dict selects OPACK.
func NewBinaryFramingWith(dict DictUnmarshaler) *BinaryFraming {
	if dict == nil {
		dict = opackDict{}
	}
	return &BinaryFraming{dict: dict}
}

// Type returns FramingTypeBinary.
func (f *BinaryFraming) Type() FramingType {
	return FramingTypeBinary
}

// Encode serializes a *message.Frame. When secured the payload is sealed
// and the header length covers the tag.
func (f *BinaryFraming) Encode(msg message.Message) ([]byte, error) {
	frame, ok := msg.(*message.Frame)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedMessage, msg)
	}

	f.mu.Lock()
	cipher := f.cipher
	f.mu.Unlock()

	if cipher == nil {
		return frame.Encode()
	}

	header, err := message.FrameHeader(frame.Type, len(frame.Payload)+crypto.TagSize)
	if err != nil {
		return nil, err
	}
	body, err := cipher.Seal(header, frame.Payload)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// Feed decodes complete frames and decrypts their payloads if secured.
func (f *BinaryFraming) Feed(p []byte) ([]message.Message, error) {
	f.mu.Lock()
	cipher := f.cipher
	f.mu.Unlock()

	msgs, err := f.decoder.Feed(p)
	if err != nil || cipher == nil {
		return msgs, err
	}

	for i, m := range msgs {
		frame := m.(*message.Frame)
		header, err := frame.Header()
		if err != nil {
			return msgs[:i], err
		}
		plain, err := cipher.Open(header, frame.Payload)
		if err != nil {
			return msgs[:i], err
		}
		frame.Payload = plain
	}
	return msgs, nil
}

// Match accepts a frame of the request's response type. For E_OPACK
// requests the response must also be a response message (_t) carrying
// the request's transaction id (_x).
func (f *BinaryFraming) Match(req, resp message.Message) bool {
	q, ok := req.(*message.Frame)
	if !ok {
		return false
	}
	r, ok := resp.(*message.Frame)
	if !ok || r.Type != q.Type.ResponseType() {
		return false
	}
	if q.Type != message.FrameEOPACK {
		return true
	}

	qd, err := f.dict.Unmarshal(q.Payload)
	if err != nil {
		return false
	}
	rd, err := f.dict.Unmarshal(r.Payload)
	if err != nil {
		return false
	}
	if t, ok := asUint(rd[fieldType]); !ok || t != messageTypeResponse {
		return false
	}
	qx, ok := asUint(qd[fieldTransaction])
	if !ok {
		return false
	}
	rx, ok := asUint(rd[fieldTransaction])
	return ok && qx == rx
}

// asUint reads a non-negative integer in whatever numeric type a codec
// produced.
func asUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case float64:
		return uint64(n), n >= 0 && n == float64(uint64(n))
	default:
		return 0, false
	}
}

// Secure installs the frame cipher.
func (f *BinaryFraming) Secure(keys *session.Keys) error {
	c, err := session.NewFrameCipher(keys)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cipher != nil {
		return ErrAlreadySecured
	}
	f.cipher = c
	return nil
}

// Secured reports whether the frame cipher is installed.
func (f *BinaryFraming) Secured() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cipher != nil
}

var (
	_ Framing = (*TextFraming)(nil)
	_ Framing = (*BinaryFraming)(nil)
)
