package message

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Header names with protocol meaning.
const (
	HeaderCSeq          = "CSeq"
	HeaderConnection    = "Connection"
	HeaderContentLength = "Content-Length"
	HeaderContentType   = "Content-Type"
	HeaderUserAgent     = "User-Agent"
)

// DefaultProto is the protocol token on request lines.
const DefaultProto = "RTSP/1.0"

// maxHeaderSize bounds the header block while waiting for the blank line.
const maxHeaderSize = 64 * 1024

// maxBodySize bounds Content-Length.
const maxBodySize = 16 << 20

var (
	statusLine  = regexp.MustCompile(`^(HTTP|RTSP)/[\d.]+\s+(\d+)\s+(.+)$`)
	requestLine = regexp.MustCompile(`^(\S+)\s+(\S+)\s+((?:HTTP|RTSP)/[\d.]+)$`)
)

var crlf2 = []byte("\r\n\r\n")

// Request is a text-framed request.
type Request struct {
	Method string
	Path   string
	Header Header
	Body   []byte

	// CSeq is the sequence number. Set by the encoder's owner on send and
	// parsed from the header on receive; -1 when absent.
	CSeq int
}

// EncodeRequest serializes r. The fixed headers Connection, CSeq and
// User-Agent come first, then r.Header in order, then Content-Length.
// Caller-supplied values for those names are ignored.
func EncodeRequest(r *Request, cseq int, userAgent string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s\r\n", r.Method, r.Path, DefaultProto)
	fmt.Fprintf(&b, "%s: keep-alive\r\n", HeaderConnection)
	fmt.Fprintf(&b, "%s: %d\r\n", HeaderCSeq, cseq)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderUserAgent, userAgent)
	for _, f := range r.Header {
		switch strings.ToLower(f.Name) {
		case "connection", "cseq", "user-agent", "content-length":
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", f.Name, f.Value)
	}
	fmt.Fprintf(&b, "%s: %d\r\n\r\n", HeaderContentLength, len(r.Body))
	b.Write(r.Body)
	return b.Bytes()
}

// Response is a text-framed response.
type Response struct {
	Proto      string
	StatusCode int
	Status     string
	Header     Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// CSeq returns the echoed sequence number, or -1.
func (r *Response) CSeq() int {
	return parseCSeq(r.Header)
}

// Encode serializes r. Content-Length is always written.
func (r *Response) Encode() []byte {
	proto := r.Proto
	if proto == "" {
		proto = DefaultProto
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %d %s\r\n", proto, r.StatusCode, r.Status)
	for _, f := range r.Header {
		if strings.EqualFold(f.Name, HeaderContentLength) {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\r\n", f.Name, f.Value)
	}
	fmt.Fprintf(&b, "%s: %d\r\n\r\n", HeaderContentLength, len(r.Body))
	b.Write(r.Body)
	return b.Bytes()
}

func parseCSeq(h Header) int {
	v := h.Get(HeaderCSeq)
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return -1
	}
	return n
}

// TextDecoder splits a byte stream into requests and responses.
type TextDecoder struct {
	buf []byte
}

// Feed appends p and returns all complete messages in order. A malformed
// start line returns ErrInvalidFraming together with the messages decoded
// before it.
func (d *TextDecoder) Feed(p []byte) ([]Message, error) {
	d.buf = append(d.buf, p...)

	var out []Message
	for {
		end := bytes.Index(d.buf, crlf2)
		if end < 0 {
			if len(d.buf) > maxHeaderSize {
				return out, fmt.Errorf("%w: header exceeds %d bytes", ErrInvalidFraming, maxHeaderSize)
			}
			return out, nil
		}

		lines := strings.Split(string(d.buf[:end]), "\r\n")
		header := parseHeader(lines[1:])

		length := 0
		if v := header.Get(HeaderContentLength); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 || n > maxBodySize {
				return out, fmt.Errorf("%w: content length %q", ErrInvalidFraming, v)
			}
			length = n
		}
		total := end + len(crlf2) + length
		if len(d.buf) < total {
			return out, nil
		}
		body := bytes.Clone(d.buf[end+len(crlf2) : total])

		msg, err := parseStart(lines[0], header, body)
		if err != nil {
			return out, err
		}
		out = append(out, msg)
		d.buf = d.buf[total:]
	}
}

// Buffered returns the number of bytes held for an incomplete message.
func (d *TextDecoder) Buffered() int {
	return len(d.buf)
}

func parseStart(line string, header Header, body []byte) (Message, error) {
	if m := statusLine.FindStringSubmatch(line); m != nil {
		code, _ := strconv.Atoi(m[2])
		proto, _, _ := strings.Cut(line, " ")
		return &Response{
			Proto:      proto,
			StatusCode: code,
			Status:     strings.TrimSpace(m[3]),
			Header:     header,
			Body:       body,
		}, nil
	}
	if m := requestLine.FindStringSubmatch(line); m != nil {
		return &Request{
			Method: m[1],
			Path:   m[2],
			Header: header,
			Body:   body,
			CSeq:   parseCSeq(header),
		}, nil
	}
	return nil, fmt.Errorf("%w: start line %q", ErrInvalidFraming, line)
}

// parseHeader reads "Name: value" lines. Lines without a colon are
// skipped.
func parseHeader(lines []string) Header {
	h := make(Header, 0, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h
}
