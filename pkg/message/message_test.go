package message

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeRequest(t *testing.T) {
	req := &Request{
		Method: "POST",
		Path:   "/pair-setup",
		Header: Header{
			{"Content-Type", "application/octet-stream"},
			{"X-Apple-HKP", "3"},
			{"CSeq", "99"},
		},
		Body: []byte{0x00, 0x01, 0x00, 0x06, 0x01, 0x01},
	}

	got := EncodeRequest(req, 0, "AirPlay/320.20")
	want := "POST /pair-setup RTSP/1.0\r\n" +
		"Connection: keep-alive\r\n" +
		"CSeq: 0\r\n" +
		"User-Agent: AirPlay/320.20\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"X-Apple-HKP: 3\r\n" +
		"Content-Length: 6\r\n" +
		"\r\n" +
		"\x00\x01\x00\x06\x01\x01"
	if string(got) != want {
		t.Errorf("EncodeRequest() =\n%q\nwant\n%q", got, want)
	}
}

func TestEncodeRequest_NoBody(t *testing.T) {
	got := EncodeRequest(&Request{Method: "POST", Path: "/pair-pin-start"}, 3, "ua")
	if !bytes.HasSuffix(got, []byte("CSeq: 3\r\nUser-Agent: ua\r\nContent-Length: 0\r\n\r\n")) {
		t.Errorf("EncodeRequest() = %q", got)
	}
}

func TestTextDecoder_Response(t *testing.T) {
	wire := []byte("RTSP/1.0 200 OK\r\nContent-Length: 3\r\nCSeq: 7\r\nServer: AirTunes/366.0\r\n\r\nabc")

	var d TextDecoder
	for split := 0; split <= len(wire); split++ {
		d = TextDecoder{}
		a, err := d.Feed(wire[:split])
		if err != nil {
			t.Fatalf("split %d: Feed(head) error = %v", split, err)
		}
		b, err := d.Feed(wire[split:])
		if err != nil {
			t.Fatalf("split %d: Feed(tail) error = %v", split, err)
		}
		msgs := append(a, b...)
		if len(msgs) != 1 {
			t.Fatalf("split %d: got %d messages, want 1", split, len(msgs))
		}
		resp, ok := msgs[0].(*Response)
		if !ok {
			t.Fatalf("split %d: got %T, want *Response", split, msgs[0])
		}
		if resp.StatusCode != 200 || resp.Status != "OK" || string(resp.Body) != "abc" {
			t.Errorf("split %d: response = %+v", split, resp)
		}
		if resp.CSeq() != 7 || !resp.OK() || resp.Proto != "RTSP/1.0" {
			t.Errorf("split %d: CSeq=%d OK=%v Proto=%s", split, resp.CSeq(), resp.OK(), resp.Proto)
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d, want 0", d.Buffered())
	}
}

func TestTextDecoder_Pipelined(t *testing.T) {
	wire := []byte("HTTP/1.1 470 Connection Authorization Required\r\nContent-Length: 0\r\n\r\n" +
		"RTSP/1.0 200 OK\r\nContent-Length: 2\r\n\r\nhi" +
		"RTSP/1.0 200 OK\r\nContent-Le")

	var d TextDecoder
	msgs, err := d.Feed(wire)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	first := msgs[0].(*Response)
	if first.StatusCode != 470 || first.Status != "Connection Authorization Required" || first.OK() {
		t.Errorf("first = %+v", first)
	}
	if d.Buffered() == 0 {
		t.Error("partial third response should stay buffered")
	}
}

func TestTextDecoder_Request(t *testing.T) {
	wire := EncodeRequest(&Request{Method: "POST", Path: "/pair-verify", Body: []byte("xyz")}, 12, "ua")

	var d TextDecoder
	msgs, err := d.Feed(wire)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	req, ok := msgs[0].(*Request)
	if !ok {
		t.Fatalf("got %T, want *Request", msgs[0])
	}
	if req.Method != "POST" || req.Path != "/pair-verify" || req.CSeq != 12 || string(req.Body) != "xyz" {
		t.Errorf("request = %+v", req)
	}
	if req.Header.Get("user-agent") != "ua" {
		t.Errorf("User-Agent = %q", req.Header.Get("user-agent"))
	}
}

func TestTextDecoder_Invalid(t *testing.T) {
	tests := []string{
		"GARBAGE\r\n\r\n",
		"RTSP/1.0 200\r\n\r\n",
		"RTSP/1.0 200 OK\r\nContent-Length: abc\r\n\r\n",
		"RTSP/1.0 200 OK\r\nContent-Length: -1\r\n\r\n",
		"RTSP/1.0 200 OK\r\nContent-Length: 9223372036854775807\r\n\r\n",
		"RTSP/1.0 200 OK\r\nContent-Length: 16777217\r\n\r\n",
	}
	for _, wire := range tests {
		var d TextDecoder
		if _, err := d.Feed([]byte(wire)); !errors.Is(err, ErrInvalidFraming) {
			t.Errorf("Feed(%q) error = %v, want ErrInvalidFraming", wire, err)
		}
	}
}

func TestResponse_EncodeRoundTrip(t *testing.T) {
	resp := &Response{StatusCode: 200, Status: "OK", Header: Header{{"CSeq", "4"}}, Body: []byte{1, 2, 3}}

	var d TextDecoder
	msgs, err := d.Feed(resp.Encode())
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Feed() = %d messages, error = %v", len(msgs), err)
	}
	got := msgs[0].(*Response)
	if got.CSeq() != 4 || !bytes.Equal(got.Body, resp.Body) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestHeader(t *testing.T) {
	var h Header
	h.Add("Content-Type", "a")
	h.Add("X-Apple-HKP", "3")
	h.Set("content-type", "b")

	if h.Get("CONTENT-TYPE") != "b" || len(h) != 2 {
		t.Errorf("header = %v", h)
	}
	h.Del("x-apple-hkp")
	if h.Has("X-Apple-HKP") {
		t.Error("Del() left field")
	}
	c := h.Clone()
	c[0].Value = "changed"
	if h.Get("Content-Type") != "b" {
		t.Error("Clone() shares storage")
	}
}

func TestFrame_Encode(t *testing.T) {
	f := &Frame{Type: FramePSStart, Payload: []byte{0xE0}}
	got, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if want := []byte{0x03, 0x00, 0x00, 0x01, 0xE0}; !bytes.Equal(got, want) {
		t.Errorf("Encode() = %x, want %x", got, want)
	}

	h, _ := FrameHeader(FrameEOPACK, 0x012345)
	if want := []byte{0x08, 0x01, 0x23, 0x45}; !bytes.Equal(h, want) {
		t.Errorf("FrameHeader() = %x, want %x", h, want)
	}
	if _, err := FrameHeader(FrameEOPACK, MaxFramePayload+1); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("FrameHeader(too large) error = %v", err)
	}
}

func TestBinaryDecoder_EverySplit(t *testing.T) {
	a, _ := (&Frame{Type: FramePVNext, Payload: []byte("first")}).Encode()
	b, _ := (&Frame{Type: FrameEOPACK, Payload: nil}).Encode()
	c, _ := (&Frame{Type: FrameSessionData, Payload: bytes.Repeat([]byte{7}, 300)}).Encode()
	wire := bytes.Join([][]byte{a, b, c}, nil)

	for split := 0; split <= len(wire); split++ {
		var d BinaryDecoder
		x, _ := d.Feed(wire[:split])
		y, _ := d.Feed(wire[split:])
		msgs := append(x, y...)
		if len(msgs) != 3 {
			t.Fatalf("split %d: got %d frames, want 3", split, len(msgs))
		}
		if f := msgs[0].(*Frame); f.Type != FramePVNext || string(f.Payload) != "first" {
			t.Errorf("split %d: frame 0 = %v", split, f)
		}
		if f := msgs[1].(*Frame); f.Type != FrameEOPACK || len(f.Payload) != 0 {
			t.Errorf("split %d: frame 1 = %v", split, f)
		}
		if f := msgs[2].(*Frame); len(f.Payload) != 300 {
			t.Errorf("split %d: frame 2 length = %d", split, len(f.Payload))
		}
		if d.Buffered() != 0 {
			t.Errorf("split %d: Buffered() = %d", split, d.Buffered())
		}
	}
}

func TestFrameType(t *testing.T) {
	tests := []struct {
		t        FrameType
		name     string
		response FrameType
		opack    bool
	}{
		{FramePSStart, "PS_Start", FramePSNext, true},
		{FramePVStart, "PV_Start", FramePVNext, true},
		{FrameEOPACK, "E_OPACK", FrameEOPACK, true},
		{FrameSessionData, "SessionData", FrameSessionData, false},
		{FrameType(200), "FrameType(200)", FrameType(200), false},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.name {
			t.Errorf("String() = %q, want %q", got, tt.name)
		}
		if got := tt.t.ResponseType(); got != tt.response {
			t.Errorf("%s.ResponseType() = %s, want %s", tt.t, got, tt.response)
		}
		if got := tt.t.IsOPACK(); got != tt.opack {
			t.Errorf("%s.IsOPACK() = %v", tt.t, got)
		}
	}
}
