package frame

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"testing/iotest"

	"github.com/danmuck/mpvpresence/internal/testutil/testlog"
)

func TestReadWriteFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name string
		op   Opcode
		doc  map[string]any
	}{
		{"handshake", OpHandshake, map[string]any{"v": float64(1), "client_id": "1084791136981352558"}},
		{"frame", OpFrame, map[string]any{"cmd": "SET_ACTIVITY", "nonce": "n-1", "args": map[string]any{"pid": float64(42)}}},
		{"close", OpClose, map[string]any{}},
		{"unicode", OpFrame, map[string]any{"details": "進撃の巨人 - Episode 3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.op, tt.doc, DefaultLimits()); err != nil {
				t.Fatalf("write frame: %v", err)
			}
			out, err := ReadFrame(&buf, DefaultLimits())
			if err != nil {
				t.Fatalf("read frame: %v", err)
			}
			if out.Op != tt.op {
				t.Fatalf("op mismatch: got=%s want=%s", out.Op, tt.op)
			}
			var got map[string]any
			if err := out.Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !reflect.DeepEqual(got, tt.doc) {
				t.Fatalf("payload mismatch: got=%v want=%v", got, tt.doc)
			}
			if buf.Len() != 0 {
				t.Fatalf("unexpected trailing bytes: %d", buf.Len())
			}
		})
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	testlog.Start(t)
	buf, err := Encode(OpFrame, map[string]string{"a": "b"}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload := []byte(`{"a":"b"}`)
	want := append([]byte{1, 0, 0, 0, byte(len(payload)), 0, 0, 0}, payload...)
	if !bytes.Equal(buf, want) {
		t.Fatalf("unexpected bytes: got=%v want=%v", buf, want)
	}
}

func TestReadFrameShortHeaderIsConnectionClosed(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{1, 0, 0}), DefaultLimits())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
	_, err = ReadFrame(bytes.NewReader(nil), DefaultLimits())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed on empty stream, got %v", err)
	}
}

func TestReadFrameShortPayloadIsConnectionClosed(t *testing.T) {
	testlog.Start(t)
	hb := make([]byte, HeaderLen)
	EncodeHeader(hb, OpFrame, 10)
	in := append(hb, []byte("abc")...)
	_, err := ReadFrame(bytes.NewReader(in), DefaultLimits())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestReadFrameAccumulatesPartialReads(t *testing.T) {
	testlog.Start(t)
	buf, err := Encode(OpFrame, map[string]string{"evt": "READY"}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := ReadFrame(iotest.OneByteReader(bytes.NewReader(buf)), DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var doc struct {
		Evt string `json:"evt"`
	}
	if err := out.Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Evt != "READY" {
		t.Fatalf("unexpected evt: %q", doc.Evt)
	}
}

func TestReadFrameRejectsOversizedAndNegativeLength(t *testing.T) {
	testlog.Start(t)
	hb := make([]byte, HeaderLen)
	EncodeHeader(hb, OpFrame, 64)
	_, err := ReadFrame(bytes.NewReader(hb), Limits{MaxPayloadBytes: 16})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	EncodeHeader(hb, OpFrame, -1)
	_, err = ReadFrame(bytes.NewReader(hb), DefaultLimits())
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	testlog.Start(t)
	var out map[string]any
	if err := (Frame{Op: OpFrame, Payload: []byte("{not json")}).Decode(&out); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for bad json, got %v", err)
	}
	if err := (Frame{Op: OpFrame, Payload: []byte{'"', 0xff, '"'}}).Decode(&out); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for bad utf-8, got %v", err)
	}
}

type trickleWriter struct {
	buf bytes.Buffer
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	if len(p) > 3 {
		p = p[:3]
	}
	return w.buf.Write(p)
}

func TestWriteFrameRetriesShortWrites(t *testing.T) {
	testlog.Start(t)
	w := &trickleWriter{}
	if err := WriteFrame(w, OpHandshake, map[string]any{"v": 1}, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	out, err := ReadFrame(&w.buf, DefaultLimits())
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if out.Op != OpHandshake || string(out.Payload) != `{"v":1}` {
		t.Fatalf("unexpected frame: op=%s payload=%q", out.Op, out.Payload)
	}
}

func TestOpcodeString(t *testing.T) {
	if OpClose.String() != "close" || Opcode(9).String() != "opcode(9)" {
		t.Fatalf("unexpected opcode names: %s %s", OpClose, Opcode(9))
	}
}
