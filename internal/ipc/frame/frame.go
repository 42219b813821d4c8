package frame

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Opcode tags one frame on the presence IPC wire.
type Opcode int32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
)

func (o Opcode) String() string {
	switch o {
	case OpHandshake:
		return "handshake"
	case OpFrame:
		return "frame"
	case OpClose:
		return "close"
	default:
		return fmt.Sprintf("opcode(%d)", int32(o))
	}
}

// HeaderLen is the fixed header size: int32 LE opcode + int32 LE length.
const HeaderLen = 8

var (
	ErrConnectionClosed = errors.New("frame: connection closed before frame was complete")
	ErrMalformedPayload = errors.New("frame: malformed payload")
	ErrPayloadTooLarge  = errors.New("frame: payload too large")
)

// Frame is one complete wire message.
type Frame struct {
	Op      Opcode
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 1 << 20,
	}
}

func (l Limits) max() int {
	if l.MaxPayloadBytes <= 0 || l.MaxPayloadBytes > math.MaxInt32 {
		return math.MaxInt32
	}
	return l.MaxPayloadBytes
}

// ReadFrame reads one header and exactly length payload bytes from r.
// A stream that ends early never yields a partial frame.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var hb [HeaderLen]byte
	if n, err := io.ReadFull(r, hb[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: header %d/%d bytes", ErrConnectionClosed, n, HeaderLen)
		}
		return Frame{}, err
	}

	op, length := DecodeHeader(hb[:])
	if length < 0 {
		return Frame{}, fmt.Errorf("%w: negative length %d", ErrMalformedPayload, length)
	}
	if int64(length) > int64(limits.max()) {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, length)
	}

	payload := make([]byte, length)
	if length > 0 {
		if n, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Frame{}, fmt.Errorf("%w: payload %d/%d bytes", ErrConnectionClosed, n, length)
			}
			return Frame{}, err
		}
	}
	return Frame{Op: op, Payload: payload}, nil
}

// Decode parses the payload as a UTF-8 JSON document into out.
func (f Frame) Decode(out any) error {
	if !utf8.Valid(f.Payload) {
		return fmt.Errorf("%w: invalid utf-8", ErrMalformedPayload)
	}
	if err := json.Unmarshal(f.Payload, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// Encode serializes doc and returns header+payload as one buffer.
func Encode(op Opcode, doc any, limits Limits) ([]byte, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if len(payload) > limits.max() {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	buf := make([]byte, HeaderLen, HeaderLen+len(payload))
	EncodeHeader(buf, op, int32(len(payload)))
	return append(buf, payload...), nil
}

// WriteFrame encodes doc and writes the whole frame, retrying short writes.
func WriteFrame(w io.Writer, op Opcode, doc any, limits Limits) error {
	buf, err := Encode(op, doc, limits)
	if err != nil {
		return err
	}
	return WriteAll(w, buf)
}

// WriteAll writes buf in full, looping over short writes.
func WriteAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

func EncodeHeader(b []byte, op Opcode, length int32) {
	binary.LittleEndian.PutUint32(b[0:4], uint32(op))
	binary.LittleEndian.PutUint32(b[4:8], uint32(length))
}

func DecodeHeader(b []byte) (Opcode, int32) {
	return Opcode(int32(binary.LittleEndian.Uint32(b[0:4]))), int32(binary.LittleEndian.Uint32(b[4:8]))
}
