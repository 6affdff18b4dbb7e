// Package ipc implements the Monitor Listener's wire framing: a stream of
// length-prefixed msgpack frames carrying outcome events and interleaved
// output lines from an action's child process.
package ipc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Frame size constants. The monitor stream never carries artifacts, so the
// ceiling only needs to bound pathological output lines.
const (
	// MaxFrameSize is the maximum frame size, including the length prefix.
	MaxFrameSize = 4 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	OutcomeType = "outcome"
	OutputType  = "output"
	EndType     = "end"
)

// OutcomeFrame reports a terminal verdict for one outcome name.
type OutcomeFrame struct {
	Type        string   `msgpack:"type"`
	Name        string   `msgpack:"name"`
	Result      string   `msgpack:"result"`
	OutputLines []string `msgpack:"output_lines"`
	Matters     bool     `msgpack:"matters"`
	Message     string   `msgpack:"message,omitempty"`
}

// OutputFrame carries one interleaved stdout/stderr line for an outcome
// that has not yet terminated.
type OutputFrame struct {
	Type string `msgpack:"type"`
	Name string `msgpack:"name"`
	Line string `msgpack:"line"`
}

// EndFrame signals a clean end of stream; the child sends it before
// closing the connection voluntarily.
type EndFrame struct {
	Type string `msgpack:"type"`
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error { return e.Err }

// IsFatal reports whether this error should end the monitor session rather
// than just being skipped.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError reports whether err is a fatal *FrameError.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder wraps r in a buffered reader, reusing it if r is already
// a *bufio.Reader.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameDecoder{reader: br}
}

// ReadFrame reads a single frame from the stream and returns its raw
// msgpack payload.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError{Kind: FrameErrorPartial}: incomplete frame (fatal)
//   - *FrameError{Kind: FrameErrorTooLarge}: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(d.reader, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// probeFrameType extracts the "type" field from a msgpack map without
// fully unmarshaling the payload.
func probeFrameType(payload []byte) (string, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err := dec.DecodeMapLen()
	if err != nil {
		return "", err
	}
	for range n {
		key, err := dec.DecodeString()
		if err != nil {
			return "", err
		}
		if key == "type" {
			return dec.DecodeString()
		}
		if err := dec.Skip(); err != nil {
			return "", err
		}
	}
	return "", errors.New("missing type field")
}

// DecodeFrame decodes a payload and returns a typed frame: *OutcomeFrame,
// *OutputFrame, or *EndFrame.
func DecodeFrame(payload []byte) (any, error) {
	frameType, err := probeFrameType(payload)
	if err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode frame type", Err: err}
	}

	switch frameType {
	case OutcomeType:
		return DecodeOutcome(payload)
	case OutputType:
		return DecodeOutput(payload)
	case EndType:
		return DecodeEnd(payload)
	default:
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unknown frame type %q", frameType)}
	}
}

// DecodeOutcome decodes a payload as an OutcomeFrame.
func DecodeOutcome(payload []byte) (*OutcomeFrame, error) {
	var f OutcomeFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode outcome frame", Err: err}
	}
	return &f, nil
}

// DecodeOutput decodes a payload as an OutputFrame.
func DecodeOutput(payload []byte) (*OutputFrame, error) {
	var f OutputFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode output frame", Err: err}
	}
	return &f, nil
}

// DecodeEnd decodes a payload as an EndFrame.
func DecodeEnd(payload []byte) (*EndFrame, error) {
	var f EndFrame
	if err := msgpack.Unmarshal(payload, &f); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode end frame", Err: err}
	}
	return &f, nil
}

// EncodeFrame encodes a payload with a 4-byte big-endian length prefix.
func EncodeFrame(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

// EncodeOutcome msgpack-encodes and frames an OutcomeFrame. Used by tests
// and by reference child-process helpers that simulate a monitor client.
func EncodeOutcome(f *OutcomeFrame) ([]byte, error) {
	f.Type = OutcomeType
	payload, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outcome frame: %w", err)
	}
	return EncodeFrame(payload), nil
}

// EncodeOutput msgpack-encodes and frames an OutputFrame.
func EncodeOutput(f *OutputFrame) ([]byte, error) {
	f.Type = OutputType
	payload, err := msgpack.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode output frame: %w", err)
	}
	return EncodeFrame(payload), nil
}

// EncodeEnd msgpack-encodes and frames an EndFrame.
func EncodeEnd() ([]byte, error) {
	payload, err := msgpack.Marshal(&EndFrame{Type: EndType})
	if err != nil {
		return nil, fmt.Errorf("failed to encode end frame: %w", err)
	}
	return EncodeFrame(payload), nil
}
