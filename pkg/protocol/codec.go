package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/openfroyo/detyped/pkg/faults"
)

// MaxLineSize bounds a single protocol line.
const MaxLineSize = 10 * 1024 * 1024

// Encoder writes protocol messages to an io.Writer. It is safe for
// concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewEncoder creates a new protocol encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w: bufio.NewWriter(w),
	}
}

// Encode writes one message line and flushes it.
func (e *Encoder) Encode(msgType MessageType, data interface{}) error {
	if err := msgType.Validate(); err != nil {
		return fmt.Errorf("invalid message type: %w", err)
	}

	var dataBytes []byte
	var err error
	if data != nil {
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal data: %w", err)
		}
	}

	msgBytes, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.w.Write(msgBytes); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	return nil
}

// EncodeReady sends a READY message.
func (e *Encoder) EncodeReady(ready *ReadyMessage) error {
	return e.Encode(MessageTypeReady, ready)
}

// EncodeInvoke sends an INVOKE message.
func (e *Encoder) EncodeInvoke(req *InvocationRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return e.Encode(MessageTypeInvoke, req)
}

// EncodeResult sends a RESULT message.
func (e *Encoder) EncodeResult(result *InvocationResult) error {
	return e.Encode(MessageTypeResult, result)
}

// EncodeError sends an ERROR message.
func (e *Encoder) EncodeError(err *ErrorMessage) error {
	return e.Encode(MessageTypeError, err)
}

// EncodeExit sends an EXIT message.
func (e *Encoder) EncodeExit(exit *ExitMessage) error {
	return e.Encode(MessageTypeExit, exit)
}

// Decoder reads protocol messages from an io.Reader.
type Decoder struct {
	r *bufio.Scanner
}

// NewDecoder creates a new protocol decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	return &Decoder{
		r: scanner,
	}
}

// Decode reads the next message. Blank lines are skipped; io.EOF marks
// the end of the stream.
func (d *Decoder) Decode() (*Message, error) {
	for {
		if !d.r.Scan() {
			if err := d.r.Err(); err != nil {
				return nil, fmt.Errorf("scan error: %w", err)
			}
			return nil, io.EOF
		}
		if len(d.r.Bytes()) > 0 {
			break
		}
	}

	var msg Message
	if err := json.Unmarshal(d.r.Bytes(), &msg); err != nil {
		return nil, malformed("failed to unmarshal message: %v", err)
	}

	if err := msg.Type.Validate(); err != nil {
		return nil, malformed("invalid message: %v", err)
	}

	return &msg, nil
}

// DecodeInvoke reads the next message, which must be an INVOKE.
func (d *Decoder) DecodeInvoke() (*InvocationRequest, error) {
	msg, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if msg.Type != MessageTypeInvoke {
		return nil, malformed("expected INVOKE message, got %s", msg.Type)
	}
	var req InvocationRequest
	if err := ParseData(msg.Data, &req); err != nil {
		return nil, err
	}
	return &req, req.Validate()
}

// ParseData decodes the payload of a message.
func ParseData(data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return malformed("message has no data")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return malformed("failed to parse data: %v", err)
	}
	return nil
}

// IsMalformed reports whether err came from a line that could be read but
// not understood. The stream stays usable after such an error.
func IsMalformed(err error) bool {
	return faults.CodeOf(err) == faults.ErrCodeDecode
}

func malformed(format string, args ...interface{}) error {
	return faults.NewValidationError(format, args...).WithCode(faults.ErrCodeDecode)
}
