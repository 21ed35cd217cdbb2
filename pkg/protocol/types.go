// Package protocol defines the JSON-lines protocol for driving a management
// model over a pair of streams.
//
// The host sends READY once, then answers every INVOKE with a RESULT or an
// ERROR carrying the same id, and sends EXIT when its input ends.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/detyped/pkg/faults"
)

// MessageType represents the type of message in the protocol.
type MessageType string

const (
	// MessageTypeReady announces that the host accepts invocations
	MessageTypeReady MessageType = "READY"
	// MessageTypeInvoke carries an invocation request
	MessageTypeInvoke MessageType = "INVOKE"
	// MessageTypeResult reports an applied invocation
	MessageTypeResult MessageType = "RESULT"
	// MessageTypeError reports a rejected invocation or a protocol failure
	MessageTypeError MessageType = "ERROR"
	// MessageTypeExit is sent before the host terminates
	MessageTypeExit MessageType = "EXIT"
)

// Message is the envelope of every protocol line.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ReadyMessage is sent when the host is ready to receive invocations.
type ReadyMessage struct {
	Version string `json:"version"`
	PID     int    `json:"pid"`
	// Handlers lists the registered "/type#operation" keys.
	Handlers []string          `json:"handlers"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// InvocationRequest is the wire form of a management invocation. Params are
// JSON values in the shapes of the target signature; a present null is an
// explicit nil.
type InvocationRequest struct {
	ID        string                     `json:"id,omitempty" validate:"omitempty,max=128"`
	Address   string                     `json:"address" validate:"required,startswith=/"`
	Operation string                     `json:"operation" validate:"required,max=256"`
	Params    map[string]json.RawMessage `json:"params,omitempty"`
}

// InvocationResult reports an applied invocation.
type InvocationResult struct {
	ID string `json:"id,omitempty"`
	// Compensation undoes the invocation; nil when it cannot be undone.
	Compensation *InvocationRequest `json:"compensation,omitempty"`
	// EntryID is the journal entry, when the host keeps a journal.
	EntryID    string  `json:"entry_id,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

// ErrorMessage reports a failed invocation.
type ErrorMessage struct {
	ID        string                 `json:"id,omitempty"`
	Class     string                 `json:"class"`
	Code      string                 `json:"code,omitempty"`
	Message   string                 `json:"message"`
	Address   string                 `json:"address,omitempty"`
	Operation string                 `json:"operation,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ExitMessage is sent before the host terminates.
type ExitMessage struct {
	Reason      string `json:"reason"`
	ExitCode    int    `json:"exit_code"`
	Invocations int    `json:"invocations"`
	Rejected    int    `json:"rejected"`
}

var validate = validator.New()

// Validate checks if the message type is valid.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeReady, MessageTypeInvoke, MessageTypeResult,
		MessageTypeError, MessageTypeExit:
		return nil
	default:
		return fmt.Errorf("invalid message type: %s", mt)
	}
}

// Validate checks the request fields. Failures are validation faults.
func (req *InvocationRequest) Validate() error {
	if err := validate.Struct(req); err != nil {
		return faults.NewValidationError("invalid invocation request: %v", err).
			WithCode(faults.ErrCodeDecode).
			WithCause(err)
	}
	return nil
}

// NewErrorMessage describes err for the given request id.
func NewErrorMessage(id string, err error) *ErrorMessage {
	msg := &ErrorMessage{ID: id, Message: err.Error(), Class: string(faults.ClassInternal)}
	if fe, ok := faults.As(err); ok {
		msg.Class = string(fe.Class)
		msg.Code = fe.Code
		msg.Message = fe.Message
		msg.Address = fe.Address
		msg.Operation = fe.Operation
		if len(fe.Details) > 0 {
			msg.Details = make(map[string]interface{}, len(fe.Details))
			for k, v := range fe.Details {
				msg.Details[k] = v
			}
		}
	}
	return msg
}

// Err rebuilds the fault described by the message.
func (m *ErrorMessage) Err() *faults.Error {
	fe := &faults.Error{
		Class:     faults.Class(m.Class),
		Code:      m.Code,
		Message:   m.Message,
		Address:   m.Address,
		Operation: m.Operation,
	}
	for k, v := range m.Details {
		fe = fe.WithDetail(k, v)
	}
	return fe
}
