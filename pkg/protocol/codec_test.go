package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "encode ready message",
			msgType: MessageTypeReady,
			data:    &ReadyMessage{Version: "1.0.0", PID: 1234, Handlers: []string{"/servers#add"}},
		},
		{
			name:    "encode invoke message",
			msgType: MessageTypeInvoke,
			data: &InvocationRequest{
				ID:        "req-1",
				Address:   "/servers",
				Operation: "add",
				Params:    map[string]json.RawMessage{"port": json.RawMessage(`8080`)},
			},
		},
		{
			name:    "encode result message",
			msgType: MessageTypeResult,
			data:    &InvocationResult{ID: "req-1", DurationMs: 0.5},
		},
		{
			name:    "encode error message",
			msgType: MessageTypeError,
			data:    &ErrorMessage{ID: "req-1", Class: "cardinality", Code: "CARDINALITY_VIOLATION", Message: "too many"},
		},
		{
			name:    "encode exit message",
			msgType: MessageTypeExit,
			data:    &ExitMessage{Reason: "stdin_closed", Invocations: 3},
		},
		{
			name:    "invalid message type",
			msgType: MessageType("CMD"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewEncoder(&buf).Encode(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			output := buf.String()
			if !strings.HasSuffix(output, "\n") {
				t.Error("output should end with newline")
			}
			if strings.Count(output, "\n") != 1 {
				t.Errorf("expected a single line, got %q", output)
			}

			var msg Message
			if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &msg); err != nil {
				t.Fatalf("failed to unmarshal output: %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("expected type %s, got %s", tt.msgType, msg.Type)
			}
			if msg.Timestamp.IsZero() {
				t.Error("expected a timestamp")
			}
		})
	}
}

func TestEncodeInvokeValidates(t *testing.T) {
	tests := []struct {
		name string
		req  *InvocationRequest
	}{
		{"missing address", &InvocationRequest{Operation: "add"}},
		{"relative address", &InvocationRequest{Address: "servers", Operation: "add"}},
		{"missing operation", &InvocationRequest{Address: "/servers"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewEncoder(&buf).EncodeInvoke(tt.req); err == nil {
				t.Error("expected validation error")
			}
			if buf.Len() != 0 {
				t.Errorf("expected nothing written, got %q", buf.String())
			}
		})
	}
}

func TestDecoder(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"INVOKE","timestamp":"2024-01-01T00:00:00Z","data":{"id":"a","address":"/servers","operation":"add"}}`,
		``,
		`{"type":"INVOKE","timestamp":"2024-01-01T00:00:00Z","data":{"id":"b","address":"/","operation":"configure","params":{"enabled":true}}}`,
		`not json`,
		`{"type":"BOGUS","timestamp":"2024-01-01T00:00:00Z"}`,
		`{"type":"READY","timestamp":"2024-01-01T00:00:00Z","data":{"version":"1"}}`,
	}, "\n")
	dec := NewDecoder(strings.NewReader(input))

	req, err := dec.DecodeInvoke()
	if err != nil {
		t.Fatalf("first invoke: %v", err)
	}
	if req.ID != "a" || req.Address != "/servers" || req.Operation != "add" {
		t.Errorf("unexpected request %+v", req)
	}

	req, err = dec.DecodeInvoke()
	if err != nil {
		t.Fatalf("second invoke after blank line: %v", err)
	}
	if string(req.Params["enabled"]) != "true" {
		t.Errorf("expected enabled=true, got %s", req.Params["enabled"])
	}

	for _, name := range []string{"invalid JSON", "unknown type", "unexpected type"} {
		if _, err := dec.DecodeInvoke(); !IsMalformed(err) {
			t.Errorf("%s: expected malformed error, got %v", name, err)
		}
	}

	if _, err := dec.Decode(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestDecoderLineTooLong(t *testing.T) {
	long := `{"type":"INVOKE","data":{"address":"/` + strings.Repeat("x", MaxLineSize) + `"}}`
	_, err := NewDecoder(strings.NewReader(long)).Decode()
	if err == nil || err == io.EOF {
		t.Fatalf("expected scan error, got %v", err)
	}
	if IsMalformed(err) {
		t.Error("a broken stream should not be reported as a malformed line")
	}
}
