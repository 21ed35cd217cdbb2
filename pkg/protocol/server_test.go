package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/metatype"
	"github.com/openfroyo/detyped/pkg/resource"
)

// startServer runs a server over pipes and returns a started client.
func startServer(t *testing.T, invoker Invoker) (*Client, <-chan *ExitMessage) {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	server := NewServer(invoker, ReadyMessage{Version: "test", Handlers: []string{"/#configure"}}, zerolog.Nop())
	exitCh := make(chan *ExitMessage, 1)
	go func() {
		exit, _ := server.Serve(context.Background(), reqR, respW)
		_ = respW.Close()
		exitCh <- exit
	}()

	client := NewClient(reqW, respR)
	if err := client.Start(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("failed to start client: %v", err)
	}
	return client, exitCh
}

func TestServerRoundTrip(t *testing.T) {
	invoker := InvokerFunc(func(_ context.Context, req *InvocationRequest) (*InvocationResult, error) {
		if req.Operation == "reject" {
			return nil, faults.NewCardinalityError("servers already has 2 children").WithAddress(req.Address).WithOperation(req.Operation)
		}
		if req.Operation == "crash" {
			return nil, errors.New("boom")
		}
		return &InvocationResult{
			Compensation: &InvocationRequest{Address: req.Address, Operation: "remove"},
			DurationMs:   1,
		}, nil
	})

	client, exitCh := startServer(t, invoker)

	ready := client.Ready()
	if ready.Version != "test" || ready.PID == 0 || len(ready.Handlers) != 1 {
		t.Errorf("unexpected READY %+v", ready)
	}

	result, err := client.Invoke(context.Background(), &InvocationRequest{Address: "/servers", Operation: "add"})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if result.ID == "" {
		t.Error("expected the client to assign an id")
	}
	if result.Compensation == nil || result.Compensation.Operation != "remove" {
		t.Errorf("expected remove compensation, got %+v", result.Compensation)
	}

	_, err = client.Invoke(context.Background(), &InvocationRequest{ID: "r2", Address: "/servers", Operation: "reject"})
	if !faults.IsCardinality(err) {
		t.Fatalf("expected cardinality fault, got %v", err)
	}
	fe, _ := faults.As(err)
	if fe.Address != "/servers" || fe.Operation != "reject" || fe.Code != faults.ErrCodeCardinality {
		t.Errorf("expected fault fields to survive the wire, got %+v", fe)
	}

	_, err = client.Invoke(context.Background(), &InvocationRequest{Address: "/", Operation: "crash"})
	if faults.ClassOf(err) != faults.ClassInternal {
		t.Errorf("expected internal fault for a plain error, got %v", err)
	}

	exit, err := client.Close()
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if exit.Reason != "stdin_closed" || exit.Invocations != 3 || exit.Rejected != 2 {
		t.Errorf("unexpected EXIT %+v", exit)
	}
	if served := <-exitCh; served.Invocations != 3 {
		t.Errorf("expected the server to count 3 invocations, got %d", served.Invocations)
	}
}

func TestServerAnswersMalformedLines(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	called := false
	server := NewServer(InvokerFunc(func(context.Context, *InvocationRequest) (*InvocationResult, error) {
		called = true
		return &InvocationResult{}, nil
	}), ReadyMessage{}, zerolog.Nop())
	go func() {
		_, _ = server.Serve(context.Background(), reqR, respW)
		_ = respW.Close()
	}()

	dec := NewDecoder(respR)
	if msg, err := dec.Decode(); err != nil || msg.Type != MessageTypeReady {
		t.Fatalf("expected READY, got %v, %v", msg, err)
	}

	go func() {
		_, _ = reqW.Write([]byte("garbage\n"))
		_, _ = reqW.Write([]byte(`{"type":"INVOKE","timestamp":"2024-01-01T00:00:00Z","data":{"id":"x","address":"nope","operation":"add"}}` + "\n"))
		_ = reqW.Close()
	}()

	for i, wantID := range []string{"", "x"} {
		msg, err := dec.Decode()
		if err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
		if msg.Type != MessageTypeError {
			t.Fatalf("reply %d: expected ERROR, got %s", i, msg.Type)
		}
		var em ErrorMessage
		if err := ParseData(msg.Data, &em); err != nil {
			t.Fatal(err)
		}
		if em.ID != wantID || em.Class != string(faults.ClassValidation) {
			t.Errorf("reply %d: unexpected error message %+v", i, em)
		}
	}

	msg, err := dec.Decode()
	if err != nil || msg.Type != MessageTypeExit {
		t.Fatalf("expected EXIT, got %v, %v", msg, err)
	}
	if called {
		t.Error("invoker should not see malformed requests")
	}
}

func TestInvocationConversion(t *testing.T) {
	sig := []resource.ParameterInfo{
		{Name: "port", Type: metatype.Integer},
		{Name: "name", Type: metatype.String, Nillable: true},
	}
	lookup := func(addr resource.Address, op string) ([]resource.ParameterInfo, error) {
		if op != "add" {
			return nil, faults.NewValidationError("no handler for %s", op).WithCode(faults.ErrCodeNoHandler)
		}
		return sig, nil
	}

	inv, err := resource.NewInvocation(resource.MustAddress("/server[@name='a/b']"), "add", map[string]metatype.MetaValue{
		"port": metatype.IntValue(80),
		"name": nil,
	})
	if err != nil {
		t.Fatal(err)
	}

	req, err := EncodeInvocation("r1", inv, sig)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(req.Params["port"]) != "80" || string(req.Params["name"]) != "null" {
		t.Errorf("unexpected params %v", req.Params)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	var wire InvocationRequest
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatal(err)
	}

	back, err := DecodeInvocation(&wire, lookup)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !back.Address.Equal(inv.Address) || back.OperationID != "add" {
		t.Errorf("expected %s, got %s", inv, back)
	}
	if !back.Param("port").Equal(metatype.IntValue(80)) {
		t.Errorf("expected port 80, got %v", back.Param("port"))
	}
	if _, present := back.Params["name"]; !present || !metatype.IsNil(back.Param("name")) {
		t.Error("expected an explicit nil name")
	}

	wire.Params["port"] = json.RawMessage(`"80"`)
	_, err = DecodeInvocation(&wire, lookup)
	fe, ok := faults.As(err)
	if !ok || fe.Details["parameter"] != "port" || fe.Operation != "add" {
		t.Errorf("expected a port decode fault, got %v", err)
	}

	wire.Operation = "bogus"
	if _, err := DecodeInvocation(&wire, lookup); faults.CodeOf(err) != faults.ErrCodeNoHandler {
		t.Errorf("expected NO_HANDLER, got %v", err)
	}
}
