package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestScriptEvaluator_Evaluate(t *testing.T) {
	evaluator := NewScriptEvaluator(5*time.Second, zerolog.Nop())
	ctx := context.Background()

	script := `
def add_servers(names):
    for i, name in enumerate(names):
        invoke("/server[@name='%s']" % name, "add", port = base_port + i)

add_servers(servers)
invoke("/server[@name='web-0']", "write-port", port = 9000)
invoke("/server[@name='web-1']", "configure", tags = ["a", "b"], limits = {"cpu": 2}, note = None)
invoke("/server[@name='web-1']", "resize", bytes = 1 << 70, ratio = 0.5, point = struct(x = 1))
invoke("/server[@name='web-1']", "remove")
`
	input := map[string]interface{}{
		"servers":   []string{"web-0", "web-1"},
		"base_port": 8080,
	}

	requests, err := evaluator.Evaluate(ctx, script, input)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(requests) != 6 {
		t.Fatalf("expected 6 invocations, got %d", len(requests))
	}

	tests := []struct {
		index     int
		address   string
		operation string
		params    map[string]string
	}{
		{0, "/server[@name='web-0']", "add", map[string]string{"port": "8080"}},
		{1, "/server[@name='web-1']", "add", map[string]string{"port": "8081"}},
		{2, "/server[@name='web-0']", "write-port", map[string]string{"port": "9000"}},
		{3, "/server[@name='web-1']", "configure", map[string]string{"tags": `["a","b"]`, "limits": `{"cpu":2}`, "note": "null"}},
		{4, "/server[@name='web-1']", "resize", map[string]string{"bytes": "1180591620717411303424", "ratio": "0.5", "point": `{"x":1}`}},
		{5, "/server[@name='web-1']", "remove", nil},
	}
	seen := map[string]bool{}
	for _, tt := range tests {
		req := requests[tt.index]
		if req.Address != tt.address || req.Operation != tt.operation {
			t.Errorf("invocation %d: expected %s %s, got %s %s", tt.index, tt.address, tt.operation, req.Address, req.Operation)
		}
		if len(req.Params) != len(tt.params) {
			t.Errorf("invocation %d: expected %d params, got %d", tt.index, len(tt.params), len(req.Params))
		}
		for name, want := range tt.params {
			if got := string(req.Params[name]); got != want {
				t.Errorf("invocation %d: expected %s=%s, got %s", tt.index, name, want, got)
			}
		}
		if req.ID == "" || seen[req.ID] {
			t.Errorf("invocation %d: expected a unique id, got %q", tt.index, req.ID)
		}
		seen[req.ID] = true
	}
}

func TestScriptEvaluator_Errors(t *testing.T) {
	evaluator := NewScriptEvaluator(5*time.Second, zerolog.Nop())
	ctx := context.Background()

	tests := []struct {
		name    string
		script  string
		input   map[string]interface{}
		wantErr string
	}{
		{"syntax error", "invoke(", nil, "failed"},
		{"runtime error", "x = 1 / 0", nil, "division by zero"},
		{"missing operation", `invoke("/a")`, nil, "invoke"},
		{"non-string address", `invoke(1, "add")`, nil, "invoke"},
		{"unsupported parameter", `invoke("/a", "add", f = lambda: 1)`, nil, "parameter f"},
		{"non-string dict key", `invoke("/a", "add", m = {1: 2})`, nil, "dict key"},
		{"unsupported input", "", map[string]interface{}{"x": struct{}{}}, "input x"},
		{"shadowed builtin", "", map[string]interface{}{"invoke": 1}, "shadows"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluator.Evaluate(ctx, tt.script, tt.input)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %v", tt.wantErr, err)
			}
		})
	}
}

func TestScriptEvaluator_Timeout(t *testing.T) {
	evaluator := NewScriptEvaluator(100*time.Millisecond, zerolog.Nop())

	script := `
def spin():
    n = 0
    for i in range(1000000000):
        n += i
    return n

spin()
`
	start := time.Now()
	_, err := evaluator.Evaluate(context.Background(), script, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "cancelled") {
		t.Errorf("expected cancellation, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("expected the script to stop promptly, took %v", elapsed)
	}
}

func TestScriptEvaluator_MaxSteps(t *testing.T) {
	evaluator := NewScriptEvaluator(5*time.Second, zerolog.Nop()).WithMaxSteps(1000)

	_, err := evaluator.Evaluate(context.Background(), "def loop():\n    for i in range(100000):\n        pass\n\nloop()\n", nil)
	if err == nil {
		t.Fatal("expected step limit error")
	}
}

func TestScriptEvaluator_EvaluateFile(t *testing.T) {
	evaluator := NewScriptEvaluator(0, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "setup.star")
	if err := os.WriteFile(path, []byte(`invoke("/server[@name='a']", "add")`+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}
	requests, err := evaluator.EvaluateFile(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("EvaluateFile failed: %v", err)
	}
	if len(requests) != 1 || requests[0].Operation != "add" {
		t.Errorf("unexpected invocations %+v", requests)
	}

	if _, err := evaluator.EvaluateFile(context.Background(), path+".missing", nil); err == nil {
		t.Error("expected error for missing script")
	}
}
