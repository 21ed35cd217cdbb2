package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const denyNothing = `package %s

import rego.v1

deny contains msg if {
	false
	msg := "never"
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	policyFile := filepath.Join(t.TempDir(), "no-root-writes.rego")
	regoContent := `# Forbids writes on the root entity.
# severity: error

package custom.root

import rego.v1

deny contains msg if {
	input.address == "/"
	msg := "root is read-only"
}`
	writeFile(t, policyFile, regoContent)

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "no-root-writes" {
		t.Errorf("expected name 'no-root-writes', got '%s'", policy.Name)
	}
	if policy.Description != "Forbids writes on the root entity." {
		t.Errorf("unexpected description %q", policy.Description)
	}
	if policy.Severity != SeverityError {
		t.Errorf("expected severity error, got %s", policy.Severity)
	}
	if policy.Rego != regoContent {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Metadata["source"] != policyFile {
		t.Errorf("expected source metadata, got %v", policy.Metadata)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	policyFile := filepath.Join(t.TempDir(), "policy.json")

	policy := Policy{
		Name:        "test-json-policy",
		Description: "A test policy",
		Rego:        "package test\n\nimport rego.v1\n\ndeny contains \"x\" if { false }",
		Severity:    SeverityCritical,
		Enabled:     true,
	}
	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	writeFile(t, policyFile, string(data))

	loaded, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if loaded.Name != policy.Name || loaded.Severity != policy.Severity {
		t.Errorf("expected %s/%s, got %s/%s", policy.Name, policy.Severity, loaded.Name, loaded.Severity)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("expected a creation time")
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported type", "policy.yaml", "name: x"},
		{"invalid JSON", "bad.json", "{not json"},
		{"JSON without name", "anon.json", `{"rego":"package x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)
			if _, err := loader.loadFromFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestLoadFromDirectory_Recursive(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "a.rego"), fmt.Sprintf(denyNothing, "a"))
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), fmt.Sprintf(denyNothing, "b"))
	writeFile(t, filepath.Join(dir, "nested", "deeper", "c.rego"), fmt.Sprintf(denyNothing, "c"))
	writeFile(t, filepath.Join(dir, "README.md"), "# policies")
	writeFile(t, filepath.Join(dir, "broken.json"), "{")

	loaded, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 policies, got %d", len(loaded))
	}
	for i, name := range []string{"a", "b", "c"} {
		if loaded[i].Name != name {
			t.Errorf("expected policy %d to be %s, got %s", i, name, loaded[i].Name)
		}
	}
}

func TestCacheFollowsModTime(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "p.rego")
	writeFile(t, path, "# first\npackage p")

	first, err := loader.loadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, path, "# second\npackage p")
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	second, err := loader.loadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if first.Description != "first" || second.Description != "second" {
		t.Errorf("expected the changed file to be re-read, got %q then %q", first.Description, second.Description)
	}

	loader.ClearCache()
	if len(loader.cache) != 0 {
		t.Error("expected empty cache")
	}
}

func TestLoadBundle(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "bundle.json")

	bundle := PolicyBundle{
		Name:    "site",
		Version: "1.0.0",
		Policies: []Policy{
			{Name: "one", Rego: fmt.Sprintf(denyNothing, "one"), Enabled: true},
			{Name: "two", Rego: fmt.Sprintf(denyNothing, "two"), Enabled: true, Severity: SeverityError},
		},
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, path, string(data))

	loaded, err := loader.LoadBundle(path)
	if err != nil {
		t.Fatalf("Failed to load bundle: %v", err)
	}
	if loaded.Name != "site" || len(loaded.Policies) != 2 {
		t.Fatalf("unexpected bundle %+v", loaded)
	}
	if loaded.Policies[0].Severity != SeverityWarning || loaded.Policies[1].Severity != SeverityError {
		t.Errorf("unexpected severities %s, %s", loaded.Policies[0].Severity, loaded.Policies[1].Severity)
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantDesc     string
		wantSeverity Severity
	}{
		{"no comments", "package x", "", SeverityWarning},
		{"multi line", "# Line one\n# line two\npackage x", "Line one line two", SeverityWarning},
		{"severity only", "# severity: critical\npackage x", "", SeverityCritical},
		{"stops at blank line", "# Top\n\n# later\npackage x", "Top", SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, sev := parseHeader(tt.content)
			if desc != tt.wantDesc {
				t.Errorf("expected description %q, got %q", tt.wantDesc, desc)
			}
			if sev != tt.wantSeverity {
				t.Errorf("expected severity %s, got %s", tt.wantSeverity, sev)
			}
		})
	}
}

func TestWatchReloadsEngine(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.rego"), fmt.Sprintf(denyNothing, "first"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader, err := eng.Watch(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Failed to watch: %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	if _, err := eng.GetPolicy("first"); err != nil {
		t.Fatalf("expected initial policy: %v", err)
	}

	writeFile(t, filepath.Join(dir, "second.rego"), fmt.Sprintf(denyNothing, "second"))

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := eng.GetPolicy("second"); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("expected the new policy file to be picked up")
}
