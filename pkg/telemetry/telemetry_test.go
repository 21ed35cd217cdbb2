package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/resource"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"service profile", func(c *Config) { *c = *ProfileConfig(ProfileService) }, false},
		{"debug profile", func(c *Config) { *c = *ProfileConfig(ProfileDebug) }, false},
		{"missing service name", func(c *Config) { c.ServiceName = "" }, true},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Exporter = "jaeger" }, true},
		{"bad sampling", func(c *Config) { c.Tracing.SamplingRate = 2 }, true},
		{"empty buffer", func(c *Config) { c.Events.BufferSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseProfile(t *testing.T) {
	tests := []struct {
		in      string
		want    Profile
		wantErr bool
	}{
		{"", ProfileInteractive, false},
		{"interactive", ProfileInteractive, false},
		{"Service", ProfileService, false},
		{"debug", ProfileDebug, false},
		{"production", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfile(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProfileConfig(t *testing.T) {
	service := ProfileConfig(ProfileService)
	if service.Logging.Format != "json" || !service.Logging.EnableSampling || !service.Events.EnableAsync {
		t.Errorf("expected sampled json logs and async events, got %+v %+v", service.Logging, service.Events)
	}
	if service.Tracing.Enabled {
		t.Error("expected service tracing to wait for an endpoint")
	}

	debug := ProfileConfig(ProfileDebug)
	if debug.Logging.Level != "debug" || !debug.Tracing.Enabled || debug.Tracing.Exporter != "stdout" {
		t.Errorf("expected debug logs and stdout spans, got %+v %+v", debug.Logging, debug.Tracing)
	}

	if interactive := ProfileConfig(ProfileInteractive); interactive.Logging.Format != "console" {
		t.Errorf("expected console logs, got %s", interactive.Logging.Format)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DETYPED_OTLP_ENDPOINT", "collector:4317")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Exporter != "otlp" || cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("expected otlp tracing to collector:4317, got %+v", cfg.Tracing)
	}
}

func TestLoggerInvocationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "info", Format: "json"}, &buf)

	inv, err := resource.NewInvocation(resource.MustAddress("/servers"), "add", nil)
	if err != nil {
		t.Fatalf("failed to create invocation: %v", err)
	}
	cause := faults.NewCardinalityError("too many").WithCode(faults.ErrCodeCardinality)
	logger.WithInvocation("req-1", inv).WithError(cause).Info("rejected")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	expected := map[string]string{
		"address":     "/servers",
		"operation":   "add",
		"request_id":  "req-1",
		"error_class": "cardinality",
		"error_code":  faults.ErrCodeCardinality,
		"message":     "rejected",
	}
	for k, want := range expected {
		if got, _ := entry[k].(string); got != want {
			t.Errorf("expected %s=%q, got %q", k, want, got)
		}
	}
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("shown")
	if buf.Len() == 0 {
		t.Error("expected warn to be written")
	}
}

func TestMetricsRecordInvocationOutcomes(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	m.RecordInvocation("add", StatusApplied, time.Millisecond)
	m.RecordInvocation("add", StatusRejected, time.Millisecond)
	m.RecordRejection("cardinality", faults.ErrCodeCardinality)
	m.RecordCompensation("remove")
	m.SetTreeSize(4)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("failed to gather: %v", err)
	}
	series := make(map[string]int)
	values := make(map[string]float64)
	for _, f := range families {
		series[f.GetName()] = len(f.GetMetric())
		if f.GetName() == "detyped_tree_entities" {
			values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}

	if series["detyped_invocations_total"] != 2 {
		t.Errorf("expected 2 invocation series, got %d", series["detyped_invocations_total"])
	}
	if series["detyped_rejections_total"] != 1 {
		t.Errorf("expected 1 rejection series, got %d", series["detyped_rejections_total"])
	}
	if values["detyped_tree_entities"] != 4 {
		t.Errorf("expected tree size 4, got %v", values["detyped_tree_entities"])
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	m.RecordInvocation("add", StatusApplied, time.Second)
	m.RecordRejection("state", faults.ErrCodeIDOnly)
	m.SetTreeSize(1)
	if m.Registry() != nil {
		t.Error("expected no registry for disabled metrics")
	}
}

func TestAsyncEventsPreserveOrder(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 16, MaxBatchSize: 4, EnableAsync: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}

	var mu sync.Mutex
	var got []string
	ep.Subscribe(func(e Event) {
		mu.Lock()
		got = append(got, e.RequestID)
		mu.Unlock()
	}, nil)

	inv, _ := resource.NewInvocation(resource.MustAddress("/"), "configure", nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if err := ep.PublishInvocationApplied(id, inv, true, 0); err != nil {
			t.Fatalf("publish %s: %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ep.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 {
		t.Fatalf("expected 5 events, got %v", got)
	}
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		if got[i] != id {
			t.Errorf("expected event %d to be %s, got %s", i, id, got[i])
		}
	}
}
