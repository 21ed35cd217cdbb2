package telemetry

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config configures the telemetry of a model host: the froyo CLI, froyo
// serve or a model-runner.
type Config struct {
	// ServiceName and ServiceVersion identify the host in traces and logs.
	ServiceName    string
	ServiceVersion string

	// Environment is reported on spans and passed to policies as
	// context.environment.
	Environment string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error, fatal, panic.
	Level string

	// Format is console or json.
	Format string

	// Output is stderr, stdout or a file path. Hosts serving the invocation
	// protocol own stdout and must not log there.
	Output string

	EnableCaller bool

	// EnableSampling keeps the first SamplingInitial messages of each
	// second and then every SamplingThereafter-th one.
	EnableSampling     bool
	SamplingInitial    int
	SamplingThereafter int

	// TimeFormat is unix, unixms or rfc3339.
	TimeFormat string
}

// TracingConfig configures invocation spans.
type TracingConfig struct {
	Enabled bool

	// Exporter is otlp, stdout or none. The stdout exporter writes to
	// stderr.
	Exporter string

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string

	// SamplingRate is the fraction of root spans kept, from 0 to 1.
	SamplingRate float64

	MaxExportBatchSize int
	ExportTimeout      time.Duration

	// Headers are sent with every OTLP export.
	Headers  map[string]string
	Insecure bool
}

// MetricsConfig configures the Prometheus collectors and their endpoint.
type MetricsConfig struct {
	Enabled bool

	// ListenAddress and Path locate the scrape endpoint.
	ListenAddress string
	Path          string

	// Namespace prefixes every metric name.
	Namespace string

	// DefaultHistogramBuckets are the invocation duration buckets, in
	// seconds.
	DefaultHistogramBuckets []float64
}

// EventsConfig configures the in-process event bus.
type EventsConfig struct {
	Enabled bool

	// BufferSize bounds the queue of undelivered events in async mode.
	BufferSize int

	// MaxBatchSize bounds how many queued events one delivery pass drains.
	MaxBatchSize int

	EnableAsync bool
}

// Profile names a telemetry preset for the way a host runs.
type Profile string

const (
	// ProfileInteractive suits froyo commands run from a terminal.
	ProfileInteractive Profile = "interactive"

	// ProfileDebug logs everything with callers and prints spans.
	ProfileDebug Profile = "debug"

	// ProfileService suits long-running hosts: JSON logs with sampling,
	// asynchronous events and sampled traces.
	ProfileService Profile = "service"
)

// Profiles lists the known profiles.
var Profiles = []Profile{ProfileInteractive, ProfileDebug, ProfileService}

// ParseProfile returns the profile called name. An empty name is
// ProfileInteractive.
func ParseProfile(name string) (Profile, error) {
	if name == "" {
		return ProfileInteractive, nil
	}
	for _, p := range Profiles {
		if string(p) == strings.ToLower(name) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown telemetry profile %q (want one of %v)", name, Profiles)
}

// DefaultConfig returns the interactive configuration: console logs on
// stderr, metrics on :9090 and synchronous events. Tracing is off.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "detyped",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stderr",
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            map[string]string{},
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			ListenAddress:           ":9090",
			Path:                    "/metrics",
			Namespace:               "detyped",
			DefaultHistogramBuckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		Events: EventsConfig{
			Enabled:      true,
			BufferSize:   1000,
			MaxBatchSize: 100,
		},
	}
}

// ProfileConfig returns the configuration preset for p.
func ProfileConfig(p Profile) *Config {
	cfg := DefaultConfig()
	switch p {
	case ProfileDebug:
		cfg.Logging.Level = "debug"
		cfg.Logging.EnableCaller = true
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = "stdout"
	case ProfileService:
		cfg.Logging.Format = "json"
		cfg.Logging.EnableSampling = true
		cfg.Logging.TimeFormat = "unixms"
		cfg.Tracing.SamplingRate = 0.1
		cfg.Events.EnableAsync = true
	}
	return cfg
}

// ApplyEnv overrides fields from LOG_LEVEL and the DETYPED_* variables.
// Unset variables leave the configuration untouched. An OTLP endpoint turns
// tracing on.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DETYPED_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DETYPED_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("DETYPED_OTLP_ENDPOINT"); v != "" {
		c.Tracing.Enabled = true
		c.Tracing.Exporter = "otlp"
		c.Tracing.Endpoint = v
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return fmt.Errorf("service name is required")
	case c.ServiceVersion == "":
		return fmt.Errorf("service version is required")
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Tracing.validate(); err != nil {
		return err
	}
	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return fmt.Errorf("metrics need a namespace")
	}
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", c.Events.BufferSize)
	}
	return nil
}

func (l LoggingConfig) validate() error {
	if _, ok := logLevels[l.Level]; !ok {
		return fmt.Errorf("invalid log level %q", l.Level)
	}
	if l.Format != "console" && l.Format != "json" {
		return fmt.Errorf("invalid log format %q: want console or json", l.Format)
	}
	return nil
}

func (t TracingConfig) validate() error {
	if t.Enabled {
		switch t.Exporter {
		case "otlp", "stdout", "none":
		default:
			return fmt.Errorf("invalid trace exporter %q", t.Exporter)
		}
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be within [0, 1], got %g", t.SamplingRate)
	}
	return nil
}
