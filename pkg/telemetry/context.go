package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/resource"
)

// Telemetry combines logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Disabled returns telemetry that discards logs and records nothing.
func Disabled() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	tracer, _ := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	metrics, _ := NewMetrics(cfg.Metrics)
	events, _ := NewEventPublisher(cfg.Events)
	return &Telemetry{
		Logger:  Nop(),
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context, or
// nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer serves metrics until ctx is done, if metrics are enabled.
func (t *Telemetry) StartMetricsServer(ctx context.Context) error {
	return t.Metrics.StartMetricsServer(ctx)
}

// InvocationScope instruments one invocation: a span, a logger carrying the
// invocation fields, and a timer.
type InvocationScope struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer

	tel       *Telemetry
	requestID string
	inv       *resource.ManagementInvocation
}

// StartInvocation begins instrumenting inv under the given span name.
func (t *Telemetry) StartInvocation(ctx context.Context, spanName, requestID string, inv *resource.ManagementInvocation) *InvocationScope {
	spanCtx, span := t.Tracer.StartInvocationSpan(ctx, spanName, requestID, inv)

	logger := t.Logger.WithInvocation(requestID, inv)
	if span.SpanContext().IsValid() {
		logger = logger.WithField("trace_id", span.SpanContext().TraceID().String())
	}

	return &InvocationScope{
		Ctx:       logger.WithContext(spanCtx),
		Span:      span,
		Logger:    logger,
		Timer:     NewTimer(),
		tel:       t,
		requestID: requestID,
		inv:       inv,
	}
}

// Applied ends the scope for an applied invocation.
func (s *InvocationScope) Applied(compensation *resource.ManagementInvocation) {
	duration := s.Timer.Duration()
	reversible := compensation != nil

	s.Span.SetAttributes(AttrReversible.Bool(reversible))
	RecordSuccess(s.Span)
	s.Span.End()

	s.tel.Metrics.RecordInvocation(s.inv.OperationID, StatusApplied, duration)
	if !reversible {
		s.tel.Metrics.RecordIrreversible(s.inv.OperationID)
	}
	if err := s.tel.Events.PublishInvocationApplied(s.requestID, s.inv, reversible, duration); err != nil {
		s.Logger.WithError(err).Warn("failed to publish event")
	}
	s.Logger.WithField("reversible", reversible).WithField("duration", duration).Debug("invocation applied")
}

// Rejected ends the scope for a rejected invocation.
func (s *InvocationScope) Rejected(err error) {
	duration := s.Timer.Duration()

	RecordError(s.Span, err)
	s.Span.End()

	s.tel.Metrics.RecordInvocation(s.inv.OperationID, StatusRejected, duration)
	s.tel.Metrics.RecordRejection(string(faults.ClassOf(err)), faults.CodeOf(err))
	if perr := s.tel.Events.PublishInvocationRejected(s.requestID, s.inv, err); perr != nil {
		s.Logger.WithError(perr).Warn("failed to publish event")
	}
	s.Logger.WithError(err).Info("invocation rejected")
}

// Undone ends the scope for a compensation applied to undo journal entry
// entryID.
func (s *InvocationScope) Undone(entryID string) {
	duration := s.Timer.Duration()

	RecordSuccess(s.Span)
	s.Span.End()

	s.tel.Metrics.RecordInvocation(s.inv.OperationID, StatusUndone, duration)
	s.tel.Metrics.RecordCompensation(s.inv.OperationID)
	if err := s.tel.Events.PublishInvocationUndone(entryID, s.inv); err != nil {
		s.Logger.WithError(err).Warn("failed to publish event")
	}
	s.Logger.WithField("entry_id", entryID).Info("invocation undone")
}
