package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/detyped/pkg/faults"
	"github.com/openfroyo/detyped/pkg/resource"
)

// Event represents something that happened to the managed tree.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RequestID is the invocation request ID, if any.
	RequestID string `json:"request_id,omitempty"`

	// Address is the invocation target address.
	Address string `json:"address,omitempty"`

	// Operation is the invocation operation id.
	Operation string `json:"operation,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeInvocationApplied  = "invocation.applied"
	EventTypeInvocationRejected = "invocation.rejected"
	EventTypeInvocationUndone   = "invocation.undone"
	EventTypePolicyViolation    = "policy.violation"
	EventTypeJournalReplayed    = "journal.replayed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher delivers events to subscribers, synchronously or through a
// buffered channel.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishInvocationApplied publishes an applied invocation.
func (ep *EventPublisher) PublishInvocationApplied(requestID string, inv *resource.ManagementInvocation, reversible bool, duration time.Duration) error {
	return ep.Publish(Event{
		Type:      EventTypeInvocationApplied,
		Source:    "engine",
		RequestID: requestID,
		Address:   inv.Address.String(),
		Operation: inv.OperationID,
		Message:   fmt.Sprintf("Applied %s", inv),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"reversible": reversible,
			"duration":   duration.Seconds(),
		},
	})
}

// PublishInvocationRejected publishes a rejected invocation.
func (ep *EventPublisher) PublishInvocationRejected(requestID string, inv *resource.ManagementInvocation, err error) error {
	level := EventLevelWarning
	if faults.ClassOf(err) == faults.ClassInternal || faults.ClassOf(err) == "" {
		level = EventLevelError
	}
	return ep.Publish(Event{
		Type:      EventTypeInvocationRejected,
		Source:    "engine",
		RequestID: requestID,
		Address:   inv.Address.String(),
		Operation: inv.OperationID,
		Message:   fmt.Sprintf("Rejected %s: %v", inv, err),
		Level:     level,
		Data: map[string]interface{}{
			"class": string(faults.ClassOf(err)),
			"code":  faults.CodeOf(err),
		},
	})
}

// PublishInvocationUndone publishes the compensation of a journal entry.
func (ep *EventPublisher) PublishInvocationUndone(entryID string, compensation *resource.ManagementInvocation) error {
	return ep.Publish(Event{
		Type:      EventTypeInvocationUndone,
		Source:    "engine",
		RequestID: entryID,
		Address:   compensation.Address.String(),
		Operation: compensation.OperationID,
		Message:   fmt.Sprintf("Undid entry %s with %s", entryID, compensation),
		Level:     EventLevelInfo,
	})
}

// PublishPolicyViolation publishes an invocation denied by policy.
func (ep *EventPublisher) PublishPolicyViolation(inv *resource.ManagementInvocation, policyName, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypePolicyViolation,
		Source:    "policy_engine",
		Address:   inv.Address.String(),
		Operation: inv.OperationID,
		Message:   fmt.Sprintf("Policy violation on %s: %s - %s", inv.Address, policyName, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// PublishJournalReplayed publishes the completion of a journal replay.
func (ep *EventPublisher) PublishJournalReplayed(entries int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeJournalReplayed,
		Source:  "engine",
		Message: fmt.Sprintf("Replayed %d journal entries", entries),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"entries":  entries,
			"duration": duration.Seconds(),
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)
			// drain whatever is already queued before delivering
			for len(batch) < ep.config.MaxBatchSize && len(ep.buffer) > 0 {
				batch = append(batch, <-ep.buffer)
			}
			ep.flushBatch(batch)
			batch = batch[:0]

		case <-ep.ctx.Done():
			for len(ep.buffer) > 0 {
				batch = append(batch, <-ep.buffer)
			}
			ep.flushBatch(batch)
			return
		}
	}
}

func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent calls subscribers in subscription order on the caller's
// goroutine.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher, delivering buffered events first.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}
	minLevelValue := levels[minLevel]
	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByAddress creates a filter for events targeting addr.
func FilterByAddress(addr resource.Address) EventFilter {
	s := addr.String()
	return func(event Event) bool {
		return event.Address == s
	}
}
