package events

import "time"

// DomainEvent is raised by aggregates on state changes and later drained into
// the transactional outbox.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded into aggregates to collect pending events.
type EventRecorder struct {
	pending []DomainEvent
}

// Record appends an event to the pending list.
func (r *EventRecorder) Record(event DomainEvent) {
	r.pending = append(r.pending, event)
}

// PendingEvents returns events recorded since the last clear.
func (r *EventRecorder) PendingEvents() []DomainEvent {
	return r.pending
}

// ClearEvents drops the pending list, typically after outbox handoff.
func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}
