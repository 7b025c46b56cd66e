package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation event types.
const (
	// TypeJobCompleted is emitted when one job of a batch reaches a terminal status.
	TypeJobCompleted = "generation.job_completed"

	// TypeBatchCompleted is emitted once per successful batch, after the
	// completion delay. Views refetch their task lists on it.
	TypeBatchCompleted = "generation.batch_completed"

	// TypeSingleFinished is emitted when a single-template run completes or fails.
	TypeSingleFinished = "generation.single_finished"

	// TypeBatchFinished is emitted when a batch run completes or fails.
	TypeBatchFinished = "generation.batch_finished"
)

// Event is a notification about generation progress for one user.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// UserID is the user whose session produced the event
	UserID string `json:"user_id"`

	// TemplateID and Title identify the routine-task template, when the
	// event concerns a single one
	TemplateID string `json:"template_id,omitempty"`
	Title      string `json:"title,omitempty"`

	// Payload carries type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event for userID. A nil payload leaves Payload empty.
func NewEvent(eventType, userID string, payload any) (*Event, error) {
	event := &Event{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		event.Payload = raw
	}
	return event, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
