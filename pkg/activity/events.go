package activity

import (
	"maps"
	"strings"
	"time"
)

const (
	// VerbCreated is emitted after an instance has been saved.
	VerbCreated = "factory.created"
	// VerbDestroyed is emitted after a cleanup destroyed an instance.
	VerbDestroyed = "factory.destroyed"
)

// Event describes a factory lifecycle occurrence fanned out to hooks. IDs are
// strings so call sites do not depend on a specific UUID type.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Complete reports whether the event names a verb, an object type and an
// object id. Incomplete events are not delivered.
func (e Event) Complete() bool {
	return strings.TrimSpace(e.Verb) != "" &&
		strings.TrimSpace(e.ObjectType) != "" &&
		strings.TrimSpace(e.ObjectID) != ""
}

// NormalizeEvent trims identifiers, copies metadata and stamps OccurredAt when
// it is missing.
func NormalizeEvent(event Event) Event {
	out := Event{
		Verb:       strings.TrimSpace(event.Verb),
		ActorID:    strings.TrimSpace(event.ActorID),
		UserID:     strings.TrimSpace(event.UserID),
		TenantID:   strings.TrimSpace(event.TenantID),
		ObjectType: strings.TrimSpace(event.ObjectType),
		ObjectID:   strings.TrimSpace(event.ObjectID),
		Channel:    strings.TrimSpace(event.Channel),
		OccurredAt: event.OccurredAt,
	}
	if len(event.Metadata) > 0 {
		out.Metadata = maps.Clone(event.Metadata)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// InstanceEventInput describes the fields shared by instance lifecycle events.
type InstanceEventInput struct {
	Factory    string
	Model      string
	ObjectID   string
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildCreatedEvent constructs the event for a created instance.
func BuildCreatedEvent(input InstanceEventInput) Event {
	return input.event(VerbCreated)
}

// BuildDestroyedEvent constructs the event for a destroyed instance.
func BuildDestroyedEvent(input InstanceEventInput) Event {
	return input.event(VerbDestroyed)
}

// event uses the factory name as object type, falling back to the model, and
// records the model under metadata["model"].
func (in InstanceEventInput) event(verb string) Event {
	model := strings.TrimSpace(in.Model)
	objectType := strings.TrimSpace(in.Factory)
	if objectType == "" {
		objectType = model
	}

	var metadata map[string]any
	if len(in.Metadata) > 0 || model != "" {
		metadata = make(map[string]any, len(in.Metadata)+1)
		maps.Copy(metadata, in.Metadata)
		if model != "" {
			metadata["model"] = model
		}
	}

	return NormalizeEvent(Event{
		Verb:       verb,
		ActorID:    in.ActorID,
		UserID:     in.UserID,
		TenantID:   in.TenantID,
		ObjectType: objectType,
		ObjectID:   in.ObjectID,
		Channel:    in.Channel,
		Metadata:   metadata,
		OccurredAt: in.OccurredAt,
	})
}
