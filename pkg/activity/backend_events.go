package activity

import (
	"strings"
	"time"
)

const (
	VerbErrorSet       = "backend.error.set"
	VerbConfigComplete = "backend.config.completed"
	VerbConfigLoaded   = "backend.config.loaded"
	VerbSessionBegun   = "backend.session.begun"
	VerbSessionEnded   = "backend.session.ended"

	// ObjectTypeBackend is the object type of every backend event.
	ObjectTypeBackend = "backend"
)

// BackendEventInput carries the fields shared by backend lifecycle events.
type BackendEventInput struct {
	ActorID    string
	Backend    string
	Channel    string
	URI        string
	Code       string
	Message    string
	Count      int
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildErrorSetEvent describes the first error recorded on a handle.
func BuildErrorSetEvent(input BackendEventInput) Event {
	return buildBackendEvent(VerbErrorSet, input)
}

// BuildConfigCompletedEvent describes a finished option collection pass.
func BuildConfigCompletedEvent(input BackendEventInput) Event {
	return buildBackendEvent(VerbConfigComplete, input)
}

// BuildConfigLoadedEvent describes configuration handed to a backend.
func BuildConfigLoadedEvent(input BackendEventInput) Event {
	return buildBackendEvent(VerbConfigLoaded, input)
}

func BuildSessionBegunEvent(input BackendEventInput) Event {
	return buildBackendEvent(VerbSessionBegun, input)
}

func BuildSessionEndedEvent(input BackendEventInput) Event {
	return buildBackendEvent(VerbSessionEnded, input)
}

func buildBackendEvent(verb string, input BackendEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.URI != "" {
		metadata = ensureMetadata(metadata)
		metadata["uri"] = input.URI
	}
	if input.Code != "" {
		metadata = ensureMetadata(metadata)
		metadata["code"] = input.Code
	}
	if input.Message != "" {
		metadata = ensureMetadata(metadata)
		metadata["message"] = input.Message
	}
	if input.Count != 0 {
		metadata = ensureMetadata(metadata)
		metadata["count"] = input.Count
	}

	objectID := strings.TrimSpace(input.Backend)
	if objectID == "" {
		objectID = ObjectTypeBackend
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		ObjectType: ObjectTypeBackend,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
