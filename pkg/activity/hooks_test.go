package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " backend.error.set ",
		ActorID:    " actor ",
		ObjectType: " backend ",
		ObjectID:   " sqlite ",
		Channel:    " backend ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != "backend.error.set" || got.ObjectType != "backend" || got.ObjectID != "sqlite" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.Channel != "backend" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	var ctxSeen bool
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			if ctx != nil {
				ctxSeen = true
			}
			return nil
		}),
		capture,
		HookFunc(func(_ context.Context, _ Event) error { return boom1 }),
		nil,
		HookFunc(func(_ context.Context, _ Event) error { return boom2 }),
	}

	//nolint:staticcheck // nil context exercises the fallback
	err := hooks.Notify(nil, Event{Verb: VerbSessionBegun, ObjectType: ObjectTypeBackend, ObjectID: "memory"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: VerbConfigLoaded, ObjectType: ObjectTypeBackend, ObjectID: "bolt"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 1 || capture.Events[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %+v", capture.Events)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "default"})
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       VerbSessionEnded,
		ObjectType: ObjectTypeBackend,
		ObjectID:   "sqlite",
		Channel:    "custom",
		OccurredAt: when,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if capture.Events[0].Channel != "custom" {
		t.Fatalf("expected explicit channel preserved, got %q", capture.Events[0].Channel)
	}
	if !capture.Events[0].OccurredAt.Equal(when) {
		t.Fatalf("expected occurred_at preserved, got %v", capture.Events[0].OccurredAt)
	}
}

func TestBuildErrorSetEventCarriesCodeAndMessage(t *testing.T) {
	event := BuildErrorSetEvent(BackendEventInput{
		ActorID: " actor ",
		Backend: "sqlite",
		Code:    "ERR_BACKEND_LOCKED",
		Message: "database is locked",
		URI:     "sqlite:///tmp/books.db",
	})
	if event.Verb != VerbErrorSet || event.ObjectType != ObjectTypeBackend || event.ObjectID != "sqlite" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.ActorID != "actor" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	if event.Metadata["code"] != "ERR_BACKEND_LOCKED" || event.Metadata["message"] != "database is locked" {
		t.Fatalf("unexpected metadata %+v", event.Metadata)
	}
	if event.Metadata["uri"] != "sqlite:///tmp/books.db" {
		t.Fatalf("expected uri metadata, got %v", event.Metadata["uri"])
	}
}

func TestBuildConfigCompletedEventFallsBackObjectID(t *testing.T) {
	meta := map[string]any{"origin": "test"}
	event := BuildConfigCompletedEvent(BackendEventInput{Count: 3, Metadata: meta})
	if event.ObjectID != ObjectTypeBackend {
		t.Fatalf("expected fallback object id, got %q", event.ObjectID)
	}
	if event.Metadata["count"] != 3 || event.Metadata["origin"] != "test" {
		t.Fatalf("unexpected metadata %+v", event.Metadata)
	}
	if _, ok := meta["count"]; ok {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestCaptureHookVerbs(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	_ = hooks.Notify(context.Background(), BuildSessionBegunEvent(BackendEventInput{Backend: "memory"}))
	_ = hooks.Notify(context.Background(), BuildSessionEndedEvent(BackendEventInput{Backend: "memory"}))
	verbs := capture.Verbs()
	if len(verbs) != 2 || verbs[0] != VerbSessionBegun || verbs[1] != VerbSessionEnded {
		t.Fatalf("unexpected verbs %v", verbs)
	}
}
