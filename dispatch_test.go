package qof

import (
	"context"
	"slices"
	"testing"

	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/pkg/activity"
)

type recordingStore struct {
	calls  []string
	config *kvp.Frame
}

func (s *recordingStore) SessionBegin(_ context.Context, be *Backend, _ *Book, uri string, _, _ bool) {
	s.calls = append(s.calls, "session_begin:"+uri)
}

func (s *recordingStore) SessionEnd(context.Context, *Backend) {
	s.calls = append(s.calls, "session_end")
}

func (s *recordingStore) Load(_ context.Context, be *Backend, _ *Book) {
	s.calls = append(s.calls, "load")
	be.ReportProgress("loading", 50)
}

func (s *recordingStore) Commit(_ *Backend, inst *Instance) {
	s.calls = append(s.calls, "commit:"+inst.Type)
}

func (s *recordingStore) CompileQuery(_ *Backend, q *Query) any {
	return q.SearchFor
}

func (s *recordingStore) RunQuery(_ context.Context, _ *Backend, compiled any) []*Instance {
	return []*Instance{NewInstance(compiled.(string))}
}

func (s *recordingStore) FreeQuery(_ *Backend, compiled any) {
	s.calls = append(s.calls, "free:"+compiled.(string))
}

func (s *recordingStore) LoadConfig(_ *Backend, config *kvp.Frame) {
	s.config = config
}

func (s *recordingStore) GetConfig(*Backend) *kvp.Frame {
	return s.config
}

func TestHooksFromFillsImplementedSlots(t *testing.T) {
	hooks := HooksFrom(&recordingStore{})
	if hooks.SessionBegin == nil || hooks.Load == nil || hooks.Commit == nil || hooks.CompileQuery == nil {
		t.Fatalf("expected implemented slots filled")
	}
	if hooks.Begin != nil || hooks.Rollback != nil || hooks.Sync != nil || hooks.EventsPending != nil {
		t.Fatalf("expected unimplemented slots left nil")
	}
	if empty := HooksFrom(nil); empty.Load != nil {
		t.Fatalf("expected empty table for nil impl")
	}
}

func TestTrampolinesDispatchToImplementation(t *testing.T) {
	store := &recordingStore{}
	var progress []float64
	be := NewBackend(WithImplementation(store))
	be.SetPercentage(func(_ string, pct float64) { progress = append(progress, pct) })
	book := NewBook(be)
	ctx := context.Background()

	be.SessionBegin(ctx, book, "file:///tmp/books", false, true)
	be.RunLoad(ctx, book)
	be.RunCommit(book.NewInstance("Account"))
	be.RunBegin(book.NewInstance("Account"))
	be.RunSync(ctx, book)
	be.SessionEnd(ctx)

	want := []string{"session_begin:file:///tmp/books", "load", "commit:Account", "session_end"}
	if !slices.Equal(store.calls, want) {
		t.Fatalf("expected %v, got %v", want, store.calls)
	}
	if !slices.Equal(progress, []float64{50}) {
		t.Fatalf("expected progress report, got %v", progress)
	}
	if be.Implementation() != store {
		t.Fatalf("expected implementation retained")
	}
}

func TestProbesReflectInstalledHooks(t *testing.T) {
	be := NewBackend(WithImplementation(&recordingStore{}))
	if !be.LoadExists() || !be.CommitExists() || !be.QueryExists() || !be.ConfigExists() {
		t.Fatalf("expected implemented probes true")
	}
	if be.BeginExists() || be.RollbackExists() || be.SyncExists() || be.EventsExist() {
		t.Fatalf("expected unimplemented probes false")
	}
}

func TestQueryLifecycle(t *testing.T) {
	store := &recordingStore{}
	be := NewBackend(WithImplementation(store))

	compiled := be.CompileQuery(&Query{SearchFor: "Split"})
	results := be.RunQuery(context.Background(), compiled)
	if len(results) != 1 || results[0].Type != "Split" {
		t.Fatalf("unexpected results %+v", results)
	}
	be.FreeQuery(compiled)
	if !slices.Equal(store.calls, []string{"free:Split"}) {
		t.Fatalf("expected free recorded, got %v", store.calls)
	}
	if be.CompileQuery(nil) != nil || be.RunQuery(context.Background(), nil) != nil {
		t.Fatalf("expected nil targets to short-circuit")
	}
}

func TestUnsetSlotsAreNoOps(t *testing.T) {
	be := NewBackend()
	book := NewBook(be)
	ctx := context.Background()

	be.SessionBegin(ctx, book, "memory://", false, false)
	be.RunLoad(ctx, book)
	be.RunRollback(book.NewInstance("Account"))
	be.Destroy()
	if be.GetConfig() != nil {
		t.Fatalf("expected nil config without hook")
	}
	if be.EventsPending() || be.ProcessEvents() {
		t.Fatalf("expected false without event hooks")
	}
	if be.PeekError() != ErrBackendNoErr {
		t.Fatalf("expected no error from unset slots")
	}
}

func TestLoadConfigEmitsAndStores(t *testing.T) {
	capture := &activity.CaptureHook{}
	store := &recordingStore{}
	be := NewBackend(WithImplementation(store), WithActivityHooks(activity.Hooks{capture}))

	config := kvp.NewFrame()
	config.SetString("journal-mode", "wal")
	be.LoadConfig(config)

	if be.GetConfig() != config {
		t.Fatalf("expected config handed to backend")
	}
	if verbs := capture.Verbs(); !slices.Equal(verbs, []string{activity.VerbConfigLoaded}) {
		t.Fatalf("expected config loaded event, got %v", verbs)
	}
	be.LoadConfig(nil)
	if len(capture.Events) != 1 {
		t.Fatalf("expected nil config to be ignored")
	}
}

func TestSessionEventsCarryURIAndCode(t *testing.T) {
	capture := &activity.CaptureHook{}
	be := NewBackend(WithName("bolt"), WithActivityHooks(activity.Hooks{capture}), WithHooks(Hooks{
		SessionBegin: func(_ context.Context, be *Backend, _ *Book, _ string, _, _ bool) {
			be.SetError(ErrBackendLocked)
		},
		SessionEnd: func(context.Context, *Backend) {},
	}))
	be.SessionBegin(context.Background(), NewBook(be), "bolt:///tmp/x.db", false, false)
	be.SessionEnd(context.Background())

	verbs := capture.Verbs()
	want := []string{activity.VerbErrorSet, activity.VerbSessionBegun, activity.VerbSessionEnded}
	if !slices.Equal(verbs, want) {
		t.Fatalf("expected %v, got %v", want, verbs)
	}
	begun := capture.Events[1]
	if begun.Metadata["uri"] != "bolt:///tmp/x.db" || begun.Metadata["code"] != "ERR_BACKEND_LOCKED" {
		t.Fatalf("unexpected metadata %+v", begun.Metadata)
	}
}

func TestWithImplementationKeepsPercentage(t *testing.T) {
	called := false
	be := NewBackend(
		WithHooks(Hooks{Percentage: func(string, float64) { called = true }}),
		WithImplementation(&recordingStore{}),
	)
	be.ReportProgress("x", 1)
	if !called {
		t.Fatalf("expected percentage callback preserved")
	}
}
