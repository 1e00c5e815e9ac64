package qof

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/pkg/activity"
)

func TestSetErrorKeepsEarliest(t *testing.T) {
	be := NewBackend()
	be.SetError(ErrBackendLocked)
	be.SetError(ErrBackendPerm)

	if got := be.GetError(); got != ErrBackendLocked {
		t.Fatalf("expected %s, got %s", ErrBackendLocked, got)
	}
	if got := be.GetError(); got != ErrBackendNoErr {
		t.Fatalf("expected cleared slot, got %s", got)
	}
	be.SetError(ErrBackendPerm)
	if got := be.GetError(); got != ErrBackendPerm {
		t.Fatalf("expected new error after pop, got %s", got)
	}
}

func TestNilBackendErrorStack(t *testing.T) {
	var be *Backend
	be.SetError(ErrBackendMisc)
	be.SetMessage("ignored %d", 1)

	if got := be.GetError(); got != ErrBackendNoBackend {
		t.Fatalf("expected %s, got %s", ErrBackendNoBackend, got)
	}
	msg, ok := be.GetMessage()
	if !ok || msg != "ERR_BACKEND_NO_BACKEND" {
		t.Fatalf("expected placeholder message, got %q ok=%v", msg, ok)
	}
}

func TestMessageLifecycle(t *testing.T) {
	be := NewBackend()
	if _, ok := be.GetMessage(); ok {
		t.Fatalf("expected no message on fresh handle")
	}

	be.SetMessage("first")
	be.SetMessage("cannot open %s (%d)", "books.db", 13)
	msg, ok := be.GetMessage()
	if !ok || msg != "cannot open books.db (13)" {
		t.Fatalf("expected formatted replacement, got %q ok=%v", msg, ok)
	}
	if _, ok := be.GetMessage(); ok {
		t.Fatalf("expected message to be popped")
	}

	be.SetMessage("disk 100%% full")
	if msg, _ := be.GetMessage(); msg != "disk 100% full" {
		t.Fatalf("expected escaped percent formatted without args, got %q", msg)
	}
	be.Fail(ErrBackendMisc, "quota at %d%%", 90)
	if msg, _ := be.GetMessage(); msg != "quota at 90%" {
		t.Fatalf("expected formatted percent from Fail, got %q", msg)
	}

	be.SetMessage("pending")
	be.SetMessage("")
	if _, ok := be.GetMessage(); ok {
		t.Fatalf("expected empty format to clear")
	}
	be.SetMessage("pending")
	be.ClearMessage()
	if _, ok := be.GetMessage(); ok {
		t.Fatalf("expected ClearMessage to clear")
	}
}

func TestErrPopsCodeAndMessage(t *testing.T) {
	be := NewBackend()
	if err := be.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	be.Fail(ErrFileIOFileNotFound, "missing %s", "main.db")
	err := be.Err()
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected ErrBackend sentinel, got %v", err)
	}
	if !errors.Is(err, ErrFileIOFileNotFound.Err("")) {
		t.Fatalf("expected code match, got %v", err)
	}
	if CodeOf(err) != ErrFileIOFileNotFound {
		t.Fatalf("expected code %s, got %s", ErrFileIOFileNotFound, CodeOf(err))
	}
	if !strings.Contains(err.Error(), "missing main.db") {
		t.Fatalf("expected message in error text, got %q", err.Error())
	}
	if be.PeekError() != ErrBackendNoErr {
		t.Fatalf("expected slot cleared after Err")
	}
	if _, ok := be.GetMessage(); ok {
		t.Fatalf("expected message popped by Err")
	}
}

func TestErrorCodeNames(t *testing.T) {
	cases := map[ErrorCode]string{
		ErrBackendNoErr:    "ERR_BACKEND_NO_ERR",
		ErrBackendLocked:   "ERR_BACKEND_LOCKED",
		ErrFileIOFileEmpty: "ERR_FILEIO_FILE_EMPTY",
		ErrSQLDBBusy:       "ERR_SQL_DB_BUSY",
		ErrorCode(4242):    "ERR_BACKEND_CODE_4242",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	if ErrBackendNoErr.Err("x") != nil {
		t.Fatalf("expected no error for ErrBackendNoErr")
	}
	if CodeOf(errors.New("plain")) != ErrBackendMisc {
		t.Fatalf("expected plain errors to map to misc")
	}
}

func TestInitResetsHandle(t *testing.T) {
	be := NewBackend(WithName("file"), WithHooks(Hooks{
		Begin:  func(*Backend, *Instance) {},
		Commit: func(*Backend, *Instance) {},
	}))
	be.SetError(ErrBackendLocked)
	be.SetMessage("stale")
	be.PrepareOption(ConfigOption{Name: "level", Type: kvp.TypeInt64, Value: int64(3)})

	be.Init()

	if be.BeginExists() || be.CommitExists() || be.LoadExists() || be.SyncExists() {
		t.Fatalf("expected every probe false after Init")
	}
	if be.PeekError() != ErrBackendNoErr {
		t.Fatalf("expected error reset")
	}
	if _, ok := be.GetMessage(); ok {
		t.Fatalf("expected message cleared")
	}
	if be.ConfigCount() != 0 || !be.CompleteFrame().IsEmpty() {
		t.Fatalf("expected empty config after Init")
	}
	if be.Name() != "file" {
		t.Fatalf("expected name to survive Init, got %q", be.Name())
	}
}

func TestNilBackendProbesAndTrampolines(t *testing.T) {
	var be *Backend
	if be.BeginExists() || be.QueryExists() || be.ConfigExists() || be.EventsExist() {
		t.Fatalf("expected nil probes false")
	}
	be.RunBegin(NewInstance("Account"))
	be.RunSync(context.Background(), NewBook(nil))
	be.ReportProgress("x", 10)
	if be.GetConfig() != nil || be.EventsPending() || be.ProcessEvents() {
		t.Fatalf("expected zero results from nil handle")
	}
}

func TestErrorSetEmitsOnce(t *testing.T) {
	capture := &activity.CaptureHook{}
	be := NewBackend(WithName("sqlite"), WithActor("clerk"), WithActivityHooks(activity.Hooks{capture}))

	be.SetError(ErrSQLDBBusy)
	be.SetError(ErrBackendMisc)

	if len(capture.Events) != 1 {
		t.Fatalf("expected a single event, got %d", len(capture.Events))
	}
	event := capture.Events[0]
	if event.Verb != activity.VerbErrorSet || event.ActorID != "clerk" || event.ObjectID != "sqlite" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Metadata["code"] != "ERR_SQL_DB_BUSY" {
		t.Fatalf("expected code metadata, got %+v", event.Metadata)
	}
}

func TestActivityHookErrorsAreLogged(t *testing.T) {
	capture := &activity.CaptureHook{Err: errors.New("sink down")}
	var logged []LogEvent
	be := NewBackend(
		WithActivityHooks(activity.Hooks{capture}),
		WithLogger(LoggerFunc(func(e LogEvent) { logged = append(logged, e) })),
	)
	be.SetError(ErrBackendConnLost)

	found := slices.ContainsFunc(logged, func(e LogEvent) bool {
		return e.Op == "activity" && e.Err != nil
	})
	if !found {
		t.Fatalf("expected hook failure to be logged, got %+v", logged)
	}
}

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	be := NewBackend(WithName("memory"), WithLogger(logger))

	be.SetError(ErrBackendLocked)
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "code=ERR_BACKEND_LOCKED") {
		t.Fatalf("expected warn entry with code, got %q", out)
	}
	if !strings.Contains(out, "backend=memory") {
		t.Fatalf("expected backend attribute, got %q", out)
	}

	buf.Reset()
	be.PrepareFrame()
	be.CompleteFrame()
	if !strings.Contains(buf.String(), "level=DEBUG") {
		t.Fatalf("expected debug entry, got %q", buf.String())
	}
}
