package qof

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/pkg/activity"
)

func TestOptionRoundTrip(t *testing.T) {
	be := NewBackend()
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	be.PrepareFrame()
	be.PrepareOption(ConfigOption{Name: "compression", Type: kvp.TypeInt64, Value: int64(6), Description: "gzip level", Tooltip: "0 disables"})
	be.PrepareOption(ConfigOption{Name: "ratio", Type: kvp.TypeDouble, Value: 0.5})
	be.PrepareOption(ConfigOption{Name: "limit", Type: kvp.TypeNumeric, Value: kvp.NewNumeric(15000, 100)})
	be.PrepareOption(ConfigOption{Name: "path", Type: kvp.TypeString, Value: "/var/lib/books"})
	be.PrepareOption(ConfigOption{Name: "since", Type: kvp.TypeTimespec, Value: since})
	if be.ConfigCount() != 5 {
		t.Fatalf("expected 5 options collected, got %d", be.ConfigCount())
	}
	frame := be.CompleteFrame()
	if be.ConfigCount() != 0 {
		t.Fatalf("expected count reset by CompleteFrame, got %d", be.ConfigCount())
	}
	if frame.GetString("/desc/compression") != "gzip level" || frame.GetString("/tip/compression") != "0 disables" {
		t.Fatalf("expected description and tooltip slots, got %+v", frame.ToMap())
	}

	var seen []ConfigOption
	visits := OptionForEach(frame, func(opt ConfigOption) { seen = append(seen, opt) })
	if visits != 5 || len(seen) != 5 {
		t.Fatalf("expected 5 visits, got %d (%d recorded)", visits, len(seen))
	}
	names := make([]string, len(seen))
	for i, opt := range seen {
		names[i] = opt.Name
	}
	if !slices.Equal(names, []string{"compression", "ratio", "limit", "path", "since"}) {
		t.Fatalf("unexpected visit order %v", names)
	}
	first := seen[0]
	if first.Type != kvp.TypeInt64 || first.Value != int64(6) || first.Description != "gzip level" || first.Tooltip != "0 disables" {
		t.Fatalf("unexpected rebuilt option %+v", first)
	}
	if got := seen[2].Value.(kvp.Numeric); !got.Equal(kvp.NewNumeric(150, 1)) {
		t.Fatalf("expected numeric 150, got %v", got)
	}
	if got := seen[4].Value.(time.Time); !got.Equal(since) {
		t.Fatalf("expected %v, got %v", since, got)
	}
}

func TestPrepareOptionSkipsUnsupported(t *testing.T) {
	be := NewBackend()
	be.PrepareFrame()
	be.PrepareOption(ConfigOption{Name: "id", Type: kvp.TypeGUID, Value: "x"})
	be.PrepareOption(ConfigOption{Name: "blob", Type: kvp.TypeBinary, Value: []byte("x")})
	be.PrepareOption(ConfigOption{Name: "wrong", Type: kvp.TypeInt64, Value: "six"})
	be.PrepareOption(ConfigOption{Name: "desc", Type: kvp.TypeString, Value: "reserved"})
	be.PrepareOption(ConfigOption{Name: "a/b", Type: kvp.TypeString, Value: "nested"})
	be.PrepareOption(ConfigOption{Name: "ok", Type: kvp.TypeInt64, Value: 7})

	if be.ConfigCount() != 1 {
		t.Fatalf("expected only one option counted, got %d", be.ConfigCount())
	}
	frame := be.CompleteFrame()
	if frame.GetValue("id") != nil || frame.GetValue("blob") != nil || frame.GetValue("wrong") != nil {
		t.Fatalf("expected unsupported options absent, got %+v", frame.ToMap())
	}
	if frame.GetValue("ok").Int64() != 7 {
		t.Fatalf("expected int converted to int64")
	}
}

func TestPrepareOptionAcceptsPointers(t *testing.T) {
	be := NewBackend()
	level := int64(9)
	name := "ledger"
	be.PrepareOption(ConfigOption{Name: "level", Type: kvp.TypeInt64, Value: &level})
	be.PrepareOption(ConfigOption{Name: "name", Type: kvp.TypeString, Value: &name})
	be.PrepareOption(ConfigOption{Name: "none", Type: kvp.TypeString, Value: (*string)(nil)})

	frame := be.CompleteFrame()
	if frame.GetValue("level").Int64() != 9 || frame.GetString("name") != "ledger" {
		t.Fatalf("expected dereferenced values, got %+v", frame.ToMap())
	}
	if frame.GetValue("none") != nil {
		t.Fatalf("expected nil pointer skipped")
	}
}

func TestPrepareFrameReset(t *testing.T) {
	be := NewBackend()
	empty := be.CompleteFrame()
	be.PrepareFrame()
	if be.CompleteFrame() != empty {
		t.Fatalf("expected empty tree kept across PrepareFrame")
	}

	be.PrepareOption(ConfigOption{Name: "a", Type: kvp.TypeString, Value: "1"})
	populated := be.CompleteFrame()
	be.PrepareFrame()
	fresh := be.CompleteFrame()
	if fresh == populated || !fresh.IsEmpty() {
		t.Fatalf("expected populated tree replaced by a fresh one")
	}
	if populated.GetString("a") != "1" {
		t.Fatalf("expected old tree untouched for holders")
	}
}

func TestOptionForEachVisitsUnsupportedKindsWithoutValue(t *testing.T) {
	owner := uuid.New()
	frame := kvp.NewFrame()
	frame.SetValue("owner", kvp.NewGUID(owner))
	frame.SetString("/desc/owner", "owning book")
	frame.SetValue("blob", kvp.NewBinary([]byte("x")))
	frame.SetString("name", "ledger")
	frame.SetString("/nested/child", "v")

	var seen []ConfigOption
	visits := OptionForEach(frame, func(opt ConfigOption) { seen = append(seen, opt) })
	if visits != 4 || len(seen) != 4 {
		t.Fatalf("expected 4 visits, got %d (%d recorded)", visits, len(seen))
	}
	want := []struct {
		name string
		typ  kvp.ValueType
	}{
		{"owner", kvp.TypeGUID},
		{"blob", kvp.TypeBinary},
		{"name", kvp.TypeString},
		{"nested", kvp.TypeFrame},
	}
	for i, w := range want {
		if seen[i].Name != w.name || seen[i].Type != w.typ {
			t.Fatalf("expected %s of type %s at %d, got %+v", w.name, w.typ, i, seen[i])
		}
	}
	if seen[0].Value != nil || seen[0].Description != "owning book" {
		t.Fatalf("expected guid visited without value but with description, got %+v", seen[0])
	}
	if seen[1].Value != nil || seen[3].Value != nil {
		t.Fatalf("expected nil values for binary and frame, got %v %v", seen[1].Value, seen[3].Value)
	}
	if seen[2].Value != "ledger" {
		t.Fatalf("expected string value, got %v", seen[2].Value)
	}
	if OptionForEach(nil, func(ConfigOption) {}) != 0 {
		t.Fatalf("expected nil frame to yield zero visits")
	}
	if OptionForEach(frame, nil) != 0 {
		t.Fatalf("expected nil visitor to yield zero visits")
	}
}

func TestOptionForEachLogsInvocationCounter(t *testing.T) {
	var counts []int
	be := NewBackend(WithLogger(LoggerFunc(func(e LogEvent) {
		if e.Op == "option_for_each" {
			counts = append(counts, e.Count)
		}
	})))
	frame := kvp.NewFrame()
	frame.SetString("a", "1")
	frame.SetString("b", "2")

	if n := be.OptionForEach(frame, func(ConfigOption) {}); n != 2 {
		t.Fatalf("expected 2 visits, got %d", n)
	}
	if !slices.Equal(counts, []int{1, 2}) {
		t.Fatalf("expected counter starting at 1, got %v", counts)
	}
}

func TestCompleteFrameEmitsActivity(t *testing.T) {
	capture := &activity.CaptureHook{}
	be := NewBackend(WithActivityHooks(activity.Hooks{capture}))
	be.PrepareOption(ConfigOption{Name: "a", Type: kvp.TypeString, Value: "1"})
	be.CompleteFrame()

	if verbs := capture.Verbs(); !slices.Equal(verbs, []string{activity.VerbConfigComplete}) {
		t.Fatalf("expected config completed event, got %v", verbs)
	}
	if capture.Events[0].Metadata["count"] != 1 {
		t.Fatalf("expected count metadata, got %+v", capture.Events[0].Metadata)
	}
}
