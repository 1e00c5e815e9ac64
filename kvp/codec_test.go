package kvp

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func sampleFrame() *Frame {
	frame := NewFrame()
	frame.SetValue("/compression", NewInt64(6))
	frame.SetValue("/ratio", NewDouble(0.25))
	frame.SetValue("/limit", NewNumericValue(NewNumeric(15000, 100)))
	frame.SetValue("/path", NewString("/var/lib/books"))
	frame.SetValue("/since", NewTimespec(time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)))
	frame.SetString("/desc/compression", "gzip level")
	frame.SetString("/tip/compression", "0 disables compression")
	return frame
}

func TestTOMLRoundTrip(t *testing.T) {
	frame := sampleFrame()
	var buf bytes.Buffer
	if err := EncodeTOML(&buf, frame); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(buf.String(), "compression = 6") {
		t.Fatalf("expected native int in document:\n%s", buf.String())
	}

	decoded, err := DecodeTOML(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(frame) {
		t.Fatalf("expected round trip to preserve frame, got %+v", decoded.ToMap())
	}
	if decoded.GetValue("/limit").Type() != TypeNumeric {
		t.Fatalf("expected numeric inline table to decode as numeric")
	}
}

func TestTOMLLossyKinds(t *testing.T) {
	guid := uuid.New()
	frame := NewFrame()
	frame.SetValue("id", NewGUID(guid))
	frame.SetValue("blob", NewBinary([]byte("hi")))

	var buf bytes.Buffer
	if err := EncodeTOML(&buf, frame); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTOML(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.GetString("id") != guid.String() {
		t.Fatalf("expected guid as string, got %v", decoded.GetValue("id").Native())
	}
	if decoded.GetString("blob") != "aGk=" {
		t.Fatalf("expected base64 blob, got %q", decoded.GetString("blob"))
	}
}

func TestDecodeTOMLBooleansBecomeIntegers(t *testing.T) {
	decoded, err := DecodeTOML(strings.NewReader("enabled = true\ndisabled = false\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.GetValue("enabled").Int64() != 1 || decoded.GetValue("disabled").Int64() != 0 {
		t.Fatalf("unexpected boolean mapping %+v", decoded.ToMap())
	}
}

func TestDecodeTOMLInvalid(t *testing.T) {
	if _, err := DecodeTOML(strings.NewReader("= broken")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCBORRoundTripPreservesEveryKind(t *testing.T) {
	frame := sampleFrame()
	frame.SetValue("/id", NewGUID(uuid.New()))
	frame.SetValue("/blob", NewBinary([]byte{0, 1, 2}))
	frame.SetValue("/list", NewList(NewInt64(1), NewString("x"), NewNumericValue(NewNumeric(1, 3))))
	frame.SetValue("/local", NewTimespec(time.Date(2024, 3, 1, 8, 30, 0, 123, time.FixedZone("X", 3600))))

	data, err := MarshalFrame(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalFrame(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(frame) {
		t.Fatalf("expected lossless round trip")
	}
	keys := decoded.Keys()
	if len(keys) == 0 || keys[0] != "compression" {
		t.Fatalf("expected slot order preserved, got %v", keys)
	}
}

func TestUnmarshalFrameRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalFrame([]byte{0xff, 0x00}); err == nil {
		t.Fatalf("expected error for invalid cbor")
	}
}
