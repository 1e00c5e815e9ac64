package kvp

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrUnsupportedValue is returned when a Go value has no slot kind.
var ErrUnsupportedValue = errors.New("kvp: unsupported value")

// Frame is an ordered set of named slots. Slot keys are single path
// segments; slash-separated paths address nested frames.
type Frame struct {
	slots *orderedmap.OrderedMap[string, *Value]
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{slots: orderedmap.New[string, *Value]()}
}

func (f *Frame) ensure() {
	if f.slots == nil {
		f.slots = orderedmap.New[string, *Value]()
	}
}

func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	keys := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		keys = append(keys, part)
	}
	return keys
}

// walk descends through keys. With create set, missing or non-frame
// intermediate slots are replaced by empty frames.
func (f *Frame) walk(keys []string, create bool) *Frame {
	frame := f
	for _, key := range keys {
		frame.ensure()
		slot, ok := frame.slots.Get(key)
		if ok && slot.Type() == TypeFrame && slot.frame != nil {
			frame = slot.frame
			continue
		}
		if !create {
			return nil
		}
		child := NewFrame()
		frame.slots.Set(key, &Value{kind: TypeFrame, frame: child})
		frame = child
	}
	return frame
}

// SetValue stores a copy of value at path, creating intermediate frames. A
// nil value removes the slot.
func (f *Frame) SetValue(path string, value *Value) {
	if f == nil {
		return
	}
	keys := splitPath(path)
	if len(keys) == 0 {
		return
	}
	last := keys[len(keys)-1]
	if value == nil {
		parent := f.walk(keys[:len(keys)-1], false)
		if parent != nil && parent.slots != nil {
			parent.slots.Delete(last)
		}
		return
	}
	parent := f.walk(keys[:len(keys)-1], true)
	parent.ensure()
	parent.slots.Set(last, value.Copy())
}

// SetString is shorthand for SetValue(path, NewString(value)).
func (f *Frame) SetString(path, value string) {
	f.SetValue(path, NewString(value))
}

// Delete removes the slot at path.
func (f *Frame) Delete(path string) {
	f.SetValue(path, nil)
}

// GetValue returns the value stored at path, or nil.
func (f *Frame) GetValue(path string) *Value {
	if f == nil {
		return nil
	}
	keys := splitPath(path)
	if len(keys) == 0 {
		return nil
	}
	parent := f.walk(keys[:len(keys)-1], false)
	if parent == nil || parent.slots == nil {
		return nil
	}
	value, _ := parent.slots.Get(keys[len(keys)-1])
	return value
}

// GetString returns the string at path, or "" when absent or not a string.
func (f *Frame) GetString(path string) string {
	return f.GetValue(path).StringValue()
}

// GetFrame returns the frame at path. An empty path returns f itself.
func (f *Frame) GetFrame(path string) *Frame {
	if f == nil {
		return nil
	}
	if len(splitPath(path)) == 0 {
		return f
	}
	return f.GetValue(path).Frame()
}

// Len reports the number of top-level slots.
func (f *Frame) Len() int {
	if f == nil || f.slots == nil {
		return 0
	}
	return f.slots.Len()
}

func (f *Frame) IsEmpty() bool {
	return f.Len() == 0
}

// Keys returns the top-level slot keys in insertion order.
func (f *Frame) Keys() []string {
	if f.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, f.slots.Len())
	for pair := f.slots.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// ForEachSlot visits every top-level slot in insertion order. The visitor
// must not add or remove slots of f.
func (f *Frame) ForEachSlot(fn func(key string, value *Value)) {
	if fn == nil || f.Len() == 0 {
		return
	}
	for pair := f.slots.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// Copy returns a deep copy of f.
func (f *Frame) Copy() *Frame {
	if f == nil {
		return nil
	}
	out := NewFrame()
	f.ForEachSlot(func(key string, value *Value) {
		out.slots.Set(key, value.Copy())
	})
	return out
}

// Equal compares slot contents recursively, ignoring slot order. Nil and
// empty frames are equal.
func (f *Frame) Equal(other *Frame) bool {
	if f.Len() != other.Len() {
		return false
	}
	equal := true
	f.ForEachSlot(func(key string, value *Value) {
		if !equal {
			return
		}
		theirs, ok := other.slots.Get(key)
		if !ok || !value.Equal(theirs) {
			equal = false
		}
	})
	return equal
}

// ToMap converts f into nested native Go values.
func (f *Frame) ToMap() map[string]any {
	out := make(map[string]any, f.Len())
	f.ForEachSlot(func(key string, value *Value) {
		out[key] = value.Native()
	})
	return out
}

// FromMap builds a frame from native Go values. Keys are inserted in sorted
// order so the result is deterministic. Accepted values: int, int32, int64,
// float32, float64, Numeric, string, uuid.UUID, time.Time, []byte, []any,
// map[string]any, *Frame and *Value.
func FromMap(values map[string]any) (*Frame, error) {
	frame := NewFrame()
	for _, key := range sortedKeys(values) {
		if key == "" || strings.Contains(key, "/") {
			return nil, fmt.Errorf("kvp: invalid slot key %q", key)
		}
		value, err := FromNative(values[key])
		if err != nil {
			return nil, fmt.Errorf("kvp: slot %q: %w", key, err)
		}
		if value == nil {
			continue
		}
		frame.slots.Set(key, value)
	}
	return frame, nil
}

func sortedKeys(values map[string]any) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
