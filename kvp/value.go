package kvp

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValueType identifies the kind stored in a Value.
type ValueType int

const (
	// TypeInvalid marks a zero Value.
	TypeInvalid ValueType = iota
	TypeInt64
	TypeDouble
	TypeNumeric
	TypeString
	TypeGUID
	TypeTimespec
	TypeBinary
	TypeList
	TypeFrame
)

func (t ValueType) String() string {
	switch t {
	case TypeInt64:
		return "int64"
	case TypeDouble:
		return "double"
	case TypeNumeric:
		return "numeric"
	case TypeString:
		return "string"
	case TypeGUID:
		return "guid"
	case TypeTimespec:
		return "timespec"
	case TypeBinary:
		return "binary"
	case TypeList:
		return "list"
	case TypeFrame:
		return "frame"
	default:
		return "invalid"
	}
}

// ParseValueType converts a name produced by ValueType.String back into the
// type. Unknown names yield TypeInvalid.
func ParseValueType(name string) ValueType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int64", "gint64":
		return TypeInt64
	case "double":
		return TypeDouble
	case "numeric":
		return TypeNumeric
	case "string":
		return TypeString
	case "guid":
		return TypeGUID
	case "timespec":
		return TypeTimespec
	case "binary":
		return TypeBinary
	case "list":
		return TypeList
	case "frame":
		return TypeFrame
	default:
		return TypeInvalid
	}
}

// Value is a tagged union over the supported slot kinds. Accessors return the
// zero value of their kind when the Value holds a different kind.
type Value struct {
	kind   ValueType
	i64    int64
	dbl    float64
	num    Numeric
	str    string
	guid   uuid.UUID
	ts     time.Time
	binary []byte
	list   []*Value
	frame  *Frame
}

func NewInt64(v int64) *Value { return &Value{kind: TypeInt64, i64: v} }
func NewDouble(v float64) *Value { return &Value{kind: TypeDouble, dbl: v} }
func NewNumericValue(v Numeric) *Value { return &Value{kind: TypeNumeric, num: v} }
func NewString(v string) *Value { return &Value{kind: TypeString, str: v} }
func NewGUID(v uuid.UUID) *Value { return &Value{kind: TypeGUID, guid: v} }
func NewTimespec(v time.Time) *Value { return &Value{kind: TypeTimespec, ts: v} }

// NewBinary copies data into a new binary Value.
func NewBinary(data []byte) *Value {
	return &Value{kind: TypeBinary, binary: append([]byte(nil), data...)}
}

// NewList builds a list Value holding copies of items. Nil items are dropped.
func NewList(items ...*Value) *Value {
	list := make([]*Value, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		list = append(list, item.Copy())
	}
	return &Value{kind: TypeList, list: list}
}

// NewFrameValue wraps a copy of frame. A nil frame is stored as an empty one.
func NewFrameValue(frame *Frame) *Value {
	if frame == nil {
		return &Value{kind: TypeFrame, frame: NewFrame()}
	}
	return &Value{kind: TypeFrame, frame: frame.Copy()}
}

// Type reports the stored kind. A nil Value is TypeInvalid.
func (v *Value) Type() ValueType {
	if v == nil {
		return TypeInvalid
	}
	return v.kind
}

func (v *Value) Int64() int64 {
	if v.Type() != TypeInt64 {
		return 0
	}
	return v.i64
}

func (v *Value) Double() float64 {
	if v.Type() != TypeDouble {
		return 0
	}
	return v.dbl
}

func (v *Value) Numeric() Numeric {
	if v.Type() != TypeNumeric {
		return Numeric{}
	}
	return v.num
}

// StringValue returns the stored string. It does not implement fmt.Stringer.
func (v *Value) StringValue() string {
	if v.Type() != TypeString {
		return ""
	}
	return v.str
}

func (v *Value) GUID() uuid.UUID {
	if v.Type() != TypeGUID {
		return uuid.Nil
	}
	return v.guid
}

func (v *Value) Timespec() time.Time {
	if v.Type() != TypeTimespec {
		return time.Time{}
	}
	return v.ts
}

// Binary returns a copy of the stored bytes.
func (v *Value) Binary() []byte {
	if v.Type() != TypeBinary {
		return nil
	}
	return append([]byte(nil), v.binary...)
}

// List returns the stored items. The slice is shared with the Value.
func (v *Value) List() []*Value {
	if v.Type() != TypeList {
		return nil
	}
	return v.list
}

// Frame returns the nested frame, shared with the Value.
func (v *Value) Frame() *Frame {
	if v.Type() != TypeFrame {
		return nil
	}
	return v.frame
}

// Copy returns a deep copy of v.
func (v *Value) Copy() *Value {
	if v == nil {
		return nil
	}
	out := *v
	switch v.kind {
	case TypeBinary:
		out.binary = append([]byte(nil), v.binary...)
	case TypeList:
		out.list = make([]*Value, len(v.list))
		for i, item := range v.list {
			out.list[i] = item.Copy()
		}
	case TypeFrame:
		out.frame = v.frame.Copy()
	}
	return &out
}

// Equal compares two values by kind and content. Numerics compare by value,
// so 1/2 equals 50/100.
func (v *Value) Equal(other *Value) bool {
	if v.Type() != other.Type() {
		return false
	}
	switch v.Type() {
	case TypeInvalid:
		return true
	case TypeInt64:
		return v.i64 == other.i64
	case TypeDouble:
		return v.dbl == other.dbl
	case TypeNumeric:
		return v.num.Equal(other.num)
	case TypeString:
		return v.str == other.str
	case TypeGUID:
		return v.guid == other.guid
	case TypeTimespec:
		return v.ts.Equal(other.ts)
	case TypeBinary:
		return bytes.Equal(v.binary, other.binary)
	case TypeList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case TypeFrame:
		return v.frame.Equal(other.frame)
	default:
		return false
	}
}

// Native returns the Go representation of the stored value: int64, float64,
// Numeric, string, uuid.UUID, time.Time, []byte, []any or map[string]any.
func (v *Value) Native() any {
	switch v.Type() {
	case TypeInt64:
		return v.i64
	case TypeDouble:
		return v.dbl
	case TypeNumeric:
		return v.num
	case TypeString:
		return v.str
	case TypeGUID:
		return v.guid
	case TypeTimespec:
		return v.ts
	case TypeBinary:
		return v.Binary()
	case TypeList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Native()
		}
		return out
	case TypeFrame:
		return v.frame.ToMap()
	default:
		return nil
	}
}

// FromNative converts a Go value into a Value. See Frame.FromMap for the
// accepted types.
func FromNative(value any) (*Value, error) {
	switch typed := value.(type) {
	case *Value:
		return typed.Copy(), nil
	case int:
		return NewInt64(int64(typed)), nil
	case int32:
		return NewInt64(int64(typed)), nil
	case int64:
		return NewInt64(typed), nil
	case float32:
		return NewDouble(float64(typed)), nil
	case float64:
		return NewDouble(typed), nil
	case Numeric:
		return NewNumericValue(typed), nil
	case string:
		return NewString(typed), nil
	case uuid.UUID:
		return NewGUID(typed), nil
	case time.Time:
		return NewTimespec(typed), nil
	case []byte:
		return NewBinary(typed), nil
	case []any:
		items := make([]*Value, 0, len(typed))
		for i, item := range typed {
			converted, err := FromNative(item)
			if err != nil {
				return nil, fmt.Errorf("kvp: list item %d: %w", i, err)
			}
			items = append(items, converted)
		}
		return &Value{kind: TypeList, list: items}, nil
	case map[string]any:
		frame, err := FromMap(typed)
		if err != nil {
			return nil, err
		}
		return &Value{kind: TypeFrame, frame: frame}, nil
	case *Frame:
		return NewFrameValue(typed), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
