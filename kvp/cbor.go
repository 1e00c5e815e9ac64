package kvp

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

type wireSlot struct {
	Key   string    `cbor:"k"`
	Value wireValue `cbor:"v"`
}

type wireValue struct {
	Type   ValueType   `cbor:"t"`
	Int    int64       `cbor:"i,omitempty"`
	Double float64     `cbor:"f,omitempty"`
	Num    *Numeric    `cbor:"n,omitempty"`
	Str    string      `cbor:"s,omitempty"`
	GUID   []byte      `cbor:"g,omitempty"`
	Time   string      `cbor:"ts,omitempty"`
	Binary []byte      `cbor:"b,omitempty"`
	List   []wireValue `cbor:"l,omitempty"`
	Frame  []wireSlot  `cbor:"fr,omitempty"`
}

// MarshalFrame encodes frame as CBOR, preserving every slot kind and the
// slot order.
func MarshalFrame(frame *Frame) ([]byte, error) {
	data, err := cbor.Marshal(frameToWire(frame))
	if err != nil {
		return nil, fmt.Errorf("kvp: marshal frame: %w", err)
	}
	return data, nil
}

// UnmarshalFrame decodes data produced by MarshalFrame.
func UnmarshalFrame(data []byte) (*Frame, error) {
	var slots []wireSlot
	if err := cbor.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("kvp: unmarshal frame: %w", err)
	}
	return frameFromWire(slots)
}

func frameToWire(frame *Frame) []wireSlot {
	slots := make([]wireSlot, 0, frame.Len())
	frame.ForEachSlot(func(key string, value *Value) {
		slots = append(slots, wireSlot{Key: key, Value: valueToWire(value)})
	})
	return slots
}

func valueToWire(value *Value) wireValue {
	out := wireValue{Type: value.Type()}
	switch value.Type() {
	case TypeInt64:
		out.Int = value.Int64()
	case TypeDouble:
		out.Double = value.Double()
	case TypeNumeric:
		num := value.Numeric()
		out.Num = &num
	case TypeString:
		out.Str = value.StringValue()
	case TypeGUID:
		guid := value.GUID()
		out.GUID = guid[:]
	case TypeTimespec:
		out.Time = value.Timespec().Format(time.RFC3339Nano)
	case TypeBinary:
		out.Binary = value.Binary()
	case TypeList:
		out.List = make([]wireValue, 0, len(value.List()))
		for _, item := range value.List() {
			out.List = append(out.List, valueToWire(item))
		}
	case TypeFrame:
		out.Frame = frameToWire(value.Frame())
	}
	return out
}

func frameFromWire(slots []wireSlot) (*Frame, error) {
	frame := NewFrame()
	for _, slot := range slots {
		value, err := valueFromWire(slot.Value)
		if err != nil {
			return nil, fmt.Errorf("kvp: slot %q: %w", slot.Key, err)
		}
		frame.slots.Set(slot.Key, value)
	}
	return frame, nil
}

func valueFromWire(in wireValue) (*Value, error) {
	switch in.Type {
	case TypeInt64:
		return NewInt64(in.Int), nil
	case TypeDouble:
		return NewDouble(in.Double), nil
	case TypeNumeric:
		if in.Num == nil {
			return NewNumericValue(Numeric{}), nil
		}
		return NewNumericValue(*in.Num), nil
	case TypeString:
		return NewString(in.Str), nil
	case TypeGUID:
		guid, err := uuid.FromBytes(in.GUID)
		if err != nil {
			return nil, err
		}
		return NewGUID(guid), nil
	case TypeTimespec:
		ts, err := time.Parse(time.RFC3339Nano, in.Time)
		if err != nil {
			return nil, err
		}
		return NewTimespec(ts), nil
	case TypeBinary:
		return NewBinary(in.Binary), nil
	case TypeList:
		items := make([]*Value, 0, len(in.List))
		for _, item := range in.List {
			value, err := valueFromWire(item)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return &Value{kind: TypeList, list: items}, nil
	case TypeFrame:
		frame, err := frameFromWire(in.Frame)
		if err != nil {
			return nil, err
		}
		return &Value{kind: TypeFrame, frame: frame}, nil
	default:
		return nil, fmt.Errorf("%w: type %d", ErrUnsupportedValue, in.Type)
	}
}
