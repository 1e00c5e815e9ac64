package kvp

import (
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
)

// EncodeTOML writes frame as a TOML document. Numerics become inline tables
// with num and denom keys. GUID and binary slots are written as strings
// (binary base64 encoded) and read back as strings.
func EncodeTOML(w io.Writer, frame *Frame) error {
	if err := toml.NewEncoder(w).Encode(frameToTOML(frame)); err != nil {
		return fmt.Errorf("kvp: encode toml: %w", err)
	}
	return nil
}

// DecodeTOML reads a TOML document into a frame.
func DecodeTOML(r io.Reader) (*Frame, error) {
	raw := map[string]any{}
	if _, err := toml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("kvp: decode toml: %w", err)
	}
	return frameFromTOML(raw)
}

func frameToTOML(frame *Frame) map[string]any {
	out := make(map[string]any, frame.Len())
	frame.ForEachSlot(func(key string, value *Value) {
		if converted := valueToTOML(value); converted != nil {
			out[key] = converted
		}
	})
	return out
}

func valueToTOML(value *Value) any {
	switch value.Type() {
	case TypeInt64:
		return value.Int64()
	case TypeDouble:
		return value.Double()
	case TypeNumeric:
		num := value.Numeric()
		return map[string]any{"num": num.Num, "denom": num.Denom}
	case TypeString:
		return value.StringValue()
	case TypeGUID:
		return value.GUID().String()
	case TypeTimespec:
		return value.Timespec()
	case TypeBinary:
		return base64.StdEncoding.EncodeToString(value.Binary())
	case TypeList:
		items := make([]any, 0, len(value.List()))
		for _, item := range value.List() {
			if converted := valueToTOML(item); converted != nil {
				items = append(items, converted)
			}
		}
		return items
	case TypeFrame:
		return frameToTOML(value.Frame())
	default:
		return nil
	}
}

func frameFromTOML(raw map[string]any) (*Frame, error) {
	frame := NewFrame()
	for _, key := range sortedKeys(raw) {
		value, err := valueFromTOML(raw[key])
		if err != nil {
			return nil, fmt.Errorf("kvp: toml key %q: %w", key, err)
		}
		frame.ensure()
		frame.slots.Set(key, value)
	}
	return frame, nil
}

func valueFromTOML(raw any) (*Value, error) {
	switch typed := raw.(type) {
	case int64:
		return NewInt64(typed), nil
	case float64:
		return NewDouble(typed), nil
	case bool:
		if typed {
			return NewInt64(1), nil
		}
		return NewInt64(0), nil
	case string:
		return NewString(typed), nil
	case time.Time:
		return NewTimespec(typed), nil
	case []any:
		items := make([]*Value, 0, len(typed))
		for _, item := range typed {
			value, err := valueFromTOML(item)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return &Value{kind: TypeList, list: items}, nil
	case []map[string]any:
		items := make([]*Value, 0, len(typed))
		for _, item := range typed {
			value, err := valueFromTOML(item)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		return &Value{kind: TypeList, list: items}, nil
	case map[string]any:
		if num, ok := numericFromTOML(typed); ok {
			return NewNumericValue(num), nil
		}
		frame, err := frameFromTOML(typed)
		if err != nil {
			return nil, err
		}
		return &Value{kind: TypeFrame, frame: frame}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
	}
}

func numericFromTOML(table map[string]any) (Numeric, bool) {
	if len(table) != 2 {
		return Numeric{}, false
	}
	num, okNum := table["num"].(int64)
	denom, okDenom := table["denom"].(int64)
	if !okNum || !okDenom || denom == 0 {
		return Numeric{}, false
	}
	return NewNumeric(num, denom), true
}
