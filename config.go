package qof

import (
	"strings"
	"time"

	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/pkg/activity"
)

const (
	configDescKey = "desc"
	configTipKey  = "tip"
)

// ConfigOption is one backend setting as seen by an options dialog.
//
// Value holds the Go form of the declared Type: int64, float64, kvp.Numeric,
// string or time.Time. Pointers to those types are also accepted by
// PrepareOption.
type ConfigOption struct {
	Name        string
	Type        kvp.ValueType
	Value       any
	Description string
	Tooltip     string
}

// OptionVisitor receives each option found by OptionForEach.
type OptionVisitor func(ConfigOption)

// PrepareFrame starts a new option collection pass. A tree that already
// holds slots is replaced with a fresh one.
func (be *Backend) PrepareFrame() {
	if be == nil {
		return
	}
	if be.config == nil || !be.config.IsEmpty() {
		be.config = kvp.NewFrame()
	}
	be.configCount = 0
}

// PrepareOption adds opt to the tree under /<name> with its description at
// /desc/<name> and tooltip at /tip/<name>. Options of an unsupported kind, or
// whose value does not match the declared kind, are skipped.
func (be *Backend) PrepareOption(opt ConfigOption) {
	if be == nil {
		return
	}
	if !validOptionName(opt.Name) {
		be.log(LogEvent{Op: "prepare_option", Key: opt.Name, Message: "qof: invalid option name"})
		return
	}
	value, ok := optionValue(opt.Type, opt.Value)
	if !ok {
		be.log(LogEvent{Op: "prepare_option", Key: opt.Name, Message: "qof: option skipped for kind " + opt.Type.String()})
		return
	}
	if be.config == nil {
		be.config = kvp.NewFrame()
	}
	be.config.SetValue("/"+opt.Name, value)
	be.config.SetString("/"+configDescKey+"/"+opt.Name, opt.Description)
	be.config.SetString("/"+configTipKey+"/"+opt.Name, opt.Tooltip)
	be.configCount++
	be.log(LogEvent{Op: "prepare_option", Key: opt.Name, Count: be.configCount})
}

// CompleteFrame ends a collection pass and returns the tree. The handle keeps
// the tree; the option count is reset.
func (be *Backend) CompleteFrame() *kvp.Frame {
	if be == nil {
		return nil
	}
	count := be.configCount
	be.configCount = 0
	be.log(LogEvent{Op: "complete_frame", Count: count})
	be.emit(activity.BuildConfigCompletedEvent(be.eventInput(activity.BackendEventInput{Count: count})))
	return be.config
}

// ConfigCount returns the number of options collected since the last
// PrepareFrame or CompleteFrame.
func (be *Backend) ConfigCount() int {
	if be == nil {
		return 0
	}
	return be.configCount
}

// OptionForEach calls visit for every option stored in config and returns
// the number of calls. The desc and tip sub-frames are not options and
// slots without a type are skipped. Slots of kinds an option cannot hold
// are visited with their stored type and a nil Value.
func OptionForEach(config *kvp.Frame, visit OptionVisitor) int {
	return forEachOption(nil, config, visit)
}

// OptionForEach is the package function with visits logged through the
// handle's logger.
func (be *Backend) OptionForEach(config *kvp.Frame, visit OptionVisitor) int {
	return forEachOption(be, config, visit)
}

func forEachOption(be *Backend, config *kvp.Frame, visit OptionVisitor) int {
	if config == nil || visit == nil {
		return 0
	}
	calls := 1
	for _, key := range config.Keys() {
		if key == configDescKey || key == configTipKey {
			continue
		}
		value := config.GetValue(key)
		if value.Type() == kvp.TypeInvalid {
			continue
		}
		opt := ConfigOption{
			Name:        key,
			Type:        value.Type(),
			Value:       optionNative(value),
			Description: config.GetString("/" + configDescKey + "/" + key),
			Tooltip:     config.GetString("/" + configTipKey + "/" + key),
		}
		be.log(LogEvent{Op: "option_for_each", Key: key, Count: calls})
		calls++
		visit(opt)
	}
	return calls - 1
}

func validOptionName(name string) bool {
	if strings.TrimSpace(name) == "" || strings.Contains(name, "/") {
		return false
	}
	return name != configDescKey && name != configTipKey
}

func optionValue(typ kvp.ValueType, raw any) (*kvp.Value, bool) {
	switch typ {
	case kvp.TypeInt64:
		switch v := raw.(type) {
		case int64:
			return kvp.NewInt64(v), true
		case int:
			return kvp.NewInt64(int64(v)), true
		case int32:
			return kvp.NewInt64(int64(v)), true
		case *int64:
			if v != nil {
				return kvp.NewInt64(*v), true
			}
		}
	case kvp.TypeDouble:
		switch v := raw.(type) {
		case float64:
			return kvp.NewDouble(v), true
		case float32:
			return kvp.NewDouble(float64(v)), true
		case *float64:
			if v != nil {
				return kvp.NewDouble(*v), true
			}
		}
	case kvp.TypeNumeric:
		switch v := raw.(type) {
		case kvp.Numeric:
			return kvp.NewNumericValue(v), true
		case *kvp.Numeric:
			if v != nil {
				return kvp.NewNumericValue(*v), true
			}
		}
	case kvp.TypeString:
		switch v := raw.(type) {
		case string:
			return kvp.NewString(v), true
		case *string:
			if v != nil {
				return kvp.NewString(*v), true
			}
		}
	case kvp.TypeTimespec:
		switch v := raw.(type) {
		case time.Time:
			return kvp.NewTimespec(v), true
		case *time.Time:
			if v != nil {
				return kvp.NewTimespec(*v), true
			}
		}
	}
	return nil, false
}

func optionNative(value *kvp.Value) any {
	switch value.Type() {
	case kvp.TypeInt64:
		return value.Int64()
	case kvp.TypeDouble:
		return value.Double()
	case kvp.TypeNumeric:
		return value.Numeric()
	case kvp.TypeString:
		return value.StringValue()
	case kvp.TypeTimespec:
		return value.Timespec()
	default:
		return nil
	}
}
