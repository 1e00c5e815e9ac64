package qof

import (
	"context"
	"fmt"

	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/pkg/activity"
)

const defaultBackendName = "backend"

// Backend is the per-connection handle the engine talks to. It carries an
// earliest-wins error slot, a one-shot message, the optional hook table a
// concrete backend fills in, and the configuration tree collected from the
// backend's options.
//
// A Backend is not safe for concurrent use; callers serialize access to a
// given handle.
type Backend struct {
	name        string
	hooks       Hooks
	impl        any
	lastErr     ErrorCode
	errorMsg    *string
	config      *kvp.Frame
	configCount int
	logger      Logger
	emitter     *activity.Emitter
	actorID     string
}

// Option configures a Backend at construction time.
type Option func(*Backend)

// NewBackend returns an initialised handle with opts applied.
func NewBackend(opts ...Option) *Backend {
	be := &Backend{
		name:   defaultBackendName,
		logger: noopLogger{},
	}
	be.Init()
	for _, opt := range opts {
		if opt != nil {
			opt(be)
		}
	}
	return be
}

// WithName sets the name used in logs and activity events, usually the
// provider access method.
func WithName(name string) Option {
	return func(be *Backend) {
		if name != "" {
			be.name = name
		}
	}
}

// WithHooks installs an explicit hook table.
func WithHooks(hooks Hooks) Option {
	return func(be *Backend) {
		be.hooks = hooks
	}
}

// WithImplementation installs the hooks impl provides through the capability
// interfaces, keeping any percentage callback already set.
func WithImplementation(impl any) Option {
	return func(be *Backend) {
		percentage := be.hooks.Percentage
		be.hooks = HooksFrom(impl)
		be.hooks.Percentage = percentage
		be.impl = impl
	}
}

// WithActivityHooks enables activity events for the handle.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(be *Backend) {
		be.emitter = activity.NewEmitter(hooks, activity.Config{Enabled: true})
	}
}

// WithActor records the actor reported on activity events.
func WithActor(actorID string) Option {
	return func(be *Backend) {
		be.actorID = actorID
	}
}

// Init returns the handle to a clean state: every hook slot unset, no
// pending error or message, and a fresh empty configuration tree. Name,
// logger and activity settings survive.
func (be *Backend) Init() {
	if be == nil {
		return
	}
	be.hooks = Hooks{}
	be.impl = nil
	be.lastErr = ErrBackendNoErr
	be.errorMsg = nil
	be.config = kvp.NewFrame()
	be.configCount = 0
	if be.logger == nil {
		be.logger = noopLogger{}
	}
}

// Name returns the handle name.
func (be *Backend) Name() string {
	if be == nil {
		return ""
	}
	return be.name
}

// Implementation returns the value installed with WithImplementation.
func (be *Backend) Implementation() any {
	if be == nil {
		return nil
	}
	return be.impl
}

// Hooks returns a copy of the hook table.
func (be *Backend) Hooks() Hooks {
	if be == nil {
		return Hooks{}
	}
	return be.hooks
}

// SetHooks replaces the hook table.
func (be *Backend) SetHooks(hooks Hooks) {
	if be == nil {
		return
	}
	be.hooks = hooks
}

// SetError records code unless an error is already pending. Only the
// earliest error since the last GetError counts.
func (be *Backend) SetError(code ErrorCode) {
	if be == nil {
		return
	}
	if be.lastErr != ErrBackendNoErr {
		return
	}
	be.lastErr = code
	if code == ErrBackendNoErr {
		return
	}
	be.log(LogEvent{Op: "set_error", Code: code})
	be.emit(activity.BuildErrorSetEvent(be.eventInput(activity.BackendEventInput{Code: code.String()})))
}

// GetError returns the pending code and clears it. A nil handle reports
// ErrBackendNoBackend.
func (be *Backend) GetError() ErrorCode {
	if be == nil {
		return ErrBackendNoBackend
	}
	code := be.lastErr
	be.lastErr = ErrBackendNoErr
	return code
}

// PeekError returns the pending code without clearing it.
func (be *Backend) PeekError() ErrorCode {
	if be == nil {
		return ErrBackendNoBackend
	}
	return be.lastErr
}

// SetMessage replaces the pending message. The format is always run
// through fmt.Sprintf, so a literal percent is written as %%. An empty
// format clears the message.
func (be *Backend) SetMessage(format string, args ...any) {
	if be == nil {
		return
	}
	if format == "" {
		be.errorMsg = nil
		return
	}
	msg := fmt.Sprintf(format, args...)
	be.errorMsg = &msg
}

// ClearMessage drops any pending message.
func (be *Backend) ClearMessage() {
	be.SetMessage("")
}

// GetMessage pops the pending message. ok is false when no message was set.
// A nil handle returns the "ERR_BACKEND_NO_BACKEND" placeholder with ok true.
func (be *Backend) GetMessage() (msg string, ok bool) {
	if be == nil {
		return noBackendMessage, true
	}
	if be.errorMsg == nil {
		return "", false
	}
	msg = *be.errorMsg
	be.errorMsg = nil
	return msg, true
}

// Err pops both the pending code and message into a *BackendError. It
// returns nil when no error is pending; a message on its own is left in
// place.
func (be *Backend) Err() error {
	if be == nil {
		return ErrBackendNoBackend.Err(noBackendMessage)
	}
	if be.lastErr == ErrBackendNoErr {
		return nil
	}
	code := be.GetError()
	msg, _ := be.GetMessage()
	return code.Err(msg)
}

// Fail records code and message together. The message is replaced even when
// an earlier code is kept.
func (be *Backend) Fail(code ErrorCode, format string, args ...any) {
	be.SetError(code)
	be.SetMessage(format, args...)
}

func (be *Backend) eventInput(input activity.BackendEventInput) activity.BackendEventInput {
	input.ActorID = be.actorID
	input.Backend = be.name
	return input
}

func (be *Backend) emit(event activity.Event) {
	if be == nil || !be.emitter.Enabled() {
		return
	}
	if err := be.emitter.Emit(context.Background(), event); err != nil {
		be.log(LogEvent{Op: "activity", Key: event.Verb, Err: err})
	}
}
