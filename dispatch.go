package qof

import (
	"context"

	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/pkg/activity"
)

// SessionBegin opens uri for book through the installed hook.
func (be *Backend) SessionBegin(ctx context.Context, book *Book, uri string, ignoreLock, create bool) {
	if be == nil || be.hooks.SessionBegin == nil {
		return
	}
	be.log(LogEvent{Op: "session_begin", Key: uri})
	be.hooks.SessionBegin(ctx, be, book, uri, ignoreLock, create)
	input := activity.BackendEventInput{URI: uri}
	if code := be.PeekError(); code != ErrBackendNoErr {
		input.Code = code.String()
	}
	be.emit(activity.BuildSessionBegunEvent(be.eventInput(input)))
}

// SessionEnd closes the session through the installed hook.
func (be *Backend) SessionEnd(ctx context.Context) {
	if be == nil || be.hooks.SessionEnd == nil {
		return
	}
	be.log(LogEvent{Op: "session_end"})
	be.hooks.SessionEnd(ctx, be)
	be.emit(activity.BuildSessionEndedEvent(be.eventInput(activity.BackendEventInput{})))
}

// Destroy invokes the destroy hook. The handle itself is left to the garbage
// collector.
func (be *Backend) Destroy() {
	if be == nil || be.hooks.Destroy == nil {
		return
	}
	be.hooks.Destroy(be)
}

// RunLoad loads book from the store.
func (be *Backend) RunLoad(ctx context.Context, book *Book) {
	if be == nil || book == nil || be.hooks.Load == nil {
		return
	}
	be.hooks.Load(ctx, be, book)
}

// RunBegin notifies the backend that inst entered its outermost edit.
func (be *Backend) RunBegin(inst *Instance) {
	if be == nil || inst == nil || be.hooks.Begin == nil {
		return
	}
	be.hooks.Begin(be, inst)
}

// RunCommit hands inst to the backend for persistence.
func (be *Backend) RunCommit(inst *Instance) {
	if be == nil || inst == nil || be.hooks.Commit == nil {
		return
	}
	be.hooks.Commit(be, inst)
}

// RunRollback asks the backend to discard pending changes to inst.
func (be *Backend) RunRollback(inst *Instance) {
	if be == nil || inst == nil || be.hooks.Rollback == nil {
		return
	}
	be.hooks.Rollback(be, inst)
}

// CompileQuery returns the backend-private form of query, or nil when the
// backend does not compile queries.
func (be *Backend) CompileQuery(query *Query) any {
	if be == nil || query == nil || be.hooks.CompileQuery == nil {
		return nil
	}
	return be.hooks.CompileQuery(be, query)
}

// FreeQuery releases a value returned by CompileQuery.
func (be *Backend) FreeQuery(compiled any) {
	if be == nil || compiled == nil || be.hooks.FreeQuery == nil {
		return
	}
	be.hooks.FreeQuery(be, compiled)
}

// RunQuery executes a compiled query.
func (be *Backend) RunQuery(ctx context.Context, compiled any) []*Instance {
	if be == nil || compiled == nil || be.hooks.RunQuery == nil {
		return nil
	}
	return be.hooks.RunQuery(ctx, be, compiled)
}

// RunSync writes the whole of book to the store.
func (be *Backend) RunSync(ctx context.Context, book *Book) {
	if be == nil || book == nil || be.hooks.Sync == nil {
		return
	}
	be.hooks.Sync(ctx, be, book)
}

// LoadConfig hands config to the backend.
func (be *Backend) LoadConfig(config *kvp.Frame) {
	if be == nil || config == nil || be.hooks.LoadConfig == nil {
		return
	}
	be.hooks.LoadConfig(be, config)
	be.log(LogEvent{Op: "load_config", Count: config.Len()})
	be.emit(activity.BuildConfigLoadedEvent(be.eventInput(activity.BackendEventInput{Count: config.Len()})))
}

// GetConfig asks the backend for its option tree. It returns nil when the
// backend exposes none.
func (be *Backend) GetConfig() *kvp.Frame {
	if be == nil || be.hooks.GetConfig == nil {
		return nil
	}
	return be.hooks.GetConfig(be)
}

// EventsPending reports whether the store has changes the engine has not
// seen yet.
func (be *Backend) EventsPending() bool {
	if be == nil || be.hooks.EventsPending == nil {
		return false
	}
	return be.hooks.EventsPending(be)
}

// ProcessEvents applies pending store changes and reports whether anything
// was applied.
func (be *Backend) ProcessEvents() bool {
	if be == nil || be.hooks.ProcessEvents == nil {
		return false
	}
	return be.hooks.ProcessEvents(be)
}

// SetPercentage installs the progress callback.
func (be *Backend) SetPercentage(fn PercentageFunc) {
	if be == nil {
		return
	}
	be.hooks.Percentage = fn
}

// ReportProgress forwards a progress update to the percentage callback.
func (be *Backend) ReportProgress(message string, percent float64) {
	if be == nil || be.hooks.Percentage == nil {
		return
	}
	be.hooks.Percentage(message, percent)
}

func (be *Backend) BeginExists() bool    { return be != nil && be.hooks.Begin != nil }
func (be *Backend) CommitExists() bool   { return be != nil && be.hooks.Commit != nil }
func (be *Backend) RollbackExists() bool { return be != nil && be.hooks.Rollback != nil }
func (be *Backend) LoadExists() bool     { return be != nil && be.hooks.Load != nil }
func (be *Backend) SyncExists() bool     { return be != nil && be.hooks.Sync != nil }

// QueryExists reports whether the backend runs queries itself.
func (be *Backend) QueryExists() bool {
	return be != nil && be.hooks.CompileQuery != nil && be.hooks.RunQuery != nil
}

// ConfigExists reports whether the backend exposes options.
func (be *Backend) ConfigExists() bool {
	return be != nil && be.hooks.GetConfig != nil
}

// EventsExist reports whether the backend can deliver external changes.
func (be *Backend) EventsExist() bool {
	return be != nil && be.hooks.EventsPending != nil && be.hooks.ProcessEvents != nil
}
