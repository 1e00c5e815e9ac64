package qof

import (
	"context"

	"github.com/goliatone/go-qof/kvp"
)

// PercentageFunc receives progress reports from long-running backend work.
type PercentageFunc func(message string, percent float64)

// Hooks is the dispatch table a concrete backend fills in. Every slot is
// optional; an unset slot turns the matching trampoline into a no-op.
type Hooks struct {
	SessionBegin  func(ctx context.Context, be *Backend, book *Book, uri string, ignoreLock, create bool)
	SessionEnd    func(ctx context.Context, be *Backend)
	Destroy       func(be *Backend)
	Load          func(ctx context.Context, be *Backend, book *Book)
	Begin         func(be *Backend, inst *Instance)
	Commit        func(be *Backend, inst *Instance)
	Rollback      func(be *Backend, inst *Instance)
	CompileQuery  func(be *Backend, query *Query) any
	FreeQuery     func(be *Backend, compiled any)
	RunQuery      func(ctx context.Context, be *Backend, compiled any) []*Instance
	Sync          func(ctx context.Context, be *Backend, book *Book)
	LoadConfig    func(be *Backend, config *kvp.Frame)
	GetConfig     func(be *Backend) *kvp.Frame
	EventsPending func(be *Backend) bool
	ProcessEvents func(be *Backend) bool
	Percentage    PercentageFunc
}

// SessionBeginner opens the backing store for a book.
type SessionBeginner interface {
	SessionBegin(ctx context.Context, be *Backend, book *Book, uri string, ignoreLock, create bool)
}

// SessionEnder releases the backing store.
type SessionEnder interface {
	SessionEnd(ctx context.Context, be *Backend)
}

// Destroyer tears down backend-private state.
type Destroyer interface {
	Destroy(be *Backend)
}

// BookLoader populates a book from the store.
type BookLoader interface {
	Load(ctx context.Context, be *Backend, book *Book)
}

// Beginner is told when an instance enters its outermost edit.
type Beginner interface {
	Begin(be *Backend, inst *Instance)
}

// Committer persists an edited instance.
type Committer interface {
	Commit(be *Backend, inst *Instance)
}

// RollbackHandler discards an edit.
type RollbackHandler interface {
	Rollback(be *Backend, inst *Instance)
}

// QueryCompiler turns a query into a backend-private form.
type QueryCompiler interface {
	CompileQuery(be *Backend, query *Query) any
}

// QueryFreer releases a compiled query.
type QueryFreer interface {
	FreeQuery(be *Backend, compiled any)
}

// QueryRunner executes a compiled query.
type QueryRunner interface {
	RunQuery(ctx context.Context, be *Backend, compiled any) []*Instance
}

// Syncer writes a whole book to the store.
type Syncer interface {
	Sync(ctx context.Context, be *Backend, book *Book)
}

// ConfigLoader accepts a configuration tree.
type ConfigLoader interface {
	LoadConfig(be *Backend, config *kvp.Frame)
}

// ConfigProvider exposes the backend's option tree.
type ConfigProvider interface {
	GetConfig(be *Backend) *kvp.Frame
}

// EventPoller reports whether external changes are waiting.
type EventPoller interface {
	EventsPending(be *Backend) bool
}

// EventProcessor applies waiting external changes.
type EventProcessor interface {
	ProcessEvents(be *Backend) bool
}

// HooksFrom builds a hook table from the capability interfaces impl
// satisfies. Slots for interfaces impl does not implement stay unset.
func HooksFrom(impl any) Hooks {
	var hooks Hooks
	if impl == nil {
		return hooks
	}
	if v, ok := impl.(SessionBeginner); ok {
		hooks.SessionBegin = v.SessionBegin
	}
	if v, ok := impl.(SessionEnder); ok {
		hooks.SessionEnd = v.SessionEnd
	}
	if v, ok := impl.(Destroyer); ok {
		hooks.Destroy = v.Destroy
	}
	if v, ok := impl.(BookLoader); ok {
		hooks.Load = v.Load
	}
	if v, ok := impl.(Beginner); ok {
		hooks.Begin = v.Begin
	}
	if v, ok := impl.(Committer); ok {
		hooks.Commit = v.Commit
	}
	if v, ok := impl.(RollbackHandler); ok {
		hooks.Rollback = v.Rollback
	}
	if v, ok := impl.(QueryCompiler); ok {
		hooks.CompileQuery = v.CompileQuery
	}
	if v, ok := impl.(QueryFreer); ok {
		hooks.FreeQuery = v.FreeQuery
	}
	if v, ok := impl.(QueryRunner); ok {
		hooks.RunQuery = v.RunQuery
	}
	if v, ok := impl.(Syncer); ok {
		hooks.Sync = v.Sync
	}
	if v, ok := impl.(ConfigLoader); ok {
		hooks.LoadConfig = v.LoadConfig
	}
	if v, ok := impl.(ConfigProvider); ok {
		hooks.GetConfig = v.GetConfig
	}
	if v, ok := impl.(EventPoller); ok {
		hooks.EventsPending = v.EventsPending
	}
	if v, ok := impl.(EventProcessor); ok {
		hooks.ProcessEvents = v.ProcessEvents
	}
	return hooks
}
