// Package predicate evaluates query predicates against instance records.
//
// Three engines are available: expr-lang/expr (the default), google/cel-go,
// and goja JavaScript when built with the js_eval tag. Every engine binds the
// same names: record (the instance slots as a map), kind (the instance type),
// guid, now, args, and any functions registered in a FunctionRegistry.
package predicate

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyExpression is returned when compiling or evaluating "".
	ErrEmptyExpression = errors.New("predicate: expression must not be empty")
	// ErrNotBoolean is returned by Match when a predicate yields a non-bool.
	ErrNotBoolean = errors.New("predicate: result is not a boolean")
	// ErrUnknownLanguage is returned by New for unsupported language names.
	ErrUnknownLanguage = errors.New("predicate: unknown language")
	// ErrUnavailable is returned by New when an engine is not compiled in.
	ErrUnavailable = errors.New("predicate: language not available in this build")
)

// Context is the data a predicate runs against.
type Context struct {
	Type   string
	GUID   uuid.UUID
	Record map[string]any
	Args   map[string]any
	Now    *time.Time
}

func (ctx Context) withDefaults() Context {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Record == nil {
		ctx.Record = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx Context) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx Context) subject() string {
	if ctx.Type == "" && ctx.GUID == uuid.Nil {
		return "unknown"
	}
	return ctx.Type + ":" + ctx.GUID.String()
}

func (ctx Context) bindings() map[string]any {
	return map[string]any{
		"record": ctx.Record,
		"kind":   ctx.Type,
		"guid":   ctx.GUID.String(),
		"now":    ctx.timestamp(),
		"args":   ctx.Args,
	}
}

// Evaluator runs predicate expressions.
type Evaluator interface {
	Evaluate(ctx Context, expr string) (any, error)
	Compile(expr string) (Program, error)
}

// Program is a compiled predicate.
type Program interface {
	Evaluate(ctx Context) (any, error)
}

// Cache stores compiled programs keyed by expression.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewMapCache returns an unbounded, concurrency-safe Cache.
func NewMapCache() Cache {
	return &mapCache{entries: make(map[string]any)}
}

type mapCache struct {
	mu      sync.RWMutex
	entries map[string]any
}

func (c *mapCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *mapCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Match runs program against ctx and requires a boolean result.
func Match(program Program, ctx Context) (bool, error) {
	if program == nil {
		return false, errors.New("predicate: program is nil")
	}
	result, err := program.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, &EvaluationError{Subject: ctx.subject(), Err: ErrNotBoolean}
	}
	return matched, nil
}
