package qof

import (
	"bytes"
	"errors"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/goliatone/go-qof/kvp"
)

var (
	// ErrNilInstance is returned when a nil instance is inserted.
	ErrNilInstance = errors.New("qof: nil instance")
	// ErrInstanceType is returned for instances without a type name.
	ErrInstanceType = errors.New("qof: instance type required")
)

// Instance is one editable entity of a book.
type Instance struct {
	GUID  uuid.UUID
	Type  string
	Slots *kvp.Frame

	book      *Book
	editLevel int
	dirty     bool
}

// NewInstance returns a detached instance with a fresh GUID.
func NewInstance(typ string) *Instance {
	return &Instance{
		GUID:  uuid.New(),
		Type:  typ,
		Slots: kvp.NewFrame(),
	}
}

// Book returns the owning book, or nil for a detached instance.
func (inst *Instance) Book() *Book {
	if inst == nil {
		return nil
	}
	return inst.book
}

// Backend resolves the backend through the owning book.
func (inst *Instance) Backend() *Backend {
	return inst.Book().Backend()
}

// EditLevel returns the current edit nesting depth.
func (inst *Instance) EditLevel() int {
	if inst == nil {
		return 0
	}
	return inst.editLevel
}

// IsDirty reports whether the instance changed since it was last stored.
func (inst *Instance) IsDirty() bool {
	return inst != nil && inst.dirty
}

// SetDirty sets or clears the dirty flag. Backends clear it once the
// instance is stored.
func (inst *Instance) SetDirty(dirty bool) {
	if inst == nil {
		return
	}
	inst.dirty = dirty
}

// Book is a collection of instances grouped by type, bound to at most one
// backend.
type Book struct {
	GUID uuid.UUID

	backend     *Backend
	collections map[string]map[uuid.UUID]*Instance
}

// NewBook returns an empty book bound to be, which may be nil.
func NewBook(be *Backend) *Book {
	return &Book{
		GUID:        uuid.New(),
		backend:     be,
		collections: make(map[string]map[uuid.UUID]*Instance),
	}
}

// Backend returns the bound backend. It is nil-safe on both the book and
// the binding.
func (b *Book) Backend() *Backend {
	if b == nil {
		return nil
	}
	return b.backend
}

// SetBackend rebinds the book.
func (b *Book) SetBackend(be *Backend) {
	if b == nil {
		return
	}
	b.backend = be
}

// NewInstance creates an instance of typ owned by the book.
func (b *Book) NewInstance(typ string) *Instance {
	inst := NewInstance(typ)
	if b != nil {
		_ = b.Insert(inst)
	}
	return inst
}

// Insert adds inst to the book, replacing an instance with the same GUID.
func (b *Book) Insert(inst *Instance) error {
	if b == nil || inst == nil {
		return ErrNilInstance
	}
	if inst.Type == "" {
		return ErrInstanceType
	}
	if inst.Slots == nil {
		inst.Slots = kvp.NewFrame()
	}
	if b.collections == nil {
		b.collections = make(map[string]map[uuid.UUID]*Instance)
	}
	coll, ok := b.collections[inst.Type]
	if !ok {
		coll = make(map[uuid.UUID]*Instance)
		b.collections[inst.Type] = coll
	}
	coll[inst.GUID] = inst
	inst.book = b
	return nil
}

// Lookup finds an instance by type and GUID.
func (b *Book) Lookup(typ string, guid uuid.UUID) *Instance {
	if b == nil {
		return nil
	}
	return b.collections[typ][guid]
}

// Remove drops an instance from the book and reports whether it was present.
func (b *Book) Remove(typ string, guid uuid.UUID) bool {
	if b == nil {
		return false
	}
	coll, ok := b.collections[typ]
	if !ok {
		return false
	}
	inst, ok := coll[guid]
	if !ok {
		return false
	}
	delete(coll, guid)
	if len(coll) == 0 {
		delete(b.collections, typ)
	}
	inst.book = nil
	return true
}

// ForEach visits the instances of typ in GUID order until fn returns false.
// An empty typ visits every type in name order.
func (b *Book) ForEach(typ string, fn func(*Instance) bool) {
	if b == nil || fn == nil {
		return
	}
	types := []string{typ}
	if typ == "" {
		types = b.Types()
	}
	for _, name := range types {
		coll := b.collections[name]
		guids := make([]uuid.UUID, 0, len(coll))
		for guid := range coll {
			guids = append(guids, guid)
		}
		slices.SortFunc(guids, func(a, b uuid.UUID) int {
			return bytes.Compare(a[:], b[:])
		})
		for _, guid := range guids {
			if !fn(coll[guid]) {
				return
			}
		}
	}
}

// Types returns the instance types present in the book, sorted.
func (b *Book) Types() []string {
	if b == nil {
		return nil
	}
	types := make([]string, 0, len(b.collections))
	for typ := range b.collections {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of instances of typ, or of every type when typ is
// empty.
func (b *Book) Len(typ string) int {
	if b == nil {
		return 0
	}
	if typ != "" {
		return len(b.collections[typ])
	}
	total := 0
	for _, coll := range b.collections {
		total += len(coll)
	}
	return total
}

// Query asks a backend for instances of one type matching a predicate.
type Query struct {
	SearchFor  string
	Predicate  string
	Language   string
	Book       *Book
	MaxResults int
}
