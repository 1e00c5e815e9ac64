// Package memory is a map-backed store. It implements every hook, which
// makes it the reference for the dispatch table and the store used in tests.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/internal/hydrate"
	"github.com/goliatone/go-qof/kvp"
	"github.com/goliatone/go-qof/predicate"
)

// AccessMethod is the URI scheme served by this package.
const AccessMethod = "memory"

const (
	optionLanguage   = "language"
	optionMaxResults = "max-results"
)

// Settings are the options a memory store exposes.
type Settings struct {
	Language   string `json:"language"`
	MaxResults int    `json:"max-results"`
}

// DefaultSettings returns the settings of a fresh store.
func DefaultSettings() Settings {
	return Settings{Language: predicate.LanguageExpr}
}

// Change is an externally made edit waiting to be applied by ProcessEvents.
// A nil Slots removes the instance.
type Change struct {
	Type  string
	GUID  uuid.UUID
	Slots *kvp.Frame
}

// Store holds committed instance slots keyed by type and GUID.
type Store struct {
	records   map[string]map[uuid.UUID]*kvp.Frame
	snapshots map[uuid.UUID]*kvp.Frame
	settings  Settings
	book      *qof.Book
	uri       string
	open      bool
	caches    map[string]predicate.Cache

	mu      sync.Mutex
	pending []Change
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		records:   make(map[string]map[uuid.UUID]*kvp.Frame),
		snapshots: make(map[uuid.UUID]*kvp.Frame),
		settings:  DefaultSettings(),
	}
}

// New returns a backend handle over a fresh store.
func New(opts ...qof.Option) *qof.Backend {
	base := []qof.Option{qof.WithName(AccessMethod), qof.WithImplementation(NewStore())}
	return qof.NewBackend(append(base, opts...)...)
}

// Register adds the memory provider to registry.
func Register(registry *qof.ProviderRegistry) error {
	return registry.Register(qof.Provider{
		Name:         "In-memory store",
		AccessMethod: AccessMethod,
		PartialBook:  true,
		New:          func() *qof.Backend { return New() },
	})
}

// StoreOf returns the store behind be, or nil when be is not a memory handle.
func StoreOf(be *qof.Backend) *Store {
	store, _ := be.Implementation().(*Store)
	return store
}

// Settings returns the active settings.
func (s *Store) Settings() Settings {
	return s.settings
}

// Len returns the number of committed instances.
func (s *Store) Len() int {
	total := 0
	for _, coll := range s.records {
		total += len(coll)
	}
	return total
}

// Committed returns a copy of the committed slots for an instance.
func (s *Store) Committed(typ string, guid uuid.UUID) *kvp.Frame {
	return s.records[typ][guid].Copy()
}

// Publish queues a change made outside this handle.
func (s *Store) Publish(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.Slots != nil {
		change.Slots = change.Slots.Copy()
	}
	s.pending = append(s.pending, change)
}

func (s *Store) SessionBegin(_ context.Context, be *qof.Backend, book *qof.Book, uri string, ignoreLock, _ bool) {
	if s.open && !ignoreLock {
		be.Fail(qof.ErrBackendLocked, "memory store %s is already open", s.uri)
		return
	}
	s.open = true
	s.uri = uri
	s.book = book
}

func (s *Store) SessionEnd(context.Context, *qof.Backend) {
	s.open = false
	s.book = nil
	clear(s.snapshots)
}

func (s *Store) Destroy(*qof.Backend) {
	s.open = false
	s.book = nil
	clear(s.records)
	clear(s.snapshots)
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

func (s *Store) Load(ctx context.Context, be *qof.Backend, book *qof.Book) {
	total := s.Len()
	loaded := 0
	for _, typ := range sortedTypes(s.records) {
		for _, guid := range sortedGUIDs(s.records[typ]) {
			if err := ctx.Err(); err != nil {
				be.Fail(qof.ErrBackendConnLost, "load interrupted: %v", err)
				return
			}
			inst := &qof.Instance{GUID: guid, Type: typ, Slots: s.records[typ][guid].Copy()}
			if err := book.Insert(inst); err != nil {
				be.Fail(qof.ErrBackendDataCorrupt, "load %s %s: %v", typ, guid, err)
				return
			}
			loaded++
			be.ReportProgress("loading "+typ, 100*float64(loaded)/float64(total))
		}
	}
}

func (s *Store) Begin(_ *qof.Backend, inst *qof.Instance) {
	s.snapshots[inst.GUID] = inst.Slots.Copy()
}

func (s *Store) Commit(_ *qof.Backend, inst *qof.Instance) {
	s.put(inst.Type, inst.GUID, inst.Slots)
	delete(s.snapshots, inst.GUID)
	inst.SetDirty(false)
}

func (s *Store) Rollback(be *qof.Backend, inst *qof.Instance) {
	snapshot, ok := s.snapshots[inst.GUID]
	if !ok {
		be.Fail(qof.ErrBackendMisc, "no open edit for %s %s", inst.Type, inst.GUID)
		return
	}
	inst.Slots = snapshot
	delete(s.snapshots, inst.GUID)
	inst.SetDirty(false)
}

func (s *Store) Sync(ctx context.Context, be *qof.Backend, book *qof.Book) {
	records := make(map[string]map[uuid.UUID]*kvp.Frame)
	var interrupted error
	book.ForEach("", func(inst *qof.Instance) bool {
		if interrupted = ctx.Err(); interrupted != nil {
			return false
		}
		coll, ok := records[inst.Type]
		if !ok {
			coll = make(map[uuid.UUID]*kvp.Frame)
			records[inst.Type] = coll
		}
		coll[inst.GUID] = inst.Slots.Copy()
		inst.SetDirty(false)
		return true
	})
	if interrupted != nil {
		be.Fail(qof.ErrBackendConnLost, "sync interrupted: %v", interrupted)
		return
	}
	s.records = records
}

func (s *Store) LoadConfig(be *qof.Backend, config *kvp.Frame) {
	decoder := hydrate.NewDecoder[Settings](
		hydrate.WithDefaults(s.settings),
		hydrate.WithPreHook[Settings](stripOptionMetadata),
		hydrate.WithDisallowUnknownFields[Settings](),
		hydrate.WithUseNumber[Settings](),
	)
	settings, err := decoder.Decode(hydrate.Context{Backend: be.Name(), URI: s.uri}, config.ToMap())
	if err != nil {
		be.Fail(qof.ErrBackendMisc, "%v", err)
		return
	}
	if _, err := predicate.New(settings.Language); err != nil {
		be.Fail(qof.ErrBackendMisc, "%v", err)
		return
	}
	if settings.MaxResults < 0 {
		settings.MaxResults = 0
	}
	s.settings = settings
}

func (s *Store) GetConfig(be *qof.Backend) *kvp.Frame {
	be.PrepareFrame()
	be.PrepareOption(qof.ConfigOption{
		Name:        optionLanguage,
		Type:        kvp.TypeString,
		Value:       s.settings.Language,
		Description: "Predicate language",
		Tooltip:     "One of " + joinLanguages() + ".",
	})
	be.PrepareOption(qof.ConfigOption{
		Name:        optionMaxResults,
		Type:        kvp.TypeInt64,
		Value:       int64(s.settings.MaxResults),
		Description: "Maximum query results",
		Tooltip:     "0 returns every match.",
	})
	return be.CompleteFrame()
}

func (s *Store) EventsPending(*qof.Backend) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

func (s *Store) ProcessEvents(*qof.Backend) bool {
	s.mu.Lock()
	changes := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, change := range changes {
		if change.Slots == nil {
			if coll, ok := s.records[change.Type]; ok {
				delete(coll, change.GUID)
			}
			s.book.Remove(change.Type, change.GUID)
			continue
		}
		s.put(change.Type, change.GUID, change.Slots)
		if s.book == nil {
			continue
		}
		if inst := s.book.Lookup(change.Type, change.GUID); inst != nil {
			inst.Slots = change.Slots.Copy()
			continue
		}
		_ = s.book.Insert(&qof.Instance{GUID: change.GUID, Type: change.Type, Slots: change.Slots.Copy()})
	}
	return len(changes) > 0
}

func (s *Store) put(typ string, guid uuid.UUID, slots *kvp.Frame) {
	coll, ok := s.records[typ]
	if !ok {
		coll = make(map[uuid.UUID]*kvp.Frame)
		s.records[typ] = coll
	}
	coll[guid] = slots.Copy()
}

func stripOptionMetadata(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	delete(payload, "desc")
	delete(payload, "tip")
	return payload, nil
}

func sortedTypes(records map[string]map[uuid.UUID]*kvp.Frame) []string {
	types := make([]string, 0, len(records))
	for typ := range records {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}

func sortedGUIDs(coll map[uuid.UUID]*kvp.Frame) []uuid.UUID {
	guids := make([]uuid.UUID, 0, len(coll))
	for guid := range coll {
		guids = append(guids, guid)
	}
	slices.SortFunc(guids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return guids
}
