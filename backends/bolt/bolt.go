// Package bolt stores books in a single bbolt file. Each instance type gets
// a bucket keyed by GUID; slots are stored as CBOR.
package bolt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/kvp"
)

// AccessMethod is the URI scheme served by this package.
const AccessMethod = "bolt"

const (
	optionTimeout = "timeout-ms"
	optionNoSync  = "no-sync"
)

// DefaultTimeout bounds how long SessionBegin waits for the file lock.
const DefaultTimeout = time.Second

var errNotOpen = errors.New("bolt: database is not open")

// Settings are the options a bolt store exposes.
type Settings struct {
	Timeout time.Duration
	NoSync  bool
}

// Store is a bbolt-backed implementation of the backend hooks.
type Store struct {
	db       *bbolt.DB
	path     string
	settings Settings
}

// NewStore returns a closed store with default settings.
func NewStore() *Store {
	return &Store{settings: Settings{Timeout: DefaultTimeout}}
}

// New returns a backend handle over a fresh store.
func New(opts ...qof.Option) *qof.Backend {
	base := []qof.Option{qof.WithName(AccessMethod), qof.WithImplementation(NewStore())}
	return qof.NewBackend(append(base, opts...)...)
}

// Register adds the bolt provider to registry. The provider also serves
// plain paths, which resolve to the file access method.
func Register(registry *qof.ProviderRegistry) error {
	for _, access := range []string{AccessMethod, qof.DefaultAccessMethod} {
		err := registry.Register(qof.Provider{
			Name:          "BoltDB file",
			AccessMethod:  access,
			New:           func() *qof.Backend { return New() },
			CheckDataType: CheckDataType,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// StoreOf returns the store behind be, or nil when be is not a bolt handle.
func StoreOf(be *qof.Backend) *Store {
	store, _ := be.Implementation().(*Store)
	return store
}

// CheckDataType accepts a missing file or one bbolt can open.
func CheckDataType(uri string) bool {
	path := filepath.Clean(qof.URIPath(uri))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return true
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: 100 * time.Millisecond})
	if errors.Is(err, bbolt.ErrTimeout) {
		return true
	}
	if err != nil {
		return false
	}
	_ = db.Close()
	return true
}

// Settings returns the active settings.
func (s *Store) Settings() Settings {
	return s.settings
}

// Path returns the file of the open session, or "" when closed.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) SessionBegin(_ context.Context, be *qof.Backend, _ *qof.Book, uri string, _, create bool) {
	path := strings.TrimSpace(qof.URIPath(uri))
	if path == "" {
		be.Fail(qof.ErrBackendBadURL, "bolt: no file in %q", uri)
		return
	}
	path = filepath.Clean(path)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			be.Fail(qof.ErrFileIOFileNotFound, "bolt: %s does not exist", path)
			return
		}
	}
	if s.db != nil && s.path == path {
		s.db.NoSync = s.settings.NoSync
		return
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: s.settings.Timeout})
	switch {
	case errors.Is(err, bbolt.ErrTimeout):
		be.Fail(qof.ErrBackendLocked, "bolt: %s is locked by another session", path)
		return
	case err != nil:
		be.Fail(qof.ErrBackendCantConnect, "bolt: open %s: %v", path, err)
		return
	}
	db.NoSync = s.settings.NoSync
	if s.db != nil {
		_ = s.db.Close()
	}
	s.db = db
	s.path = path
}

func (s *Store) SessionEnd(_ context.Context, be *qof.Backend) {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		be.Fail(qof.ErrFileIOWriteError, "bolt: close %s: %v", s.path, err)
	}
	s.db = nil
	s.path = ""
}

func (s *Store) Load(ctx context.Context, be *qof.Backend, book *qof.Book) {
	if s.db == nil {
		be.Fail(qof.ErrBackendNoSuchDB, "%v", errNotOpen)
		return
	}
	var loaded []*qof.Instance
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, bucket *bbolt.Bucket) error {
			typ := string(name)
			return bucket.ForEach(func(key, payload []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				guid, err := uuid.FromBytes(key)
				if err != nil {
					return fmt.Errorf("%w: key in %s: %v", errCorrupt, typ, err)
				}
				slots, err := kvp.UnmarshalFrame(payload)
				if err != nil {
					return fmt.Errorf("%w: %s %s: %v", errCorrupt, typ, guid, err)
				}
				loaded = append(loaded, &qof.Instance{GUID: guid, Type: typ, Slots: slots})
				return nil
			})
		})
	})
	switch {
	case errors.Is(err, errCorrupt):
		be.Fail(qof.ErrBackendDataCorrupt, "bolt: load: %v", err)
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		be.Fail(qof.ErrBackendConnLost, "bolt: load interrupted: %v", err)
		return
	case err != nil:
		be.Fail(qof.ErrFileIOFileBadRead, "bolt: load: %v", err)
		return
	}

	for i, inst := range loaded {
		if err := book.Insert(inst); err != nil {
			be.Fail(qof.ErrBackendDataCorrupt, "bolt: load %s %s: %v", inst.Type, inst.GUID, err)
			return
		}
		be.ReportProgress("loading "+inst.Type, 100*float64(i+1)/float64(len(loaded)))
	}
}

func (s *Store) Commit(be *qof.Backend, inst *qof.Instance) {
	if s.db == nil {
		be.Fail(qof.ErrBackendNoSuchDB, "%v", errNotOpen)
		return
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putInstance(tx, inst)
	})
	if err != nil {
		be.Fail(qof.ErrFileIOWriteError, "bolt: commit %s %s: %v", inst.Type, inst.GUID, err)
		return
	}
	inst.SetDirty(false)
}

// Sync replaces the file contents with book in one transaction.
func (s *Store) Sync(ctx context.Context, be *qof.Backend, book *qof.Book) {
	if s.db == nil {
		be.Fail(qof.ErrBackendNoSuchDB, "%v", errNotOpen)
		return
	}
	var written []*qof.Instance
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var stale [][]byte
		if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			stale = append(stale, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range stale {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		var failure error
		book.ForEach("", func(inst *qof.Instance) bool {
			if failure = ctx.Err(); failure != nil {
				return false
			}
			if failure = putInstance(tx, inst); failure != nil {
				return false
			}
			written = append(written, inst)
			return true
		})
		return failure
	})
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		be.Fail(qof.ErrBackendConnLost, "bolt: sync interrupted: %v", err)
		return
	case err != nil:
		be.Fail(qof.ErrFileIOWriteError, "bolt: sync: %v", err)
		return
	}
	for _, inst := range written {
		inst.SetDirty(false)
	}
}

func (s *Store) LoadConfig(be *qof.Backend, config *kvp.Frame) {
	settings := s.settings
	failed := false
	be.OptionForEach(config, func(opt qof.ConfigOption) {
		switch opt.Name {
		case optionTimeout:
			ms, ok := opt.Value.(int64)
			if !ok || ms < 0 {
				be.Fail(qof.ErrBackendMisc, "bolt: %s must be a non-negative integer", optionTimeout)
				failed = true
				return
			}
			settings.Timeout = time.Duration(ms) * time.Millisecond
		case optionNoSync:
			flag, ok := opt.Value.(int64)
			if !ok {
				be.Fail(qof.ErrBackendMisc, "bolt: %s must be 0 or 1", optionNoSync)
				failed = true
				return
			}
			settings.NoSync = flag != 0
		}
	})
	if failed {
		return
	}
	s.settings = settings
	if s.db != nil {
		s.db.NoSync = settings.NoSync
	}
}

func (s *Store) GetConfig(be *qof.Backend) *kvp.Frame {
	noSync := int64(0)
	if s.settings.NoSync {
		noSync = 1
	}
	be.PrepareFrame()
	be.PrepareOption(qof.ConfigOption{
		Name:        optionTimeout,
		Type:        kvp.TypeInt64,
		Value:       s.settings.Timeout.Milliseconds(),
		Description: "Lock timeout",
		Tooltip:     "Milliseconds to wait for the file lock. 0 waits forever.",
	})
	be.PrepareOption(qof.ConfigOption{
		Name:        optionNoSync,
		Type:        kvp.TypeInt64,
		Value:       noSync,
		Description: "Skip fsync",
		Tooltip:     "1 skips fsync after each commit.",
	})
	return be.CompleteFrame()
}

var errCorrupt = errors.New("bolt: corrupt record")

func putInstance(tx *bbolt.Tx, inst *qof.Instance) error {
	bucket, err := tx.CreateBucketIfNotExists([]byte(inst.Type))
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", inst.Type, err)
	}
	payload, err := kvp.MarshalFrame(inst.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	key := inst.GUID
	return bucket.Put(key[:], payload)
}
