// Package sqlite stores books in a SQLite database through the pure-Go
// modernc.org/sqlite driver. Every instance is one row of the instances
// table with its slots encoded as CBOR.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/kvp"
)

// AccessMethod is the URI scheme served by this package.
const AccessMethod = "sqlite"

const (
	optionBusyTimeout = "busy-timeout-ms"
	optionJournalMode = "journal-mode"
)

const (
	DefaultBusyTimeout = int64(5000)
	DefaultJournalMode = "WAL"
)

var journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}

var fileHeader = []byte("SQLite format 3\x00")

// Settings are the options a sqlite store exposes.
type Settings struct {
	BusyTimeoutMS int64
	JournalMode   string
}

// Store is a SQLite-backed implementation of the backend hooks.
type Store struct {
	db        *sql.DB
	path      string
	settings  Settings
	snapshots map[uuid.UUID]*kvp.Frame
}

// NewStore returns a closed store with default settings.
func NewStore() *Store {
	return &Store{
		settings:  Settings{BusyTimeoutMS: DefaultBusyTimeout, JournalMode: DefaultJournalMode},
		snapshots: make(map[uuid.UUID]*kvp.Frame),
	}
}

// New returns a backend handle over a fresh store.
func New(opts ...qof.Option) *qof.Backend {
	base := []qof.Option{qof.WithName(AccessMethod), qof.WithImplementation(NewStore())}
	return qof.NewBackend(append(base, opts...)...)
}

// Register adds the sqlite provider to registry.
func Register(registry *qof.ProviderRegistry) error {
	return registry.Register(qof.Provider{
		Name:          "SQLite database",
		AccessMethod:  AccessMethod,
		PartialBook:   true,
		New:           func() *qof.Backend { return New() },
		CheckDataType: CheckDataType,
	})
}

// StoreOf returns the store behind be, or nil when be is not a sqlite handle.
func StoreOf(be *qof.Backend) *Store {
	store, _ := be.Implementation().(*Store)
	return store
}

// CheckDataType accepts a missing or empty file, or one starting with the
// SQLite header.
func CheckDataType(uri string) bool {
	f, err := os.Open(filepath.Clean(qof.URIPath(uri)))
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	if err != nil {
		return false
	}
	defer f.Close()
	header := make([]byte, len(fileHeader))
	n, err := io.ReadFull(f, header)
	if n == 0 && errors.Is(err, io.EOF) {
		return true
	}
	return err == nil && bytes.Equal(header, fileHeader)
}

// Settings returns the active settings.
func (s *Store) Settings() Settings {
	return s.settings
}

// DB returns the open database, or nil when no session is open.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) SessionBegin(ctx context.Context, be *qof.Backend, _ *qof.Book, uri string, _, create bool) {
	path := strings.TrimSpace(qof.URIPath(uri))
	if path == "" {
		be.Fail(qof.ErrBackendBadURL, "sqlite: no database in %q", uri)
		return
	}
	path = filepath.Clean(path)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			be.Fail(qof.ErrBackendNoSuchDB, "sqlite: %s does not exist", path)
			return
		}
	}

	db, err := sql.Open("sqlite", path+"?"+s.pragmas())
	if err != nil {
		be.Fail(qof.ErrBackendCantConnect, "sqlite: open %s: %v", path, err)
		return
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		be.Fail(classify(err, qof.ErrBackendCantConnect), "sqlite: ping %s: %v", path, err)
		return
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		be.Fail(classify(err, qof.ErrSQLDBTooOld), "sqlite: migrate %s: %v", path, err)
		return
	}
	s.close()
	clear(s.snapshots)
	s.db = db
	s.path = path
}

func (s *Store) SessionEnd(_ context.Context, be *qof.Backend) {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		be.Fail(qof.ErrBackendServerErr, "sqlite: close %s: %v", s.path, err)
	}
	s.db = nil
	s.path = ""
	clear(s.snapshots)
}

func (s *Store) Destroy(*qof.Backend) {
	s.close()
	clear(s.snapshots)
}

func (s *Store) Load(ctx context.Context, be *qof.Backend, book *qof.Book) {
	if s.db == nil {
		be.Fail(qof.ErrBackendNoSuchDB, "sqlite: database is not open")
		return
	}
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM instances").Scan(&total); err != nil {
		be.Fail(classify(err, qof.ErrSQLMissingData), "sqlite: count instances: %v", err)
		return
	}
	rows, err := s.db.QueryContext(ctx, "SELECT guid, type, slots FROM instances ORDER BY type, guid")
	if err != nil {
		be.Fail(classify(err, qof.ErrSQLMissingData), "sqlite: load: %v", err)
		return
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var (
			rawGUID, typ string
			payload      []byte
		)
		if err := rows.Scan(&rawGUID, &typ, &payload); err != nil {
			be.Fail(classify(err, qof.ErrBackendDataCorrupt), "sqlite: scan: %v", err)
			return
		}
		guid, err := uuid.Parse(rawGUID)
		if err != nil {
			be.Fail(qof.ErrBackendDataCorrupt, "sqlite: guid %q: %v", rawGUID, err)
			return
		}
		slots, err := kvp.UnmarshalFrame(payload)
		if err != nil {
			be.Fail(qof.ErrBackendDataCorrupt, "sqlite: %s %s: %v", typ, guid, err)
			return
		}
		if err := book.Insert(&qof.Instance{GUID: guid, Type: typ, Slots: slots}); err != nil {
			be.Fail(qof.ErrBackendDataCorrupt, "sqlite: load %s %s: %v", typ, guid, err)
			return
		}
		loaded++
		be.ReportProgress("loading "+typ, 100*float64(loaded)/float64(max(total, loaded)))
	}
	if err := rows.Err(); err != nil {
		be.Fail(classify(err, qof.ErrBackendConnLost), "sqlite: load: %v", err)
	}
}

func (s *Store) Begin(_ *qof.Backend, inst *qof.Instance) {
	s.snapshots[inst.GUID] = inst.Slots.Copy()
}

func (s *Store) Commit(be *qof.Backend, inst *qof.Instance) {
	if s.db == nil {
		be.Fail(qof.ErrBackendNoSuchDB, "sqlite: database is not open")
		return
	}
	if err := upsert(context.Background(), s.db, inst); err != nil {
		be.Fail(classify(err, qof.ErrBackendServerErr), "sqlite: commit %s %s: %v", inst.Type, inst.GUID, err)
		return
	}
	delete(s.snapshots, inst.GUID)
	inst.SetDirty(false)
}

// Rollback restores the slots captured by Begin, or the stored row when the
// edit began before this handle saw it.
func (s *Store) Rollback(be *qof.Backend, inst *qof.Instance) {
	if snapshot, ok := s.snapshots[inst.GUID]; ok {
		inst.Slots = snapshot
		delete(s.snapshots, inst.GUID)
		inst.SetDirty(false)
		return
	}
	if s.db == nil {
		be.Fail(qof.ErrBackendMisc, "sqlite: no open edit for %s %s", inst.Type, inst.GUID)
		return
	}
	var payload []byte
	err := s.db.QueryRow("SELECT slots FROM instances WHERE guid = ?", inst.GUID.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		be.Fail(qof.ErrSQLMissingData, "sqlite: no stored row for %s %s", inst.Type, inst.GUID)
		return
	}
	if err != nil {
		be.Fail(classify(err, qof.ErrBackendServerErr), "sqlite: rollback %s %s: %v", inst.Type, inst.GUID, err)
		return
	}
	slots, err := kvp.UnmarshalFrame(payload)
	if err != nil {
		be.Fail(qof.ErrBackendDataCorrupt, "sqlite: %s %s: %v", inst.Type, inst.GUID, err)
		return
	}
	inst.Slots = slots
	inst.SetDirty(false)
}

// Sync replaces the table contents with book in one transaction.
func (s *Store) Sync(ctx context.Context, be *qof.Backend, book *qof.Book) {
	if s.db == nil {
		be.Fail(qof.ErrBackendNoSuchDB, "sqlite: database is not open")
		return
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		be.Fail(classify(err, qof.ErrBackendServerErr), "sqlite: begin sync: %v", err)
		return
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM instances"); err != nil {
		_ = tx.Rollback()
		be.Fail(classify(err, qof.ErrBackendServerErr), "sqlite: sync: %v", err)
		return
	}
	var (
		written []*qof.Instance
		failure error
	)
	book.ForEach("", func(inst *qof.Instance) bool {
		if failure = upsert(ctx, tx, inst); failure != nil {
			return false
		}
		written = append(written, inst)
		return true
	})
	if failure != nil {
		_ = tx.Rollback()
		be.Fail(classify(failure, qof.ErrBackendServerErr), "sqlite: sync: %v", failure)
		return
	}
	if err := tx.Commit(); err != nil {
		be.Fail(classify(err, qof.ErrBackendServerErr), "sqlite: commit sync: %v", err)
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
		case optionBusyTimeout:
			ms, ok := opt.Value.(int64)
			if !ok || ms < 0 {
				be.Fail(qof.ErrBackendMisc, "sqlite: %s must be a non-negative integer", optionBusyTimeout)
				failed = true
				return
			}
			settings.BusyTimeoutMS = ms
		case optionJournalMode:
			mode, _ := opt.Value.(string)
			mode = strings.ToUpper(strings.TrimSpace(mode))
			if !slices.Contains(journalModes, mode) {
				be.Fail(qof.ErrBackendMisc, "sqlite: unknown %s %q", optionJournalMode, opt.Value)
				failed = true
				return
			}
			settings.JournalMode = mode
		}
	})
	if failed {
		return
	}
	s.settings = settings
	if s.db == nil {
		return
	}
	for _, stmt := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", settings.BusyTimeoutMS),
		"PRAGMA journal_mode = " + settings.JournalMode,
	} {
		if _, err := s.db.Exec(stmt); err != nil {
			be.Fail(classify(err, qof.ErrBackendServerErr), "sqlite: %s: %v", stmt, err)
			return
		}
	}
}

func (s *Store) GetConfig(be *qof.Backend) *kvp.Frame {
	be.PrepareFrame()
	be.PrepareOption(qof.ConfigOption{
		Name:        optionBusyTimeout,
		Type:        kvp.TypeInt64,
		Value:       s.settings.BusyTimeoutMS,
		Description: "Busy timeout",
		Tooltip:     "Milliseconds to wait on a locked database.",
	})
	be.PrepareOption(qof.ConfigOption{
		Name:        optionJournalMode,
		Type:        kvp.TypeString,
		Value:       s.settings.JournalMode,
		Description: "Journal mode",
		Tooltip:     "One of " + strings.Join(journalModes, ", ") + ".",
	})
	return be.CompleteFrame()
}

func (s *Store) pragmas() string {
	return fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		s.settings.BusyTimeoutMS, s.settings.JournalMode)
}

func (s *Store) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	s.db = nil
	s.path = ""
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, inst *qof.Instance) error {
	payload, err := kvp.MarshalFrame(inst.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO instances (guid, type, slots) VALUES (?, ?, ?)
ON CONFLICT (guid) DO UPDATE SET type = excluded.type, slots = excluded.slots
`, inst.GUID.String(), inst.Type, payload)
	return err
}

// classify maps driver errors onto backend codes, using fallback for
// anything it does not recognise.
func classify(err error, fallback qof.ErrorCode) qof.ErrorCode {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return qof.ErrBackendConnLost
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return fallback
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return qof.ErrSQLDBBusy
	case sqlite3.SQLITE_READONLY:
		return qof.ErrBackendReadonly
	case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH:
		return qof.ErrBackendPerm
	case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
		return qof.ErrBackendDataCorrupt
	case sqlite3.SQLITE_CANTOPEN:
		return qof.ErrBackendCantConnect
	default:
		return fallback
	}
}
