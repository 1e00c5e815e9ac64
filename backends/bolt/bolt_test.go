package bolt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/kvp"
)

func tempURI(t *testing.T) string {
	t.Helper()
	return "bolt://" + filepath.Join(t.TempDir(), "books.db")
}

func openSession(t *testing.T, uri string) (*qof.Backend, *qof.Book) {
	t.Helper()
	be := New()
	book := qof.NewBook(be)
	be.SessionBegin(context.Background(), book, uri, false, true)
	if err := be.Err(); err != nil {
		t.Fatalf("session begin: %v", err)
	}
	t.Cleanup(func() { be.SessionEnd(context.Background()) })
	return be, book
}

func TestSessionBeginRequiresFileWithoutCreate(t *testing.T) {
	be := New()
	uri := tempURI(t)
	be.SessionBegin(context.Background(), qof.NewBook(be), uri, false, false)
	if got := be.GetError(); got != qof.ErrFileIOFileNotFound {
		t.Fatalf("expected %s, got %s", qof.ErrFileIOFileNotFound, got)
	}
	if _, err := os.Stat(qof.URIPath(uri)); !os.IsNotExist(err) {
		t.Fatalf("expected no file created, got %v", err)
	}

	be.SessionBegin(context.Background(), qof.NewBook(be), "bolt://", false, true)
	if got := be.GetError(); got != qof.ErrBackendBadURL {
		t.Fatalf("expected %s for empty path, got %s", qof.ErrBackendBadURL, got)
	}
}

func TestSecondSessionIsLocked(t *testing.T) {
	uri := tempURI(t)
	openSession(t, uri)

	other := New()
	config := kvp.NewFrame()
	config.SetValue("/timeout-ms", kvp.NewInt64(50))
	other.LoadConfig(config)
	if err := other.Err(); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got := StoreOf(other).Settings().Timeout; got != 50*time.Millisecond {
		t.Fatalf("expected 50ms timeout, got %s", got)
	}

	other.SessionBegin(context.Background(), qof.NewBook(other), uri, false, false)
	if got := other.GetError(); got != qof.ErrBackendLocked {
		t.Fatalf("expected %s, got %s", qof.ErrBackendLocked, got)
	}
}

func TestFailedReopenKeepsCurrentSession(t *testing.T) {
	first := tempURI(t)
	second := tempURI(t)
	be, book := openSession(t, first)
	book.NewInstance("Account").Slots.SetString("/name", "Checking")
	be.RunSync(context.Background(), book)
	openSession(t, second)

	config := be.GetConfig()
	config.SetValue("/timeout-ms", kvp.NewInt64(50))
	be.LoadConfig(config)
	be.SessionBegin(context.Background(), book, second, false, false)
	if got := be.GetError(); got != qof.ErrBackendLocked {
		t.Fatalf("expected %s, got %s", qof.ErrBackendLocked, got)
	}
	if got := StoreOf(be).Path(); got != qof.URIPath(first) {
		t.Fatalf("expected first session kept, got %q", got)
	}

	be.SessionBegin(context.Background(), book, first, false, false)
	if err := be.Err(); err != nil {
		t.Fatalf("reopen same file: %v", err)
	}
	fresh := qof.NewBook(be)
	be.RunLoad(context.Background(), fresh)
	if err := be.Err(); err != nil {
		t.Fatalf("load after failed reopen: %v", err)
	}
	if fresh.Len("Account") != 1 {
		t.Fatalf("expected 1 account, got %d", fresh.Len("Account"))
	}
}

func TestCommitAndSyncPersistAcrossSessions(t *testing.T) {
	uri := tempURI(t)
	be := New()
	book := qof.NewBook(be)
	be.SessionBegin(context.Background(), book, uri, false, true)
	if err := be.Err(); err != nil {
		t.Fatalf("session begin: %v", err)
	}

	split := book.NewInstance("Split")
	split.Slots.SetString("/memo", "Ledger fee")
	split.Slots.SetValue("/amount", kvp.NewNumericValue(kvp.NewNumeric(2500, 100)))
	account := book.NewInstance("Account")
	account.Slots.SetString("/name", "Checking")

	split.BeginEdit()
	split.SetDirty(true)
	if split.CommitEdit() {
		be.RunCommit(split)
	}
	if err := be.Err(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if split.IsDirty() {
		t.Fatalf("expected commit to clear dirty flag")
	}

	be.RunSync(context.Background(), book)
	if err := be.Err(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	be.SessionEnd(context.Background())
	if StoreOf(be).Path() != "" {
		t.Fatalf("expected path cleared after end")
	}

	reader, fresh := openSession(t, uri)
	var progress []float64
	reader.SetPercentage(func(_ string, percent float64) {
		progress = append(progress, percent)
	})
	reader.RunLoad(context.Background(), fresh)
	if err := reader.Err(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if fresh.Len("") != 2 {
		t.Fatalf("expected 2 instances, got %d", fresh.Len(""))
	}
	got := fresh.Lookup("Split", split.GUID)
	if got == nil || !got.Slots.Equal(split.Slots) {
		t.Fatalf("expected split slots preserved, got %+v", got)
	}
	if len(progress) != 2 || progress[1] != 100 {
		t.Fatalf("expected progress ending at 100, got %v", progress)
	}
}

func TestSyncReplacesStaleRecords(t *testing.T) {
	uri := tempURI(t)
	be, book := openSession(t, uri)
	stale := book.NewInstance("Budget")
	stale.Slots.SetString("/name", "2023")
	be.RunSync(context.Background(), book)

	book.Remove("Budget", stale.GUID)
	book.NewInstance("Account").Slots.SetString("/name", "Savings")
	be.RunSync(context.Background(), book)
	if err := be.Err(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	fresh := qof.NewBook(be)
	be.RunLoad(context.Background(), fresh)
	if fresh.Len("Budget") != 0 || fresh.Len("Account") != 1 {
		t.Fatalf("expected stale bucket dropped, got types %v", fresh.Types())
	}
}

func TestHooksWithoutSessionFail(t *testing.T) {
	be := New()
	be.RunLoad(context.Background(), qof.NewBook(be))
	if got := be.GetError(); got != qof.ErrBackendNoSuchDB {
		t.Fatalf("expected %s, got %s", qof.ErrBackendNoSuchDB, got)
	}
	be.RunCommit(qof.NewInstance("Split"))
	if got := be.GetError(); got != qof.ErrBackendNoSuchDB {
		t.Fatalf("expected %s, got %s", qof.ErrBackendNoSuchDB, got)
	}
}

func TestHookTableIsPartial(t *testing.T) {
	be := New()
	if be.RollbackExists() || be.QueryExists() || be.EventsExist() {
		t.Fatalf("expected no rollback, query or event hooks")
	}
	if !be.CommitExists() || !be.SyncExists() || !be.LoadExists() || !be.ConfigExists() {
		t.Fatalf("expected commit, sync, load and config hooks")
	}
}

func TestConfigOptions(t *testing.T) {
	be := New()
	frame := be.GetConfig()
	if got := frame.GetValue("/timeout-ms").Int64(); got != 1000 {
		t.Fatalf("expected default timeout 1000, got %d", got)
	}

	frame.SetValue("/no-sync", kvp.NewInt64(1))
	be.LoadConfig(frame)
	if err := be.Err(); err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !StoreOf(be).Settings().NoSync {
		t.Fatalf("expected no-sync enabled")
	}

	bad := kvp.NewFrame()
	bad.SetValue("/timeout-ms", kvp.NewInt64(-5))
	be.LoadConfig(bad)
	if got := be.GetError(); got != qof.ErrBackendMisc {
		t.Fatalf("expected %s, got %s", qof.ErrBackendMisc, got)
	}
	if got := StoreOf(be).Settings().Timeout; got != time.Second {
		t.Fatalf("expected timeout untouched, got %s", got)
	}
}

func TestRegisterServesFileScheme(t *testing.T) {
	registry := qof.NewProviderRegistry()
	if err := Register(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	path := filepath.Join(t.TempDir(), "books.db")
	p, err := registry.ForURI(path)
	if err != nil {
		t.Fatalf("for uri: %v", err)
	}
	if p.AccessMethod != qof.DefaultAccessMethod {
		t.Fatalf("expected file provider, got %q", p.AccessMethod)
	}

	if err := os.WriteFile(path, []byte("not a bolt file, just some text padding it out"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := registry.ForURI(path); err == nil {
		t.Fatalf("expected provider to reject foreign file")
	}
}
