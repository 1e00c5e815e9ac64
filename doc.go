// Package qof is the storage-neutral backend layer of an accounting engine.
//
// A Backend handle sits between the engine and a concrete store. It carries
// an error slot where only the earliest failure since the last read is kept,
// a one-shot message, a table of optional hooks the store fills in, and a
// configuration tree (kvp.Frame) built from the store's options:
//
//	be := qof.NewBackend(qof.WithImplementation(store), qof.WithLogger(logger))
//	book := qof.NewBook(be)
//	be.SessionBegin(ctx, book, "file:///var/lib/books/main.db", false, true)
//	if err := be.Err(); err != nil {
//		return err
//	}
//
// Instances track nested edits with BeginEdit and CommitEdit; the outermost
// begin notifies the store and the outermost commit tells the caller to
// persist.
//
// Stores are found through a ProviderRegistry keyed by URI scheme, and may
// be shipped as Go plugins loaded with LoadBackendLibrary.
package qof
