package memory

import (
	"context"
	"strings"

	qof "github.com/goliatone/go-qof"
	"github.com/goliatone/go-qof/predicate"
)

type compiledQuery struct {
	query      qof.Query
	program    predicate.Program
	maxResults int
}

// CompileQuery compiles the query predicate in the query's language, or the
// store's configured language when the query names none. An empty predicate
// matches every instance of the searched type.
func (s *Store) CompileQuery(be *qof.Backend, query *qof.Query) any {
	language := query.Language
	if language == "" {
		language = s.settings.Language
	}
	compiled := &compiledQuery{query: *query, maxResults: query.MaxResults}
	if compiled.maxResults <= 0 {
		compiled.maxResults = s.settings.MaxResults
	}
	if strings.TrimSpace(query.Predicate) == "" {
		return compiled
	}
	evaluator, err := predicate.New(language, predicate.WithCache(s.programCache(language)))
	if err != nil {
		be.Fail(qof.ErrBackendMisc, "compile query: %v", err)
		return nil
	}
	program, err := evaluator.Compile(query.Predicate)
	if err != nil {
		be.Fail(qof.ErrBackendMisc, "compile query: %v", err)
		return nil
	}
	compiled.program = program
	return compiled
}

func (s *Store) FreeQuery(_ *qof.Backend, compiled any) {
	if q, ok := compiled.(*compiledQuery); ok {
		q.program = nil
		q.query.Book = nil
	}
}

// RunQuery returns matching instances of the query's book in GUID order.
// Without a book the session book is searched.
func (s *Store) RunQuery(ctx context.Context, be *qof.Backend, compiled any) []*qof.Instance {
	q, ok := compiled.(*compiledQuery)
	if !ok {
		be.Fail(qof.ErrBackendMisc, "run query: unexpected compiled form %T", compiled)
		return nil
	}
	book := q.query.Book
	if book == nil {
		book = s.book
	}
	var (
		results []*qof.Instance
		failure error
	)
	book.ForEach(q.query.SearchFor, func(inst *qof.Instance) bool {
		if failure = ctx.Err(); failure != nil {
			return false
		}
		if q.program != nil {
			matched, err := predicate.Match(q.program, predicate.Context{
				Type:   inst.Type,
				GUID:   inst.GUID,
				Record: inst.Slots.ToMap(),
				Args:   map[string]any{"uri": s.uri},
			})
			if err != nil {
				failure = err
				return false
			}
			if !matched {
				return true
			}
		}
		results = append(results, inst)
		return q.maxResults <= 0 || len(results) < q.maxResults
	})
	if failure != nil {
		be.Fail(qof.ErrBackendMisc, "run query: %v", failure)
		return nil
	}
	return results
}

// programCache returns the compiled program cache for language. Programs are
// engine specific, so each language gets its own cache.
func (s *Store) programCache(language string) predicate.Cache {
	key := strings.ToLower(language)
	if s.caches == nil {
		s.caches = make(map[string]predicate.Cache)
	}
	cache, ok := s.caches[key]
	if !ok {
		cache = predicate.NewMapCache()
		s.caches[key] = cache
	}
	return cache
}

func joinLanguages() string {
	return strings.Join(predicate.Languages(), ", ")
}
