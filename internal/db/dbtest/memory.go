// Package dbtest provides an in-memory db.Opener for tests.
package dbtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MacJediWizard/statsbot/internal/db"
	"github.com/MacJediWizard/statsbot/internal/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is an in-memory document store. Predicates are evaluated with
// their Match side, so query semantics mirror the Mongo filters.
type Store struct {
	mu          sync.Mutex
	collections map[string][]bson.M

	// OpenErr fails every Open call.
	OpenErr error
	// QueryErr fails Count and Find once FailAfter queries have succeeded.
	// A positive FailCount limits how many queries fail before the store
	// recovers.
	QueryErr  error
	FailAfter int
	FailCount int

	opened  int
	closed  int
	queries int
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string][]bson.M)}
}

// Insert appends documents to a collection.
func (s *Store) Insert(collection string, docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], docs...)
}

// Opened returns how many sessions were opened.
func (s *Store) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Closed returns how many sessions were closed.
func (s *Store) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Queries returns how many Count and Find calls were made.
func (s *Store) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// Open implements db.Opener.
func (s *Store) Open(_ context.Context) (db.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	s.opened++
	return &session{store: s}, nil
}

type session struct {
	store  *Store
	closed bool
}

func (s *session) query() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	n := s.store.queries
	if s.store.QueryErr != nil && n >= s.store.FailAfter &&
		(s.store.FailCount <= 0 || n < s.store.FailAfter+s.store.FailCount) {
		s.store.queries++
		return s.store.QueryErr
	}
	s.store.queries++
	return nil
}

func (s *session) matching(collection string, pred schema.Predicate) []bson.M {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	var out []bson.M
	for _, doc := range s.store.collections[collection] {
		if pred == nil || pred.Match(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func (s *session) Count(_ context.Context, collection string, pred schema.Predicate) (int64, error) {
	if err := s.query(); err != nil {
		return 0, err
	}
	return int64(len(s.matching(collection, pred))), nil
}

func (s *session) Find(_ context.Context, collection string, pred schema.Predicate, opts db.FindOptions) ([]bson.M, error) {
	if err := s.query(); err != nil {
		return nil, err
	}

	docs := s.matching(collection, pred)
	if len(opts.SortDesc) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, f := range opts.SortDesc {
				if c := compareField(docs[i][f], docs[j][f]); c != 0 {
					return c > 0
				}
			}
			return false
		})
	}
	if opts.Limit > 0 && int64(len(docs)) > opts.Limit {
		docs = docs[:opts.Limit]
	}

	if len(opts.Projection) == 0 {
		return docs, nil
	}
	projected := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		p := bson.M{}
		if id, ok := doc["_id"]; ok {
			p["_id"] = id
		}
		for _, f := range opts.Projection {
			if v, ok := doc[f]; ok {
				p[f] = v
			}
		}
		projected = append(projected, p)
	}
	return projected, nil
}

func (s *session) CollectionNames(_ context.Context) ([]string, error) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	names := make([]string, 0, len(s.store.collections))
	for name := range s.store.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *session) Close(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.store.mu.Lock()
	s.store.closed++
	s.store.mu.Unlock()
	return nil
}

// compareField orders two stored values the way the server sorts mixed
// types: missing and null first, then numbers, strings, booleans and dates.
func compareField(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}

	switch ra {
	case rankNumber:
		return compareFloat(toFloat(a), toFloat(b))
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		return compareFloat(boolFloat(a.(bool)), boolFloat(b.(bool)))
	case rankDate:
		ta, _ := schema.ToTime(a)
		tb, _ := schema.ToTime(b)
		return ta.Compare(tb)
	}
	return 0
}

const (
	rankNull = iota
	rankNumber
	rankString
	rankOther
	rankBool
	rankDate
)

func typeRank(v any) int {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return rankNull
	case int32, int64, int, float64, float32:
		return rankNumber
	case string:
		return rankString
	case bool:
		return rankBool
	case time.Time, primitive.DateTime:
		return rankDate
	}
	return rankOther
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
