package schema

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Predicate is a condition on a document. Filter renders it as a MongoDB
// query filter; Match evaluates the same condition against a decoded document.
type Predicate interface {
	Filter() bson.D
	Match(doc bson.M) bool
}

// Range bounds a timestamp. From is inclusive, To is exclusive unless
// IncludeTo is set. A zero bound is open.
type Range struct {
	From      time.Time
	To        time.Time
	IncludeTo bool
}

// Since matches timestamps at or after t.
func Since(t time.Time) Range { return Range{From: t} }

// Before matches timestamps strictly before t.
func Before(t time.Time) Range { return Range{To: t} }

// Between matches [from, to).
func Between(from, to time.Time) Range { return Range{From: from, To: to} }

// Through matches [from, to].
func Through(from, to time.Time) Range { return Range{From: from, To: to, IncludeTo: true} }

func (r Range) operators(e Encoding) bson.D {
	var ops bson.D
	if !r.From.IsZero() {
		ops = append(ops, bson.E{Key: "$gte", Value: e.Bound(r.From)})
	}
	if !r.To.IsZero() {
		op := "$lt"
		if r.IncludeTo {
			op = "$lte"
		}
		ops = append(ops, bson.E{Key: op, Value: e.Bound(r.To)})
	}
	return ops
}

// Contains reports whether a stored value of encoding e falls in the range.
func (r Range) Contains(e Encoding, v any) bool {
	if !r.From.IsZero() && compareEncoded(e, v, r.From) < 0 {
		return false
	}
	if !r.To.IsZero() {
		c := compareEncoded(e, v, r.To)
		if c > 0 || (c == 0 && !r.IncludeTo) {
			return false
		}
	}
	return true
}

type allPredicate struct{}

// All matches every document.
func All() Predicate { return allPredicate{} }

func (allPredicate) Filter() bson.D    { return bson.D{} }
func (allPredicate) Match(bson.M) bool { return true }

type nonePredicate struct{}

func (nonePredicate) Filter() bson.D    { return bson.D{{Key: "$expr", Value: false}} }
func (nonePredicate) Match(bson.M) bool { return false }

type andPredicate []Predicate

// And matches documents satisfying every predicate.
func And(preds ...Predicate) Predicate {
	preds = compact(preds)
	switch len(preds) {
	case 0:
		return All()
	case 1:
		return preds[0]
	}
	return andPredicate(preds)
}

func (p andPredicate) Filter() bson.D {
	clauses := make(bson.A, 0, len(p))
	for _, pred := range p {
		clauses = append(clauses, pred.Filter())
	}
	return bson.D{{Key: "$and", Value: clauses}}
}

func (p andPredicate) Match(doc bson.M) bool {
	for _, pred := range p {
		if !pred.Match(doc) {
			return false
		}
	}
	return true
}

type orPredicate []Predicate

// Or matches documents satisfying at least one predicate.
func Or(preds ...Predicate) Predicate {
	preds = compact(preds)
	switch len(preds) {
	case 0:
		return nonePredicate{}
	case 1:
		return preds[0]
	}
	return orPredicate(preds)
}

func (p orPredicate) Filter() bson.D {
	clauses := make(bson.A, 0, len(p))
	for _, pred := range p {
		clauses = append(clauses, pred.Filter())
	}
	return bson.D{{Key: "$or", Value: clauses}}
}

func (p orPredicate) Match(doc bson.M) bool {
	for _, pred := range p {
		if pred.Match(doc) {
			return true
		}
	}
	return false
}

func compact(preds []Predicate) []Predicate {
	out := preds[:0:0]
	for _, p := range preds {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type rawPredicate struct {
	filter bson.D
	match  func(bson.M) bool
}

func (p rawPredicate) Filter() bson.D        { return p.filter }
func (p rawPredicate) Match(doc bson.M) bool { return p.match(doc) }

// absentValues are the stored values Lookup treats as missing. $in with
// null also matches a missing field.
var absentValues = bson.A{nil, ""}

// Is matches documents whose resolved concept equals value. The first
// candidate field holding a present value decides; later names are only
// consulted when the earlier ones are missing, null or empty.
func Is(c Concept, value any) Predicate {
	fields := fieldCandidates[c]
	branches := make([]Predicate, 0, len(fields))
	for i, f := range fields {
		var clause bson.D
		for _, earlier := range fields[:i] {
			clause = append(clause, bson.E{Key: earlier, Value: bson.D{{Key: "$in", Value: absentValues}}})
		}
		clause = append(clause, bson.E{Key: f, Value: value})
		branches = append(branches, rawPredicate{filter: clause, match: nil})
	}

	return rawPredicate{
		filter: Or(branches...).Filter(),
		match: func(doc bson.M) bool {
			_, v, ok := Lookup(doc, c)
			return ok && v == value
		},
	}
}

// NotDeleted matches documents without a deletion timestamp under any name.
func NotDeleted() Predicate {
	var clause bson.D
	for _, f := range fieldCandidates[DeletedAt] {
		clause = append(clause, bson.E{Key: f, Value: bson.D{{Key: "$in", Value: absentValues}}})
	}
	return rawPredicate{
		filter: clause,
		match: func(doc bson.M) bool {
			_, _, ok := Lookup(doc, DeletedAt)
			return !ok
		},
	}
}

// Deleted matches soft-deleted documents.
func Deleted() Predicate {
	fields := fieldCandidates[DeletedAt]
	clauses := make(bson.A, 0, len(fields))
	for _, f := range fields {
		clauses = append(clauses, bson.D{{Key: f, Value: bson.D{{Key: "$nin", Value: absentValues}}}})
	}
	return rawPredicate{
		filter: bson.D{{Key: "$or", Value: clauses}},
		match: func(doc bson.M) bool {
			_, _, ok := Lookup(doc, DeletedAt)
			return ok
		},
	}
}

// TimeIn matches documents where any candidate field of c holds a timestamp
// inside r. The filter is a disjunction with one conjunction per field and
// encoding: the conjunction pins the BSON type, then applies the bounds in
// that encoding's comparable form.
func TimeIn(c Concept, r Range) Predicate {
	fields := fieldCandidates[c]
	var clauses bson.A
	for _, f := range fields {
		for _, e := range Encodings {
			conj := bson.A{bson.D{{Key: f, Value: bson.D{{Key: "$type", Value: e.bsonType()}}}}}
			if ops := r.operators(e); len(ops) > 0 {
				conj = append(conj, bson.D{{Key: f, Value: ops}})
			}
			clauses = append(clauses, bson.D{{Key: "$and", Value: conj}})
		}
	}

	return rawPredicate{
		filter: bson.D{{Key: "$or", Value: clauses}},
		match: func(doc bson.M) bool {
			for _, f := range fields {
				v, present := doc[f]
				if !present || isNull(v) {
					continue
				}
				e, ok := EncodingOf(v)
				if !ok {
					continue
				}
				if r.Contains(e, v) {
					return true
				}
			}
			return false
		},
	}
}
