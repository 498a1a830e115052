// Package schema resolves logical fields out of the product's user and
// content documents.
//
// The upstream product wrote documents with two naming conventions
// (createdAt / created_at, planType / plan, ...) and several timestamp
// encodings. Every lookup goes through the concept table below, so query
// construction and document decoding agree on which physical fields count.
package schema

import (
	"math"
	"strings"
	"time"

	"github.com/MacJediWizard/statsbot/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Concept is a logical field that may be stored under several names.
type Concept string

const (
	Email         Concept = "email"
	DisplayName   Concept = "display_name"
	CreatedAt     Concept = "created_at"
	DeletedAt     Concept = "deleted_at"
	LastActive    Concept = "last_active"
	EmailVerified Concept = "email_verified"
	Plan          Concept = "plan"
	WebsitesCount Concept = "websites_count"
)

// fieldCandidates lists the physical fields of each concept, canonical first.
var fieldCandidates = map[Concept][]string{
	Email:         {"email"},
	DisplayName:   {"name", "username"},
	CreatedAt:     {"createdAt", "created_at"},
	DeletedAt:     {"deletedAt", "deleted_at"},
	LastActive:    {"lastActive", "last_active"},
	EmailVerified: {"emailVerified", "email_verified"},
	Plan:          {"plan", "planType"},
	WebsitesCount: {"websites_count"},
}

// Fields returns the candidate field names for a concept in lookup order.
func Fields(c Concept) []string {
	fields := fieldCandidates[c]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// UserProjection lists every physical field read from user documents.
func UserProjection() []string {
	var fields []string
	for _, c := range []Concept{Email, DisplayName, CreatedAt, DeletedAt, LastActive, EmailVerified, Plan, WebsitesCount} {
		fields = append(fields, fieldCandidates[c]...)
	}
	return fields
}

// Lookup returns the first candidate field of c that holds a present value.
// Null and empty strings count as absent. Is, NotDeleted and Deleted build
// their filters from the same rule.
func Lookup(doc bson.M, c Concept) (field string, value any, ok bool) {
	for _, f := range fieldCandidates[c] {
		v, present := doc[f]
		if !present || isAbsent(v) {
			continue
		}
		return f, v, true
	}
	return "", nil, false
}

// String resolves a string concept.
func String(doc bson.M, c Concept) (string, bool) {
	_, v, ok := Lookup(doc, c)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool resolves a boolean concept. A non-bool in the deciding field is
// reported as unresolved, the same way Is(c, true) and Is(c, false) both
// reject it.
func Bool(doc bson.M, c Concept) (value bool, ok bool) {
	_, v, ok := Lookup(doc, c)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Int resolves an integer concept stored as any BSON number.
func Int(doc bson.M, c Concept) (int64, bool) {
	_, v, ok := Lookup(doc, c)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Time resolves a timestamp concept from any supported encoding.
func Time(doc bson.M, c Concept) (time.Time, bool) {
	for _, f := range fieldCandidates[c] {
		v, present := doc[f]
		if !present || isNull(v) {
			continue
		}
		if t, ok := ToTime(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToTime converts a stored timestamp value into a time.Time.
// Numbers are epoch milliseconds.
func ToTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	case string:
		return parseISO(t)
	case int32:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case int:
		return time.UnixMilli(int64(t)), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, false
		}
		return time.Unix(0, int64(t*float64(time.Millisecond))), true
	}
	return time.Time{}, false
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isAbsent(v any) bool {
	if s, ok := v.(string); ok {
		return s == ""
	}
	return isNull(v)
}

func isNull(v any) bool {
	switch v.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return true
	}
	return false
}

// DecodeUser maps a raw user document onto a UserRecord.
func DecodeUser(doc bson.M) models.UserRecord {
	var u models.UserRecord

	u.Email, _ = String(doc, Email)
	u.Name, _ = String(doc, DisplayName)
	u.Plan, _ = String(doc, Plan)
	u.EmailVerified, _ = Bool(doc, EmailVerified)
	u.WebsitesCount, _ = Int(doc, WebsitesCount)

	if t, ok := Time(doc, CreatedAt); ok {
		u.CreatedAt = &t
	}
	if t, ok := Time(doc, LastActive); ok {
		u.LastActive = &t
	}
	// Any present deletion value marks the record deleted, parseable or not.
	if _, v, ok := Lookup(doc, DeletedAt); ok {
		t, _ := ToTime(v)
		u.DeletedAt = &t
	}

	return u
}
