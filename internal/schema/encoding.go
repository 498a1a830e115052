package schema

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Encoding is one of the ways a timestamp is physically stored.
type Encoding int

const (
	EncodingDate Encoding = iota
	EncodingString
	EncodingInteger
	EncodingDouble
)

// Encodings lists every supported timestamp encoding.
var Encodings = []Encoding{EncodingDate, EncodingString, EncodingInteger, EncodingDouble}

// ISOLayout is the layout of ISO-8601 timestamp strings in the product data.
const ISOLayout = "2006-01-02T15:04:05.000Z"

func (e Encoding) String() string {
	switch e {
	case EncodingDate:
		return "date"
	case EncodingString:
		return "string"
	case EncodingInteger:
		return "integer"
	case EncodingDouble:
		return "double"
	}
	return "unknown"
}

// bsonType is the $type operand selecting values of this encoding.
func (e Encoding) bsonType() any {
	switch e {
	case EncodingDate:
		return "date"
	case EncodingString:
		return "string"
	case EncodingInteger:
		return bson.A{"int", "long"}
	default:
		return "double"
	}
}

// Bound converts t into the form stored values of this encoding compare against.
func (e Encoding) Bound(t time.Time) any {
	switch e {
	case EncodingDate:
		return primitive.NewDateTimeFromTime(t)
	case EncodingString:
		return FormatISO(t)
	case EncodingInteger:
		return t.UnixMilli()
	default:
		return float64(t.UnixMilli())
	}
}

// FormatISO renders t the way the product stores ISO timestamps.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// EncodingOf classifies a stored value the way $type does.
func EncodingOf(v any) (Encoding, bool) {
	switch v.(type) {
	case time.Time, primitive.DateTime:
		return EncodingDate, true
	case string:
		return EncodingString, true
	case int32, int64, int:
		return EncodingInteger, true
	case float64, float32:
		return EncodingDouble, true
	}
	return 0, false
}

// compareEncoded compares a stored value with t in the value's own encoding.
// Strings compare lexically, as the server does.
func compareEncoded(e Encoding, v any, t time.Time) int {
	switch e {
	case EncodingString:
		s, _ := v.(string)
		return strings.Compare(s, FormatISO(t))
	case EncodingDouble:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case float32:
			f = float64(n)
		}
		return compareFloat(f, float64(t.UnixMilli()))
	default:
		stored, _ := ToTime(v)
		return compareInt(stored.UnixMilli(), t.UnixMilli())
	}
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
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
