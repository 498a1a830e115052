package db

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorKind classifies data-source failures.
type ErrorKind string

const (
	// KindTransport covers connection, server selection and network failures.
	KindTransport ErrorKind = "transport"
	// KindQuery covers failures reported while executing a query.
	KindQuery ErrorKind = "query"
)

// Error is a classified data-source failure.
type Error struct {
	Kind       ErrorKind
	Op         string
	Collection string
	Name       string // driver error name, or the Go type when there is none
	Code       int32
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Collection != "" {
		b.WriteString(" ")
		b.WriteString(e.Collection)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var dbErr *Error
	return errors.As(err, &dbErr) && dbErr.Kind == KindTransport
}

// KindOf returns the failure kind of err. Unclassified errors count as query failures.
func KindOf(err error) ErrorKind {
	var dbErr *Error
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return KindQuery
}

func transportError(op string, err error) *Error {
	e := classify(op, "", err)
	e.Kind = KindTransport
	return e
}

func queryError(op, collection string, err error) *Error {
	return classify(op, collection, err)
}

func classify(op, collection string, err error) *Error {
	e := &Error{
		Kind:       KindQuery,
		Op:         op,
		Collection: collection,
		Name:       strings.TrimPrefix(fmt.Sprintf("%T", err), "*"),
		Err:        err,
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		e.Name = cmdErr.Name
		e.Code = cmdErr.Code
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		e.Kind = KindTransport
	}
	return e
}
