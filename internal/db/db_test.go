package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestDefaultConfig(t *testing.T) {
	uri := "mongodb://localhost:27017"
	cfg := DefaultConfig(uri)

	if cfg.URI != uri {
		t.Errorf("expected URI %q, got %q", uri, cfg.URI)
	}
	if cfg.Database != "toolbar" {
		t.Errorf("expected database toolbar, got %q", cfg.Database)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("expected ConnectTimeout 10s, got %v", cfg.ConnectTimeout)
	}
}

func TestNewConnector_DefaultsDatabase(t *testing.T) {
	c := NewConnector(Config{URI: "mongodb://localhost"}, zerolog.Nop())
	if c.cfg.Database != DefaultDatabase {
		t.Errorf("expected %q, got %q", DefaultDatabase, c.cfg.Database)
	}
}

func TestOpen_InvalidURI(t *testing.T) {
	c := NewConnector(DefaultConfig("not-a-mongo-uri"), zerolog.Nop())

	_, err := c.Open(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid URI")
	}
	if !IsTransport(err) {
		t.Errorf("expected transport error, got %v", err)
	}

	var dbErr *Error
	if !errors.As(err, &dbErr) || dbErr.Op != "connect" {
		t.Errorf("expected connect op, got %#v", err)
	}
}

func TestClassify(t *testing.T) {
	t.Run("command error", func(t *testing.T) {
		cmdErr := mongo.CommandError{Code: 13, Name: "Unauthorized", Message: "not authorized"}
		e := queryError("count", "users", cmdErr)

		if e.Kind != KindQuery {
			t.Errorf("expected query kind, got %s", e.Kind)
		}
		if e.Name != "Unauthorized" || e.Code != 13 {
			t.Errorf("unexpected name/code: %s/%d", e.Name, e.Code)
		}
		if e.Error() != "count users: "+cmdErr.Error() {
			t.Errorf("unexpected message: %s", e.Error())
		}
	})

	t.Run("network error", func(t *testing.T) {
		netErr := mongo.CommandError{Labels: []string{"NetworkError"}, Message: "connection reset"}
		e := queryError("find", "users", netErr)
		if e.Kind != KindTransport {
			t.Errorf("expected transport kind, got %s", e.Kind)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		e := queryError("count", "users", errors.New("boom"))
		if e.Name != "errors.errorString" {
			t.Errorf("unexpected name %q", e.Name)
		}
		if KindOf(e) != KindQuery {
			t.Errorf("expected query kind")
		}
		if !errors.Is(e, e.Err) {
			t.Error("expected Unwrap to expose the cause")
		}
	})

	t.Run("unclassified", func(t *testing.T) {
		if KindOf(errors.New("x")) != KindQuery {
			t.Error("unclassified errors should be query failures")
		}
		if IsTransport(errors.New("x")) {
			t.Error("unclassified errors are not transport failures")
		}
	})
}
