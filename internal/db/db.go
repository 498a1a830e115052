// Package db provides read-only MongoDB access to the product database.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MacJediWizard/statsbot/internal/schema"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DefaultDatabase is the product database name.
const DefaultDatabase = "toolbar"

// Config holds database connection configuration.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	AppName        string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(uri string) Config {
	return Config{
		URI:            uri,
		Database:       DefaultDatabase,
		ConnectTimeout: 10 * time.Second,
		AppName:        "statsbot",
	}
}

// FindOptions shapes a listing query.
type FindOptions struct {
	// Projection lists the fields to return. Empty returns whole documents.
	Projection []string
	// SortDesc sorts by each field in turn, newest first.
	SortDesc []string
	// Limit caps the number of documents. Zero means no limit.
	Limit int64
}

// Session is one connection lifetime against the product database.
type Session interface {
	Count(ctx context.Context, collection string, pred schema.Predicate) (int64, error)
	Find(ctx context.Context, collection string, pred schema.Predicate, opts FindOptions) ([]bson.M, error)
	CollectionNames(ctx context.Context) ([]string, error)
	Close(ctx context.Context) error
}

// Opener acquires sessions.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Connector opens a fresh MongoDB client per session.
type Connector struct {
	cfg    Config
	logger zerolog.Logger
}

// NewConnector creates a Connector. No connection is made until Open.
func NewConnector(cfg Config, logger zerolog.Logger) *Connector {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	return &Connector{
		cfg:    cfg,
		logger: logger.With().Str("component", "db").Logger(),
	}
}

// Open connects, verifies the primary is reachable and returns a session.
// The client is disconnected again when the ping fails.
func (c *Connector) Open(ctx context.Context) (Session, error) {
	opts := options.Client().ApplyURI(c.cfg.URI).SetAppName(c.cfg.AppName)
	if c.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(c.cfg.ConnectTimeout)
	}

	c.logger.Debug().Str("database", c.cfg.Database).Msg("connecting to mongodb")

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, transportError("connect", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, transportError("ping", err)
	}

	c.logger.Debug().Str("database", c.cfg.Database).Msg("connected to mongodb")

	return &mongoSession{
		client: client,
		db:     client.Database(c.cfg.Database),
		logger: c.logger,
	}, nil
}

// Ping opens and closes a session, reporting whether the database is reachable.
func (c *Connector) Ping(ctx context.Context) error {
	sess, err := c.Open(ctx)
	if err != nil {
		return err
	}
	return sess.Close(ctx)
}

type mongoSession struct {
	client *mongo.Client
	db     *mongo.Database
	logger zerolog.Logger
}

func (s *mongoSession) Count(ctx context.Context, collection string, pred schema.Predicate) (int64, error) {
	n, err := s.db.Collection(collection).CountDocuments(ctx, filterOf(pred))
	if err != nil {
		return 0, queryError("count", collection, err)
	}
	return n, nil
}

func (s *mongoSession) Find(ctx context.Context, collection string, pred schema.Predicate, opts FindOptions) ([]bson.M, error) {
	findOpts := options.Find()
	if len(opts.Projection) > 0 {
		projection := make(bson.D, 0, len(opts.Projection))
		for _, f := range opts.Projection {
			projection = append(projection, bson.E{Key: f, Value: 1})
		}
		findOpts.SetProjection(projection)
	}
	if len(opts.SortDesc) > 0 {
		sort := make(bson.D, 0, len(opts.SortDesc))
		for _, f := range opts.SortDesc {
			sort = append(sort, bson.E{Key: f, Value: -1})
		}
		findOpts.SetSort(sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filterOf(pred), findOpts)
	if err != nil {
		return nil, queryError("find", collection, err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, queryError("find", collection, err)
	}
	return docs, nil
}

func (s *mongoSession) CollectionNames(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, queryError("list_collections", "", err)
	}
	return names, nil
}

func (s *mongoSession) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	s.logger.Debug().Msg("mongodb connection closed")
	return nil
}

func filterOf(pred schema.Predicate) bson.D {
	if pred == nil {
		return bson.D{}
	}
	return pred.Filter()
}
