package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/MacJediWizard/statsbot/internal/db"
	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/MacJediWizard/statsbot/internal/schema"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	sampleRecentLimit = 10
	sampleRawLimit    = 5
)

// metricQuery is one count of the statistics report.
type metricQuery struct {
	name       string
	collection string
	predicate  func(w Windows) schema.Predicate
	target     func(m *models.Metrics) *int64
}

func createdIn(r func(w Windows) schema.Range) func(w Windows) schema.Predicate {
	return func(w Windows) schema.Predicate {
		return schema.TimeIn(schema.CreatedAt, r(w))
	}
}

func today(w Windows) schema.Range     { return w.Today }
func yesterday(w Windows) schema.Range { return w.Yesterday }

func all(Windows) schema.Predicate { return schema.All() }

// newUsersToday is shared by the metric table and the listing.
func newUsersToday(w Windows) schema.Predicate {
	return schema.And(schema.TimeIn(schema.CreatedAt, w.Today), schema.NotDeleted())
}

// metricTable lists the counts in execution order.
var metricTable = []metricQuery{
	{"total_users", models.CollectionUsers, all,
		func(m *models.Metrics) *int64 { return &m.TotalUsers }},
	{"users_created_yesterday", models.CollectionUsers, createdIn(yesterday),
		func(m *models.Metrics) *int64 { return &m.UsersCreatedYesterday }},
	{"online_users", models.CollectionUsers,
		func(w Windows) schema.Predicate { return schema.TimeIn(schema.LastActive, schema.Since(w.OnlineSince)) },
		func(m *models.Metrics) *int64 { return &m.OnlineUsers }},
	{"trial_users", models.CollectionUsers,
		func(Windows) schema.Predicate { return schema.And(schema.Is(schema.Plan, models.PlanTrial), schema.NotDeleted()) },
		func(m *models.Metrics) *int64 { return &m.TrialUsers }},
	{"verified_users", models.CollectionUsers,
		func(Windows) schema.Predicate { return schema.And(schema.Is(schema.EmailVerified, true), schema.NotDeleted()) },
		func(m *models.Metrics) *int64 { return &m.VerifiedUsers }},
	{"unverified_users", models.CollectionUsers,
		func(Windows) schema.Predicate { return schema.And(schema.Is(schema.EmailVerified, false), schema.NotDeleted()) },
		func(m *models.Metrics) *int64 { return &m.UnverifiedUsers }},

	{"total_websites", models.CollectionWebsites, all,
		func(m *models.Metrics) *int64 { return &m.TotalWebsites }},
	{"total_comments", models.CollectionComments, all,
		func(m *models.Metrics) *int64 { return &m.TotalComments }},
	{"total_guests", models.CollectionGuests, all,
		func(m *models.Metrics) *int64 { return &m.TotalGuests }},
	{"total_pending_signups", models.CollectionPendingSignups, all,
		func(m *models.Metrics) *int64 { return &m.TotalPendingSignups }},

	{"users_before_yesterday", models.CollectionUsers,
		func(w Windows) schema.Predicate { return schema.TimeIn(schema.CreatedAt, schema.Before(w.StartOfYesterday)) },
		func(m *models.Metrics) *int64 { return &m.UsersBeforeYesterday }},
	{"users_lost_yesterday", models.CollectionUsers,
		func(w Windows) schema.Predicate { return schema.TimeIn(schema.DeletedAt, w.Yesterday) },
		func(m *models.Metrics) *int64 { return &m.UsersLostYesterday }},

	{"new_users_today", models.CollectionUsers, newUsersToday,
		func(m *models.Metrics) *int64 { return &m.NewUsersToday }},
	{"new_websites_today", models.CollectionWebsites, createdIn(today),
		func(m *models.Metrics) *int64 { return &m.NewWebsitesToday }},
	{"new_comments_today", models.CollectionComments, createdIn(today),
		func(m *models.Metrics) *int64 { return &m.NewCommentsToday }},
	{"new_trial_users_today", models.CollectionUsers,
		func(w Windows) schema.Predicate {
			return schema.And(schema.Is(schema.Plan, models.PlanTrial), newUsersToday(w))
		},
		func(m *models.Metrics) *int64 { return &m.NewTrialUsersToday }},
	{"new_verified_users_today", models.CollectionUsers,
		func(w Windows) schema.Predicate {
			return schema.And(schema.Is(schema.EmailVerified, true), newUsersToday(w))
		},
		func(m *models.Metrics) *int64 { return &m.NewVerifiedUsersToday }},
	{"new_unverified_users_today", models.CollectionUsers,
		func(w Windows) schema.Predicate {
			return schema.And(schema.Is(schema.EmailVerified, false), newUsersToday(w))
		},
		func(m *models.Metrics) *int64 { return &m.NewUnverifiedUsersToday }},
	{"new_guests_today", models.CollectionGuests, createdIn(today),
		func(m *models.Metrics) *int64 { return &m.NewGuestsToday }},
	{"new_pending_signups_today", models.CollectionPendingSignups, createdIn(today),
		func(m *models.Metrics) *int64 { return &m.NewPendingSignupsToday }},
}

// Generator runs the report queries over a session.
type Generator struct {
	logger zerolog.Logger
}

// NewGenerator creates a new report generator.
func NewGenerator(logger zerolog.Logger) *Generator {
	return &Generator{
		logger: logger.With().Str("component", "report_generator").Logger(),
	}
}

// CollectMetrics runs every count of the statistics report in order. The
// first failing count aborts the run; partial metrics are never returned.
func (g *Generator) CollectMetrics(ctx context.Context, sess db.Session, w Windows) (*models.Metrics, error) {
	g.logger.Debug().
		Time("start_of_today", w.StartOfToday).
		Time("now", w.Now).
		Msg("collecting metrics")

	var m models.Metrics
	for _, q := range metricTable {
		n, err := sess.Count(ctx, q.collection, q.predicate(w))
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", q.name, err)
		}
		*q.target(&m) = n
	}

	return &m, nil
}

// ListNewUsers returns the active users created today, newest first.
func (g *Generator) ListNewUsers(ctx context.Context, sess db.Session, w Windows) ([]models.UserRecord, error) {
	docs, err := sess.Find(ctx, models.CollectionUsers, newUsersToday(w), db.FindOptions{
		Projection: schema.UserProjection(),
		SortDesc:   schema.Fields(schema.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("list new users: %w", err)
	}

	users := make([]models.UserRecord, 0, len(docs))
	for i, doc := range docs {
		users = append(users, schema.DecodeUser(doc))
		g.logger.Debug().
			Int("index", i+1).
			Fields(rawFields(doc)).
			Msg("new user today")
	}

	// The server sorts mixed encodings by BSON type first; order by the
	// normalized creation time instead.
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i].CreatedAt, users[j].CreatedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})

	g.logger.Debug().Int("count", len(users)).Msg("found users for today")
	return users, nil
}

// SampleRecentUsers logs a few raw user documents and up to ten active users
// created in the last seven days, with the stored types of their creation
// fields. It is a diagnostic for schema drift and returns the recent users.
func (g *Generator) SampleRecentUsers(ctx context.Context, sess db.Session, w Windows) ([]models.UserRecord, error) {
	raw, err := sess.Find(ctx, models.CollectionUsers, schema.All(), db.FindOptions{Limit: sampleRawLimit})
	if err != nil {
		return nil, fmt.Errorf("sample users: %w", err)
	}
	for i, doc := range raw {
		g.logger.Debug().Int("index", i+1).Fields(rawFields(doc)).Msg("sample user")
	}

	for _, enc := range schema.Encodings {
		g.logger.Debug().
			Str("encoding", enc.String()).
			Interface("from", enc.Bound(w.Today.From)).
			Interface("to", enc.Bound(w.Today.To)).
			Msg("today search range")
	}

	recent, err := sess.Find(ctx, models.CollectionUsers,
		schema.And(schema.TimeIn(schema.CreatedAt, w.LastWeek), schema.NotDeleted()),
		db.FindOptions{
			SortDesc: schema.Fields(schema.CreatedAt),
			Limit:    sampleRecentLimit,
		})
	if err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}

	users := make([]models.UserRecord, 0, len(recent))
	for i, doc := range recent {
		u := schema.DecodeUser(doc)
		users = append(users, u)

		ev := g.logger.Debug().Int("index", i+1).Str("email", u.Email)
		for _, f := range schema.Fields(schema.CreatedAt) {
			if v, ok := doc[f]; ok {
				ev = ev.Interface(f, v).Str(f+"_type", fmt.Sprintf("%T", v))
			}
		}
		if u.CreatedAt != nil {
			ev = ev.Time("parsed_created_at", *u.CreatedAt)
		}
		ev.Msg("recent user")
	}

	return users, nil
}

// rawFields picks the identifying fields of a raw user document for logging.
func rawFields(doc bson.M) map[string]any {
	out := map[string]any{}
	for _, f := range []string{"email", "username", "name", "createdAt", "created_at"} {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}
