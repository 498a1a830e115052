package reports

import (
	"time"

	"github.com/MacJediWizard/statsbot/internal/schema"
)

// OnlineThreshold is how recently a user must have been active to count as online.
const OnlineThreshold = 5 * time.Minute

// Windows holds the time windows of one report run. They are derived once
// from a single clock reading so every metric of the run agrees on them.
type Windows struct {
	Now              time.Time
	StartOfToday     time.Time
	StartOfYesterday time.Time

	// Yesterday is [start of yesterday, start of today - 1ms], end inclusive.
	Yesterday schema.Range
	// Today is [start of today, start of tomorrow).
	Today schema.Range
	// LastWeek is [now - 7 days, now], used for diagnostic sampling.
	LastWeek schema.Range
	// OnlineSince is the lower bound for last activity of online users.
	OnlineSince time.Time
}

// NewWindows derives the report windows from now, in now's location.
func NewWindows(now time.Time) Windows {
	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfYesterday := startOfToday.AddDate(0, 0, -1)
	startOfTomorrow := startOfToday.AddDate(0, 0, 1)

	return Windows{
		Now:              now,
		StartOfToday:     startOfToday,
		StartOfYesterday: startOfYesterday,
		Yesterday:        schema.Through(startOfYesterday, startOfToday.Add(-time.Millisecond)),
		Today:            schema.Between(startOfToday, startOfTomorrow),
		LastWeek:         schema.Through(now.Add(-7*24*time.Hour), now),
		OnlineSince:      now.Add(-OnlineThreshold),
	}
}
