package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportKind identifies which report a run produced.
type ReportKind string

const (
	ReportKindStats    ReportKind = "stats"
	ReportKindNewUsers ReportKind = "new_users"
)

// Trigger identifies what started a report run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerCommand  Trigger = "command"
	TriggerHTTP     Trigger = "http"
	TriggerCLI      Trigger = "cli"
)

// Metrics holds the counts behind the daily statistics report.
type Metrics struct {
	TotalUsers            int64 `json:"total_users"`
	UsersCreatedYesterday int64 `json:"users_created_yesterday"`
	OnlineUsers           int64 `json:"online_users"`
	TrialUsers            int64 `json:"trial_users"`
	VerifiedUsers         int64 `json:"verified_users"`
	UnverifiedUsers       int64 `json:"unverified_users"`

	TotalWebsites       int64 `json:"total_websites"`
	TotalComments       int64 `json:"total_comments"`
	TotalGuests         int64 `json:"total_guests"`
	TotalPendingSignups int64 `json:"total_pending_signups"`

	UsersBeforeYesterday int64 `json:"users_before_yesterday"`
	UsersLostYesterday   int64 `json:"users_lost_yesterday"`

	NewUsersToday           int64 `json:"new_users_today"`
	NewWebsitesToday        int64 `json:"new_websites_today"`
	NewCommentsToday        int64 `json:"new_comments_today"`
	NewGuestsToday          int64 `json:"new_guests_today"`
	NewPendingSignupsToday  int64 `json:"new_pending_signups_today"`
	NewTrialUsersToday      int64 `json:"new_trial_users_today"`
	NewVerifiedUsersToday   int64 `json:"new_verified_users_today"`
	NewUnverifiedUsersToday int64 `json:"new_unverified_users_today"`
}

// StatsReport is a computed statistics report.
type StatsReport struct {
	RunID        uuid.UUID `json:"run_id"`
	StartOfToday time.Time `json:"start_of_today"`
	GeneratedAt  time.Time `json:"generated_at"`
	Metrics      Metrics   `json:"metrics"`
}

// NewUsersReport lists the users registered today.
type NewUsersReport struct {
	RunID       uuid.UUID    `json:"run_id"`
	Day         time.Time    `json:"day"`
	GeneratedAt time.Time    `json:"generated_at"`
	Users       []UserRecord `json:"users"`
}
