package models

import "time"

// Collection names in the product database.
const (
	CollectionUsers          = "users"
	CollectionWebsites       = "websites"
	CollectionComments       = "comments"
	CollectionGuests         = "guests"
	CollectionPendingSignups = "pendingsignups"
)

// PlanTrial is the plan value that marks a trial user.
const PlanTrial = "trial"

// UserRecord is a user document after field normalization.
type UserRecord struct {
	Email         string     `json:"email"`
	Name          string     `json:"name,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	LastActive    *time.Time `json:"last_active,omitempty"`
	Plan          string     `json:"plan,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	WebsitesCount int64      `json:"websites_count"`
}

// IsTrial reports whether the user is on the trial plan.
func (u UserRecord) IsTrial() bool {
	return u.Plan == PlanTrial
}

// IsDeleted reports whether the user carries a deletion timestamp.
func (u UserRecord) IsDeleted() bool {
	return u.DeletedAt != nil
}

// DisplayName returns the name to show for the user.
func (u UserRecord) DisplayName() string {
	if u.Name == "" {
		return "No name"
	}
	return u.Name
}
