package reports

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/MacJediWizard/statsbot/internal/models"
)

// NoNewUsersMessage is the listing text when nobody registered today.
const NoNewUsersMessage = "No new users registered today."

const (
	dateLayout     = "1/2/2006"
	dateTimeLayout = "1/2/2006, 3:04:05 PM"
)

// Rate is a percentage derived from two counts. An undefined rate (zero
// denominator) renders as a bare 0.
type Rate struct {
	Value   float64
	Defined bool
}

// ComputeRate returns num/den as a percentage rounded to two decimals.
func ComputeRate(num, den int64) Rate {
	if den == 0 {
		return Rate{}
	}
	pct := float64(num) / float64(den) * 100
	return Rate{Value: math.Round(pct*100) / 100, Defined: true}
}

func (r Rate) String() string {
	if !r.Defined {
		return "0"
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

// MarshalJSON encodes the rate as a plain number.
func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(r.Value, 'f', -1, 64)), nil
}

// Rates holds the derived ratios of a statistics report.
type Rates struct {
	Churn         Rate `json:"churn_rate"`
	UserGrowth    Rate `json:"user_growth_rate"`
	WebsiteGrowth Rate `json:"website_growth_rate"`
	CommentGrowth Rate `json:"comment_growth_rate"`
}

// ComputeRates derives the report ratios from the raw counts.
func ComputeRates(m models.Metrics) Rates {
	return Rates{
		Churn:         ComputeRate(m.UsersLostYesterday, m.UsersBeforeYesterday),
		UserGrowth:    ComputeRate(m.NewUsersToday, m.TotalUsers),
		WebsiteGrowth: ComputeRate(m.NewWebsitesToday, m.TotalWebsites),
		CommentGrowth: ComputeRate(m.NewCommentsToday, m.TotalComments),
	}
}

// RenderStats formats the daily statistics report.
func RenderStats(r *models.StatsReport) string {
	m := r.Metrics
	rates := ComputeRates(m)

	var b strings.Builder
	b.WriteString("📊 Daily SaaS Statistics Report\n\n")

	fmt.Fprintf(&b, "🚀 TODAY'S ACTIVITY (%s)\n", r.StartOfToday.Format(dateLayout))
	fmt.Fprintf(&b, "• New Users: %d (+%s%% growth)\n", m.NewUsersToday, rates.UserGrowth)
	fmt.Fprintf(&b, "• New Websites: %d (+%s%% growth)\n", m.NewWebsitesToday, rates.WebsiteGrowth)
	fmt.Fprintf(&b, "• New Comments: %d (+%s%% growth)\n", m.NewCommentsToday, rates.CommentGrowth)
	fmt.Fprintf(&b, "• New Trial Users: %d\n", m.NewTrialUsersToday)
	fmt.Fprintf(&b, "• New Verified Users: %d\n", m.NewVerifiedUsersToday)
	fmt.Fprintf(&b, "• New Unverified Users: %d\n", m.NewUnverifiedUsersToday)
	fmt.Fprintf(&b, "• New Guests: %d\n", m.NewGuestsToday)
	fmt.Fprintf(&b, "• New Pending Signups: %d\n\n", m.NewPendingSignupsToday)

	b.WriteString("👥 TOTAL USER METRICS\n")
	fmt.Fprintf(&b, "• Total Users: %d (+%d yesterday)\n", m.TotalUsers, m.UsersCreatedYesterday)
	fmt.Fprintf(&b, "• Currently Online: %d\n", m.OnlineUsers)
	fmt.Fprintf(&b, "• Trial Users: %d\n", m.TrialUsers)
	fmt.Fprintf(&b, "• Verified Users: %d\n", m.VerifiedUsers)
	fmt.Fprintf(&b, "• Unverified Users: %d\n", m.UnverifiedUsers)
	fmt.Fprintf(&b, "• Total Guests: %d\n", m.TotalGuests)
	fmt.Fprintf(&b, "• Pending Signups: %d\n\n", m.TotalPendingSignups)

	b.WriteString("🌐 PLATFORM OVERVIEW\n")
	fmt.Fprintf(&b, "• Total Websites: %d\n", m.TotalWebsites)
	fmt.Fprintf(&b, "• Total Comments: %d\n", m.TotalComments)
	fmt.Fprintf(&b, "• Daily Churn Rate: %s%%\n\n", rates.Churn)

	b.WriteString("📈 KEY INSIGHTS\n")
	fmt.Fprintf(&b, "• User Conversion: %d/%d verified today\n", m.NewVerifiedUsersToday, m.NewUsersToday)
	fmt.Fprintf(&b, "• Trial Adoption: %d/%d started trials\n", m.NewTrialUsersToday, m.NewUsersToday)
	fmt.Fprintf(&b, "• Engagement: %d comments from %d new users\n\n", m.NewCommentsToday, m.NewUsersToday)

	fmt.Fprintf(&b, "Generated at: %s", r.GeneratedAt.Format(dateTimeLayout))

	return b.String()
}

// RenderNewUsers formats today's new users as numbered blocks, or returns
// NoNewUsersMessage when there are none. Times are shown in the location of
// r.Day.
func RenderNewUsers(r *models.NewUsersReport) string {
	if len(r.Users) == 0 {
		return NoNewUsersMessage
	}

	loc := r.Day.Location()
	blocks := make([]string, 0, len(r.Users))
	for i := range r.Users {
		blocks = append(blocks, renderUser(i+1, &r.Users[i], loc))
	}

	return fmt.Sprintf("📊 Today's New Users Report (%d total)\n\n", len(r.Users)) +
		strings.Join(blocks, "\n\n")
}

func renderUser(n int, u *models.UserRecord, loc *time.Location) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d. %s (%s)\n", n, u.DisplayName(), u.Email)
	fmt.Fprintf(&b, "   Registered: %s", formatTime(u.CreatedAt, loc))

	status := "❌ Unverified"
	if u.EmailVerified {
		status = "✅ Verified"
	}
	fmt.Fprintf(&b, "\n   Status: %s", status)

	kind := "💎 Regular User"
	if u.IsTrial() {
		kind = "🔄 Trial User"
	}
	fmt.Fprintf(&b, "\n   Type: %s", kind)

	if u.Plan != "" {
		fmt.Fprintf(&b, "\n   Plan: %s", u.Plan)
	}
	fmt.Fprintf(&b, "\n   Websites: %d", u.WebsitesCount)

	if u.LastActive != nil {
		fmt.Fprintf(&b, "\n   Last Active: %s", formatTime(u.LastActive, loc))
	} else {
		b.WriteString("\n   Not active yet")
	}

	return b.String()
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "Unknown"
	}
	return t.In(loc).Format(dateTimeLayout)
}
