package reports

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MacJediWizard/statsbot/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestComputeRate(t *testing.T) {
	tests := []struct {
		name     string
		num, den int64
		want     string
	}{
		{"growth", 5, 100, "5.00"},
		{"zero numerator", 0, 10, "0.00"},
		{"rounding", 1, 3, "33.33"},
		{"round half up", 2, 3, "66.67"},
		{"over 100", 3, 2, "150.00"},
		{"zero denominator", 7, 0, "0"},
		{"both zero", 0, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeRate(tt.num, tt.den).String(); got != tt.want {
				t.Errorf("ComputeRate(%d, %d) = %q, want %q", tt.num, tt.den, got, tt.want)
			}
		})
	}
}

func TestComputeRates_ZeroDenominators(t *testing.T) {
	rates := ComputeRates(models.Metrics{
		UsersLostYesterday: 4,
		NewUsersToday:      3,
		NewWebsitesToday:   2,
		NewCommentsToday:   1,
	})

	for name, r := range map[string]Rate{
		"churn":          rates.Churn,
		"user growth":    rates.UserGrowth,
		"website growth": rates.WebsiteGrowth,
		"comment growth": rates.CommentGrowth,
	} {
		if r.Defined || r.Value != 0 || r.String() != "0" {
			t.Errorf("%s: expected undefined 0 rate, got %+v (%s)", name, r, r)
		}
	}
}

func TestRate_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Rates{
		Churn:      ComputeRate(1, 3),
		UserGrowth: ComputeRate(1, 0),
	})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"churn_rate":33.33`) || !strings.Contains(got, `"user_growth_rate":0`) {
		t.Errorf("unexpected JSON: %s", got)
	}
}

func TestRenderStats(t *testing.T) {
	report := &models.StatsReport{
		StartOfToday: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		GeneratedAt:  time.Date(2025, 3, 14, 15, 4, 5, 0, time.UTC),
		Metrics: models.Metrics{
			TotalUsers:              100,
			UsersCreatedYesterday:   4,
			OnlineUsers:             2,
			TrialUsers:              10,
			VerifiedUsers:           60,
			UnverifiedUsers:         35,
			TotalWebsites:           3,
			TotalComments:           0,
			TotalGuests:             7,
			TotalPendingSignups:     1,
			UsersBeforeYesterday:    0,
			UsersLostYesterday:      2,
			NewUsersToday:           5,
			NewWebsitesToday:        1,
			NewCommentsToday:        0,
			NewGuestsToday:          3,
			NewPendingSignupsToday:  1,
			NewTrialUsersToday:      2,
			NewVerifiedUsersToday:   4,
			NewUnverifiedUsersToday: 1,
		},
	}

	want := "📊 Daily SaaS Statistics Report\n\n" +
		"🚀 TODAY'S ACTIVITY (3/14/2025)\n" +
		"• New Users: 5 (+5.00% growth)\n" +
		"• New Websites: 1 (+33.33% growth)\n" +
		"• New Comments: 0 (+0% growth)\n" +
		"• New Trial Users: 2\n" +
		"• New Verified Users: 4\n" +
		"• New Unverified Users: 1\n" +
		"• New Guests: 3\n" +
		"• New Pending Signups: 1\n\n" +
		"👥 TOTAL USER METRICS\n" +
		"• Total Users: 100 (+4 yesterday)\n" +
		"• Currently Online: 2\n" +
		"• Trial Users: 10\n" +
		"• Verified Users: 60\n" +
		"• Unverified Users: 35\n" +
		"• Total Guests: 7\n" +
		"• Pending Signups: 1\n\n" +
		"🌐 PLATFORM OVERVIEW\n" +
		"• Total Websites: 3\n" +
		"• Total Comments: 0\n" +
		"• Daily Churn Rate: 0%\n\n" +
		"📈 KEY INSIGHTS\n" +
		"• User Conversion: 4/5 verified today\n" +
		"• Trial Adoption: 2/5 started trials\n" +
		"• Engagement: 0 comments from 5 new users\n\n" +
		"Generated at: 3/14/2025, 3:04:05 PM"

	if got := RenderStats(report); got != want {
		t.Errorf("RenderStats() mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStats_ChurnRate(t *testing.T) {
	report := &models.StatsReport{
		Metrics: models.Metrics{UsersBeforeYesterday: 200, UsersLostYesterday: 3},
	}
	if got := RenderStats(report); !strings.Contains(got, "• Daily Churn Rate: 1.50%\n") {
		t.Errorf("expected churn rate 1.50%%, got:\n%s", got)
	}
}

func TestRenderNewUsers_Empty(t *testing.T) {
	got := RenderNewUsers(&models.NewUsersReport{Day: time.Now()})
	if got != "No new users registered today." {
		t.Errorf("RenderNewUsers() = %q", got)
	}
}

func TestRenderNewUsers_MixedBatch(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	report := &models.NewUsersReport{
		Day: day,
		Users: []models.UserRecord{
			{
				Email:         "ada@example.com",
				Name:          "Ada",
				CreatedAt:     timePtr(day.Add(10 * time.Hour)),
				LastActive:    timePtr(day.Add(14 * time.Hour)),
				Plan:          "trial",
				EmailVerified: true,
				WebsitesCount: 2,
			},
			{
				Email:         "bob@example.com",
				Name:          "bob",
				CreatedAt:     timePtr(day.Add(11*time.Hour + 30*time.Minute)),
				Plan:          "pro",
				WebsitesCount: 1,
			},
			{
				Email:     "carol@example.com",
				CreatedAt: timePtr(day.Add(23*time.Hour + 59*time.Minute + 59*time.Second)),
			},
		},
	}

	want := "📊 Today's New Users Report (3 total)\n\n" +
		"1. Ada (ada@example.com)\n" +
		"   Registered: 3/14/2025, 10:00:00 AM\n" +
		"   Status: ✅ Verified\n" +
		"   Type: 🔄 Trial User\n" +
		"   Plan: trial\n" +
		"   Websites: 2\n" +
		"   Last Active: 3/14/2025, 2:00:00 PM\n\n" +
		"2. bob (bob@example.com)\n" +
		"   Registered: 3/14/2025, 11:30:00 AM\n" +
		"   Status: ❌ Unverified\n" +
		"   Type: 💎 Regular User\n" +
		"   Plan: pro\n" +
		"   Websites: 1\n" +
		"   Not active yet\n\n" +
		"3. No name (carol@example.com)\n" +
		"   Registered: 3/14/2025, 11:59:59 PM\n" +
		"   Status: ❌ Unverified\n" +
		"   Type: 💎 Regular User\n" +
		"   Websites: 0\n" +
		"   Not active yet"

	if got := RenderNewUsers(report); got != want {
		t.Errorf("RenderNewUsers() mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderNewUsers_UsesReportLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, loc)
	report := &models.NewUsersReport{
		Day: day,
		Users: []models.UserRecord{{
			Email:     "tz@example.com",
			CreatedAt: timePtr(time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)),
		}},
	}

	if got := RenderNewUsers(report); !strings.Contains(got, "Registered: 3/14/2025, 10:00:00 AM") {
		t.Errorf("expected registration time in report location, got:\n%s", got)
	}
}
