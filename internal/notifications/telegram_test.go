package notifications

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/MacJediWizard/statsbot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// fakeBotAPI implements BotAPI for testing.
type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
	onSend   chan struct{}
}

func (f *fakeBotAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	if f.onSend != nil {
		f.onSend <- struct{}{}
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBotAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBotAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBotAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// fakeReports implements ReportSource for testing.
type fakeReports struct {
	mu       sync.Mutex
	triggers []models.Trigger
}

func (f *fakeReports) StatsMessage(_ context.Context, trigger models.Trigger) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return "stats report"
}

func (f *fakeReports) NewUsersMessage(_ context.Context, trigger models.Trigger) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return "new users report"
}

type fakeObserver struct {
	ok, failed int
}

func (f *fakeObserver) ObserveDelivery(channel string, success bool) {
	if channel != ChannelTelegram {
		return
	}
	if success {
		f.ok++
	} else {
		f.failed++
	}
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	cmdLen := strings.IndexByte(text+" ", ' ')
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: chatID},
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: cmdLen},
			},
		},
	}
}

func newTestBot(api *fakeBotAPI, reports ReportSource) *TelegramBot {
	return NewTelegramBotWithAPI(api, TelegramConfig{Token: "123:abc", ChatID: 99}, reports, zerolog.Nop())
}

func TestValidateTelegramConfig(t *testing.T) {
	if err := ValidateTelegramConfig(&TelegramConfig{}); err == nil {
		t.Error("expected error for missing token")
	}
	if err := ValidateTelegramConfig(&TelegramConfig{Token: "t"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTelegramBot_ProcessUpdate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"stats", "/stats", "stats report"},
		{"start", "/start", "stats report"},
		{"addressed to bot", "/stats@toolbar_stats_bot", "stats report"},
		{"new users", "/newusers", "new users report"},
		{"chat id", "/getchatid", "Your chat ID is: -100555"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeBotAPI{}
			reports := &fakeReports{}
			bot := newTestBot(api, reports)

			bot.ProcessUpdate(context.Background(), commandUpdate(-100555, tt.text))

			if len(api.sent) != 1 {
				t.Fatalf("expected 1 message, got %d", len(api.sent))
			}
			if api.sent[0].ChatID != -100555 {
				t.Errorf("expected reply to calling chat, got %d", api.sent[0].ChatID)
			}
			if api.sent[0].Text != tt.want {
				t.Errorf("reply = %q, want %q", api.sent[0].Text, tt.want)
			}
			for _, tr := range reports.triggers {
				if tr != models.TriggerCommand {
					t.Errorf("expected command trigger, got %s", tr)
				}
			}
		})
	}
}

func TestTelegramBot_ProcessUpdate_Ignored(t *testing.T) {
	api := &fakeBotAPI{}
	bot := newTestBot(api, &fakeReports{})

	bot.ProcessUpdate(context.Background(), tgbotapi.Update{})
	bot.ProcessUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}},
	})
	bot.ProcessUpdate(context.Background(), commandUpdate(1, "/unknown"))

	if len(api.sent) != 0 {
		t.Errorf("expected no replies, got %d", len(api.sent))
	}
}

func TestTelegramBot_SendText(t *testing.T) {
	api := &fakeBotAPI{}
	observer := &fakeObserver{}
	bot := newTestBot(api, &fakeReports{})
	bot.SetObserver(observer)

	long := strings.Repeat(strings.Repeat("x", 99)+"\n", 50)
	if err := bot.SendText(context.Background(), 7, long); err != nil {
		t.Fatalf("SendText() error: %v", err)
	}

	if len(api.sent) != 2 {
		t.Fatalf("expected message split in 2, got %d", len(api.sent))
	}
	if api.sent[0].Text+api.sent[1].Text != long {
		t.Error("split parts should reassemble to the original text")
	}
	if observer.ok != 1 || observer.failed != 0 {
		t.Errorf("unexpected observations: %+v", observer)
	}
}

func TestTelegramBot_SendText_Error(t *testing.T) {
	api := &fakeBotAPI{sendErr: errors.New("Forbidden: bot was blocked by the user")}
	observer := &fakeObserver{}
	bot := newTestBot(api, &fakeReports{})
	bot.SetObserver(observer)

	err := bot.SendText(context.Background(), 7, "hi")
	if err == nil || !errors.Is(err, api.sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
	if observer.failed != 1 {
		t.Errorf("expected a failed delivery observation, got %+v", observer)
	}
}

func TestTelegramBot_SendText_CancelledContext(t *testing.T) {
	api := &fakeBotAPI{}
	bot := newTestBot(api, &fakeReports{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bot.SendText(ctx, 7, "hi"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Error("nothing should be sent after cancellation")
	}
}

func TestTelegramBot_RegisterWebhook(t *testing.T) {
	api := &fakeBotAPI{}
	bot := newTestBot(api, &fakeReports{})

	if err := bot.RegisterWebhook("statsbot.example.app/"); err != nil {
		t.Fatalf("RegisterWebhook() error: %v", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(api.requests))
	}
	wh, ok := api.requests[0].(tgbotapi.WebhookConfig)
	if !ok {
		t.Fatalf("expected WebhookConfig, got %T", api.requests[0])
	}
	if got := wh.URL.String(); got != "https://statsbot.example.app/bot123:abc" {
		t.Errorf("webhook URL = %s", got)
	}

	if err := bot.RegisterWebhook(""); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestTelegramBot_Poll(t *testing.T) {
	api := &fakeBotAPI{
		updates: make(chan tgbotapi.Update, 1),
		onSend:  make(chan struct{}, 1),
	}
	bot := newTestBot(api, &fakeReports{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Poll(ctx) }()

	api.updates <- commandUpdate(5, "/getchatid")

	select {
	case <-api.onSend:
	case <-time.After(2 * time.Second):
		t.Fatal("command was not answered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Poll() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Poll did not return after cancel")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if !api.stopped {
		t.Error("expected StopReceivingUpdates on shutdown")
	}
	if _, ok := api.requests[0].(tgbotapi.DeleteWebhookConfig); !ok {
		t.Errorf("expected webhook removal before polling, got %T", api.requests[0])
	}
}

func TestSplitMessage(t *testing.T) {
	if got := SplitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text should not be split: %v", got)
	}

	got := SplitMessage("aaaa\nbbbb\ncccc", 10)
	want := []string{"aaaa\nbbbb\n", "cccc"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SplitMessage() = %q, want %q", got, want)
	}

	got = SplitMessage(strings.Repeat("é", 25), 10)
	if len(got) != 3 || got[2] != strings.Repeat("é", 5) {
		t.Errorf("long line should be hard split by runes, got %q", got)
	}
}

func TestSplitMessage_CountsUTF16Units(t *testing.T) {
	text := strings.Repeat("🔄 Trial\n", 600)

	parts := SplitMessage(text, MaxMessageLength)
	if len(parts) < 2 {
		t.Fatalf("expected the listing to be split, got %d part", len(parts))
	}
	for i, part := range parts {
		if n := len(utf16.Encode([]rune(part))); n > MaxMessageLength {
			t.Errorf("part %d is %d UTF-16 units, limit %d", i, n, MaxMessageLength)
		}
		if !strings.HasSuffix(part, "\n") {
			t.Errorf("part %d should end on a line boundary", i)
		}
	}
	if strings.Join(parts, "") != text {
		t.Error("parts should reassemble the original text")
	}

	// Surrogate pairs are never cut in half.
	got := SplitMessage(strings.Repeat("📊", 5), 4)
	want := []string{"📊📊", "📊📊", "📊"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("SplitMessage() = %q, want %q", got, want)
	}
}
