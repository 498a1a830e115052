package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/MacJediWizard/statsbot/internal/httpclient"
	"github.com/MacJediWizard/statsbot/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MaxMessageLength is Telegram's limit for a single text message.
const MaxMessageLength = 4096

// defaultPollTimeout is the long polling timeout in seconds.
const defaultPollTimeout = 60

// ChannelTelegram labels Telegram deliveries in metrics.
const ChannelTelegram = "telegram"

// BotAPI is the subset of the Telegram client used by TelegramBot.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// ReportSource renders the reports the bot answers commands with.
type ReportSource interface {
	StatsMessage(ctx context.Context, trigger models.Trigger) string
	NewUsersMessage(ctx context.Context, trigger models.Trigger) string
}

// DeliveryObserver receives delivery outcomes.
type DeliveryObserver interface {
	ObserveDelivery(channel string, success bool)
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	Token       string
	ChatID      int64
	WebhookURL  string
	PollTimeout int
	// Proxy and NoProxy configure the Bot API client, see httpclient.Options.
	Proxy   string
	NoProxy string
}

// ValidateTelegramConfig validates the Telegram configuration.
func ValidateTelegramConfig(config *TelegramConfig) error {
	if config.Token == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	return nil
}

// WebhookPath is the HTTP path Telegram posts updates to.
func WebhookPath(token string) string {
	return "/bot" + token
}

// TelegramBot delivers reports to Telegram chats and answers chat commands.
type TelegramBot struct {
	api      BotAPI
	config   TelegramConfig
	reports  ReportSource
	observer DeliveryObserver
	logger   zerolog.Logger
}

// NewTelegramBot connects to the Bot API and creates a bot.
func NewTelegramBot(config TelegramConfig, reports ReportSource, logger zerolog.Logger) (*TelegramBot, error) {
	if err := ValidateTelegramConfig(&config); err != nil {
		return nil, err
	}

	if config.PollTimeout <= 0 {
		config.PollTimeout = defaultPollTimeout
	}
	clientOpts := httpclient.Options{
		Timeout: time.Duration(config.PollTimeout+30) * time.Second,
		Proxy:   config.Proxy,
		NoProxy: config.NoProxy,
	}
	client, err := httpclient.New(clientOpts)
	if err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPIWithClient(config.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}

	bot := NewTelegramBotWithAPI(api, config, reports, logger)
	bot.logger.Info().
		Str("username", api.Self.UserName).
		Str("proxy", httpclient.ProxyInfo(clientOpts)).
		Msg("telegram bot authorized")
	return bot, nil
}

// NewTelegramBotWithAPI creates a bot over an existing client.
func NewTelegramBotWithAPI(api BotAPI, config TelegramConfig, reports ReportSource, logger zerolog.Logger) *TelegramBot {
	if config.PollTimeout <= 0 {
		config.PollTimeout = defaultPollTimeout
	}
	return &TelegramBot{
		api:     api,
		config:  config,
		reports: reports,
		logger:  logger.With().Str("component", "telegram_bot").Logger(),
	}
}

// SetObserver sets the delivery observer.
func (b *TelegramBot) SetObserver(o DeliveryObserver) {
	b.observer = o
}

// SendText sends text to a chat, split into as many messages as needed.
func (b *TelegramBot) SendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range SplitMessage(text, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.observe(false)
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	b.observe(true)

	b.logger.Debug().Int64("chat_id", chatID).Int("length", len(text)).Msg("message sent")
	return nil
}

func (b *TelegramBot) observe(success bool) {
	if b.observer != nil {
		b.observer.ObserveDelivery(ChannelTelegram, success)
	}
}

// ProcessUpdate answers a single incoming update. Non-command messages are ignored.
func (b *TelegramBot) ProcessUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	chatID := msg.Chat.ID
	command := msg.Command()
	logger := b.logger.With().Int64("chat_id", chatID).Str("command", command).Logger()

	var reply string
	switch command {
	case "getchatid":
		reply = fmt.Sprintf("Your chat ID is: %d", chatID)
	case "newusers":
		reply = b.reports.NewUsersMessage(ctx, models.TriggerCommand)
	case "stats", "start":
		reply = b.reports.StatsMessage(ctx, models.TriggerCommand)
	default:
		return
	}

	logger.Info().Msg("command received")

	if err := b.SendText(ctx, chatID, reply); err != nil {
		logger.Error().Err(err).Msg("failed to answer command")
	}
}

// Poll receives updates by long polling until ctx is cancelled.
func (b *TelegramBot) Poll(ctx context.Context) error {
	// getUpdates is refused while a webhook is registered.
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("polling for telegram updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info().Msg("stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.ProcessUpdate(ctx, update)
		}
	}
}

// RegisterWebhook points Telegram at baseURL + WebhookPath(token).
func (b *TelegramBot) RegisterWebhook(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + WebhookPath(b.config.Token))
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	b.logger.Info().Str("host", wh.URL.Host).Msg("telegram webhook registered")
	return nil
}

// SplitMessage splits text into chunks of at most limit UTF-16 code units,
// the unit Telegram measures message length in, preferring line boundaries.
func SplitMessage(text string, limit int) []string {
	if utf16Len(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf16Len(line)
		if curLen+n > limit {
			flush()
		}
		if n <= limit {
			cur.WriteString(line)
			curLen += n
			continue
		}
		// A single line over the limit is cut between runes.
		for _, r := range line {
			w := utf16.RuneLen(r)
			if w < 0 {
				w = 1
			}
			if curLen+w > limit {
				flush()
			}
			cur.WriteRune(r)
			curLen += w
		}
	}
	flush()

	return parts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if w := utf16.RuneLen(r); w > 0 {
			n += w
		} else {
			n++
		}
	}
	return n
}
