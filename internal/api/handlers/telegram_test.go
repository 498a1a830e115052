package handlers

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type mockUpdateProcessor struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
	done    chan struct{}
}

func (m *mockUpdateProcessor) ProcessUpdate(_ context.Context, update tgbotapi.Update) {
	m.mu.Lock()
	m.updates = append(m.updates, update)
	m.mu.Unlock()
	m.done <- struct{}{}
}

func setupWebhookRouter(p UpdateProcessor) http.Handler {
	r := newTestEngine()
	NewTelegramWebhookHandler(context.Background(), p, "123:abc", zerolog.Nop()).RegisterPublicRoutes(r)
	return r
}

func TestTelegramWebhookHandler(t *testing.T) {
	t.Run("accepts updates on the token path", func(t *testing.T) {
		p := &mockUpdateProcessor{done: make(chan struct{}, 1)}
		body := `{"update_id":7,"message":{"message_id":1,"text":"/stats","chat":{"id":-100555,"type":"group"}}}`

		w := doRequest(setupWebhookRouter(p), "POST", "/bot123:abc", body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		select {
		case <-p.done:
		case <-time.After(2 * time.Second):
			t.Fatal("update was not processed")
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.updates[0].UpdateID != 7 || p.updates[0].Message.Chat.ID != -100555 {
			t.Errorf("unexpected update: %+v", p.updates[0])
		}
	})

	t.Run("wrong token is not found", func(t *testing.T) {
		p := &mockUpdateProcessor{done: make(chan struct{}, 1)}
		w := doRequest(setupWebhookRouter(p), "POST", "/bot999:zzz", `{"update_id":1}`)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}
		if len(p.updates) != 0 {
			t.Error("update should not be processed")
		}
	})

	t.Run("invalid payload", func(t *testing.T) {
		p := &mockUpdateProcessor{done: make(chan struct{}, 1)}
		w := doRequest(setupWebhookRouter(p), "POST", "/bot123:abc", `{not json`)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})
}
