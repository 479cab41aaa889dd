package telegram

import (
	"context"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	h      *Handlers
	logger *zap.Logger
}

// NewAPI authenticates against Telegram.
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return api, nil
}

// NewBot wires handlers to the API. With a webhook URL the webhook is
// registered; without one any existing webhook is removed so long polling works.
func NewBot(api *tgbotapi.BotAPI, h *Handlers, webhookURL string, log *zap.Logger) (*Bot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "telegram"))
	if webhookURL != "" {
		webhook, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			return nil, err
		}
		if _, err := api.Request(webhook); err != nil {
			return nil, err
		}
		log.Info("webhook set", zap.String("url", webhookURL))
	} else {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return nil, err
		}
		log.Info("webhook cleared, using long polling")
	}
	return &Bot{api: api, h: h, logger: log}, nil
}

// Webhook HTTP handler (registered at /telegram/webhook)
func (b *Bot) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update", http.StatusBadRequest)
		return
	}
	if update.Message != nil {
		b.logger.Debug("webhook update", zap.Int("update_id", update.UpdateID), zap.Int("text_len", len(update.Message.Text)))
		go b.h.HandleMessage(update.Message)
	} else {
		b.logger.Debug("webhook: non-message update received", zap.Int("update_id", update.UpdateID))
	}
	w.WriteHeader(http.StatusOK)
}

// Poll receives updates by long polling until ctx is cancelled.
func (b *Bot) Poll(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("long polling started", zap.String("bot", b.api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("long polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				go b.h.HandleMessage(update.Message)
			}
		}
	}
}
