package handlers

import (
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"enhancebot/internal/infra"
)

// UpdateHandler consumes one decoded chat update. It must return quickly.
type UpdateHandler interface {
	Handle(update tgbotapi.Update)
}

type App struct {
	Updates       UpdateHandler
	WebhookSecret string
	Gatherer      prometheus.Gatherer
	Logger        *infra.Logger
}

func NewApp(updates UpdateHandler, webhookSecret string, gatherer prometheus.Gatherer, logger *infra.Logger) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &App{Updates: updates, WebhookSecret: webhookSecret, Gatherer: gatherer, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
