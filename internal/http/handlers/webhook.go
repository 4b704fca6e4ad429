package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SecretHeader carries the secret_token registered with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxUpdateBytes = 1 << 20

// Webhook accepts one update per request and acknowledges it before any
// enhancement work happens.
func (a *App) Webhook(w http.ResponseWriter, r *http.Request) {
	if a.WebhookSecret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.WebhookSecret)) != 1 {
			a.json(w, http.StatusUnauthorized, map[string]string{"error": "invalid secret token"})
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		a.Logger.Warn().Err(err).Msg("webhook: malformed update")
		a.json(w, http.StatusBadRequest, map[string]string{"error": "malformed update"})
		return
	}

	a.Updates.Handle(update)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
