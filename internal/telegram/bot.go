package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"enhancebot/internal/infra"
)

// Messenger is the slice of the Bot API the bot uses. *tgbotapi.BotAPI
// satisfies it.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

var _ Messenger = (*tgbotapi.BotAPI)(nil)

func htmlMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

// apiLogger routes the Bot API library's own log lines through zerolog.
type apiLogger struct {
	l *infra.Logger
}

func (a apiLogger) Println(v ...interface{}) {
	a.l.Debug().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (a apiLogger) Printf(format string, v ...interface{}) {
	a.l.Debug().Msgf(format, v...)
}

// UseLogger installs logger as the Bot API library logger.
func UseLogger(logger *infra.Logger) error {
	return tgbotapi.SetLogger(apiLogger{l: logger})
}
