package telegram

import (
	"context"
	"errors"
	"fmt"

	"enhancebot/internal/domain"
	"enhancebot/internal/enhance"
)

// Notifier renders job progress and outcomes as HTML chat messages.
type Notifier struct {
	bot Messenger
}

func NewNotifier(bot Messenger) *Notifier {
	return &Notifier{bot: bot}
}

func (n *Notifier) Started(ctx context.Context, to enhance.Recipient) error {
	return n.send(ctx, to.ChatID, messagesFor(to.Locale).Enhancing)
}

func (n *Notifier) Succeeded(ctx context.Context, to enhance.Recipient, resultURL string) error {
	return n.send(ctx, to.ChatID, messagesFor(to.Locale).enhanced(resultURL))
}

// Failed sends the size-limit text for oversize photos and a generic error
// naming the cause otherwise.
func (n *Notifier) Failed(ctx context.Context, to enhance.Recipient, cause error) error {
	msgs := messagesFor(to.Locale)
	var oversize *domain.OversizeInputError
	if errors.As(cause, &oversize) {
		return n.send(ctx, to.ChatID, msgs.tooLarge(oversize.LimitMB()))
	}
	return n.send(ctx, to.ChatID, msgs.failure(cause))
}

func (n *Notifier) send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.bot.Send(htmlMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}

var _ enhance.Notifier = (*Notifier)(nil)
