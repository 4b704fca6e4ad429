package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateSource is the long-polling side of the Bot API.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RunPolling feeds long-polled updates to the dispatcher until ctx is done or
// the channel closes. No update is dispatched once ctx is done.
func RunPolling(ctx context.Context, src UpdateSource, d *Dispatcher, timeoutSeconds int) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	updates := src.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				src.StopReceivingUpdates()
				return
			}
			d.Handle(update)
		}
	}
}

// StartPolling runs RunPolling in the background. The returned stop function
// cancels polling and returns only after the loop has exited, so no job can be
// started once it returns.
func StartPolling(ctx context.Context, src UpdateSource, d *Dispatcher, timeoutSeconds int) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunPolling(ctx, src, d, timeoutSeconds)
	}()
	return func() {
		cancel()
		<-done
	}
}
