package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"enhancebot/internal/dedupe"
	"enhancebot/internal/enhance"
	"enhancebot/internal/infra"
	"enhancebot/internal/metrics"
)

const keyboardRowWidth = 2

// JobRunner runs one enhancement job to its terminal outcome.
type JobRunner interface {
	Enhance(ctx context.Context, req enhance.Request) enhance.Outcome
}

type DispatcherOptions struct {
	Bot           Messenger
	Jobs          JobRunner
	Guard         dedupe.Guard
	WelcomeImage  string
	WelcomeLinks  []infra.Link
	DefaultLocale string
	Metrics       *metrics.Metrics
	Logger        *infra.Logger
}

// Dispatcher routes chat updates to their handlers. Photo messages each start
// an independent job goroutine bound to the dispatcher's base context.
type Dispatcher struct {
	ctx           context.Context
	bot           Messenger
	jobs          JobRunner
	guard         dedupe.Guard
	welcomeImage  string
	welcomeLinks  []infra.Link
	defaultLocale string
	metrics       *metrics.Metrics
	logger        *infra.Logger
	wg            sync.WaitGroup
}

func NewDispatcher(ctx context.Context, opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Bot == nil {
		return nil, errors.New("telegram: bot is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("telegram: job runner is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Dispatcher{
		ctx:           ctx,
		bot:           opts.Bot,
		jobs:          opts.Jobs,
		guard:         opts.Guard,
		welcomeImage:  opts.WelcomeImage,
		welcomeLinks:  opts.WelcomeLinks,
		defaultLocale: opts.DefaultLocale,
		metrics:       opts.Metrics,
		logger:        logger,
	}, nil
}

// Handle processes one update. It returns quickly: photo jobs run in the
// background and can be awaited with Wait.
func (d *Dispatcher) Handle(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		d.metrics.ObserveUpdate("ignored")
		return
	}
	if !d.firstDelivery(update.UpdateID) {
		d.metrics.ObserveUpdate("duplicate")
		d.logger.Debug().Int("update_id", update.UpdateID).Msg("telegram: duplicate update skipped")
		return
	}

	locale := d.defaultLocale
	if msg.From != nil {
		locale = ResolveLocale(msg.From.LanguageCode, d.defaultLocale)
	}

	switch {
	case msg.IsCommand() && msg.Command() == "start":
		d.metrics.ObserveUpdate("start")
		d.sendWelcome(msg.Chat.ID, locale)
	case len(msg.Photo) > 0:
		d.metrics.ObserveUpdate("photo")
		d.startJob(msg, locale)
	default:
		d.metrics.ObserveUpdate("other")
		d.reply(msg.Chat.ID, messagesFor(locale).PhotosOnly, nil)
	}
}

// Wait blocks until every started job has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) firstDelivery(updateID int) bool {
	if d.guard == nil {
		return true
	}
	first, err := d.guard.First(d.ctx, fmt.Sprintf("update:%d", updateID))
	if err != nil {
		d.logger.Warn().Err(err).Int("update_id", updateID).Msg("telegram: dedupe check failed, processing update")
		return true
	}
	return first
}

func (d *Dispatcher) startJob(msg *tgbotapi.Message, locale string) {
	// Telegram lists photo sizes in ascending order; the last is the original.
	photo := msg.Photo[len(msg.Photo)-1]
	req := enhance.Request{
		Recipient:    enhance.Recipient{ChatID: msg.Chat.ID, Locale: locale},
		AssetKey:     photo.FileUniqueID,
		FileRef:      photo.FileID,
		DeclaredSize: int64(photo.FileSize),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().Interface("panic", r).Int64("chat_id", req.Recipient.ChatID).Msg("telegram: job panicked")
			}
		}()
		d.jobs.Enhance(d.ctx, req)
	}()
}

func (d *Dispatcher) sendWelcome(chatID int64, locale string) {
	if d.welcomeImage != "" {
		if _, err := os.Stat(d.welcomeImage); err == nil {
			if _, err := d.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(d.welcomeImage))); err != nil {
				d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: send welcome image failed")
			}
		} else {
			d.logger.Warn().Err(err).Str("path", d.welcomeImage).Msg("telegram: welcome image unavailable")
		}
	}
	d.reply(chatID, messagesFor(locale).Welcome, welcomeKeyboard(d.welcomeLinks))
}

func (d *Dispatcher) reply(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := htmlMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if _, err := d.bot.Send(msg); err != nil {
		d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram: reply failed")
	}
}

func welcomeKeyboard(links []infra.Link) *tgbotapi.InlineKeyboardMarkup {
	if len(links) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for start := 0; start < len(links); start += keyboardRowWidth {
		end := start + keyboardRowWidth
		if end > len(links) {
			end = len(links)
		}
		var row []tgbotapi.InlineKeyboardButton
		for _, link := range links[start:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(link.Label, link.URL))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
