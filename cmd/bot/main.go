package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"enhancebot/internal/dedupe"
	"enhancebot/internal/enhance"
	"enhancebot/internal/http/handlers"
	httpapi "enhancebot/internal/http/httpapi"
	"enhancebot/internal/infra"
	"enhancebot/internal/infra/credentials"
	"enhancebot/internal/metrics"
	"enhancebot/internal/providers/remini"
	"enhancebot/internal/storage"
	"enhancebot/internal/telegram"
)

const pollingTimeoutSeconds = 60

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger); err != nil {
		logger.Fatal().Err(err).Msg("bot stopped with error")
	}
	logger.Info().Msg("bot stopped")
}

func run(ctx context.Context, cfg *infra.Config, logger *infra.Logger) error {
	store, closeDB, err := openCredentialStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	telegramToken, err := store.Resolve(ctx, credentials.ProviderTelegram, cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("load telegram token: %w", err)
	}
	if telegramToken == "" {
		return errors.New("telegram token is not configured")
	}
	reminiKey, err := store.Resolve(ctx, credentials.ProviderRemini, cfg.ReminiAPIKey)
	if err != nil {
		return fmt.Errorf("load remini api key: %w", err)
	}
	if reminiKey == "" {
		logger.Warn().Msg("REMINI_API_KEY not configured; every job will fail at task creation")
	}

	if err := telegram.UseLogger(logger); err != nil {
		logger.Warn().Err(err).Msg("telegram: library logger not installed")
	}
	bot, err := tgbotapi.NewBotAPI(telegramToken)
	if err != nil {
		return fmt.Errorf("telegram: authorize bot: %w", err)
	}
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram: authorized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	client, err := remini.NewClient(remini.Options{
		APIKey:        reminiKey,
		BaseURL:       cfg.ReminiBaseURL,
		HTTPClient:    &http.Client{Timeout: 2 * time.Minute},
		UploadTimeout: cfg.ReminiUploadTimeout,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	poller := remini.NewPoller(client, remini.PollerOptions{
		MaxAttempts: cfg.PollMaxAttempts,
		Interval:    cfg.PollInterval,
		Logger:      logger,
	})
	spool, err := storage.NewSpool(cfg.SpoolDir)
	if err != nil {
		return err
	}

	svc, err := enhance.NewService(enhance.Options{
		Remote:   client,
		Poller:   poller,
		Assets:   spool,
		Source:   telegram.NewDownloader(bot, nil, cfg.MaxPhotoSizeBytes()),
		Notifier: telegram.NewNotifier(bot),
		MaxBytes: cfg.MaxPhotoSizeBytes(),
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	guard, closeGuard := newGuard(ctx, cfg, logger)
	defer closeGuard()

	// Jobs outlive the signal context so they can finish within the grace period.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	dispatcher, err := telegram.NewDispatcher(jobCtx, telegram.DispatcherOptions{
		Bot:           bot,
		Jobs:          svc,
		Guard:         guard,
		WelcomeImage:  cfg.WelcomeImagePath,
		WelcomeLinks:  cfg.WelcomeLinks,
		DefaultLocale: cfg.DefaultLocale,
		Metrics:       m,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	stopPolling := func() {}
	webhookMode := cfg.WebhookURL != ""
	webhookPath := ""
	if webhookMode {
		webhookPath = cfg.WebhookPath
	}
	app := handlers.NewApp(dispatcher, cfg.WebhookSecret, reg, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, webhookPath, *logger))

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr()).Bool("webhook", webhookMode).Msg("http listening")
		serverErr <- server.Start()
	}()

	if webhookMode {
		if err := registerWebhook(bot, cfg); err != nil {
			return err
		}
		logger.Info().Str("url", webhookTarget(cfg)).Msg("telegram: webhook registered")
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warn().Err(err).Msg("telegram: delete webhook failed")
		}
		logger.Info().Msg("telegram: long polling")
		stopPolling = telegram.StartPolling(ctx, bot, dispatcher, pollingTimeoutSeconds)
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	// Both intake paths must be closed before waiting on the dispatcher.
	stopPolling()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("grace period over; cancelling in-flight jobs")
		cancelJobs()
		finalCtx, finalCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer finalCancel()
		_ = dispatcher.Wait(finalCtx)
	}
	return nil
}

// openCredentialStore connects to Postgres when DATABASE_URL is set. A nil
// store is valid and resolves only explicit values.
func openCredentialStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*credentials.Store, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, func() {}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return credentials.NewStore(infra.NewSQLRunner(pool, *logger)), pool.Close, nil
}

func newGuard(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (dedupe.Guard, func()) {
	if cfg.RedisAddr == "" {
		return dedupe.NewMemoryGuard(cfg.DedupeTTL), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable; using in-memory update dedupe")
		_ = rdb.Close()
		return dedupe.NewMemoryGuard(cfg.DedupeTTL), func() {}
	}
	guard, err := dedupe.NewRedisGuard(rdb, "enhancebot:", cfg.DedupeTTL)
	if err != nil {
		_ = rdb.Close()
		return dedupe.NewMemoryGuard(cfg.DedupeTTL), func() {}
	}
	return guard, func() { _ = rdb.Close() }
}

func webhookTarget(cfg *infra.Config) string {
	return strings.TrimRight(cfg.WebhookURL, "/") + cfg.WebhookPath
}

// registerWebhook calls setWebhook directly so the secret token can be sent
// along with the URL.
func registerWebhook(bot *tgbotapi.BotAPI, cfg *infra.Config) error {
	params := tgbotapi.Params{"url": webhookTarget(cfg)}
	params.AddNonEmpty("secret_token", cfg.WebhookSecret)
	resp, err := bot.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("telegram: set webhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("telegram: set webhook: %s", resp.Description)
	}
	return nil
}
