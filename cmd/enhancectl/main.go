package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"enhancebot/internal/enhance"
	"enhancebot/internal/infra"
	"enhancebot/internal/infra/credentials"
	"enhancebot/internal/providers/remini"
	"enhancebot/internal/storage"
)

var (
	apiKey      string
	baseURL     string
	databaseURL string
	verbose     bool
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "enhancectl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enhancectl",
		Short: "Operator CLI for the photo enhancement bot",
		Long: `enhancectl runs the enhancement workflow against a local file, inspects remote
tasks, and stores provider credentials in the integration_tokens table.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("REMINI_API_KEY"), "Remini API key (falls back to the credential store)")
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", os.Getenv("REMINI_BASE_URL"), "Remini API base URL")
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres URL of the credential store")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log workflow steps to stderr")
	cmd.AddCommand(
		newEnhanceCmd(),
		newStatusCmd(),
		newSetKeyCmd(),
	)
	return cmd
}

func newEnhanceCmd() *cobra.Command {
	var (
		maxSizeMB   int
		maxAttempts int
		interval    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "enhance <file>",
		Short: "Enhance a local JPEG and print the result URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := cliLogger()
			client, err := newClient(ctx, logger)
			if err != nil {
				return err
			}
			spoolDir, err := os.MkdirTemp("", "enhancectl-")
			if err != nil {
				return err
			}
			defer os.RemoveAll(spoolDir)
			spool, err := storage.NewSpool(spoolDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			svc, err := enhance.NewService(enhance.Options{
				Remote: client,
				Poller: remini.NewPoller(client, remini.PollerOptions{
					MaxAttempts: maxAttempts,
					Interval:    interval,
					Logger:      logger,
				}),
				Assets:   spool,
				Source:   localSource{},
				Notifier: &printNotifier{out: out},
				MaxBytes: int64(maxSizeMB) * 1024 * 1024,
				Logger:   logger,
			})
			if err != nil {
				return err
			}

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			outcome := svc.Enhance(ctx, enhance.Request{
				AssetKey:     assetKey(path),
				FileRef:      path,
				DeclaredSize: info.Size(),
			})
			return outcome.Err
		},
	}
	cmd.Flags().IntVar(&maxSizeMB, "max-size-mb", 5, "Reject files larger than this many megabytes")
	cmd.Flags().IntVar(&maxAttempts, "poll-attempts", remini.DefaultPollAttempts, "Maximum status checks before giving up")
	cmd.Flags().DurationVar(&interval, "poll-interval", remini.DefaultPollInterval, "Delay between status checks")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the current state of a remote task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := newClient(ctx, cliLogger())
			if err != nil {
				return err
			}
			status, err := client.Status(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status.Status)
			if url := status.OutputURL(); url != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "output: %s\n", url)
			}
			return nil
		},
	}
}

func newSetKeyCmd() *cobra.Command {
	var provider, key string
	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store a provider credential in the integration_tokens table",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider = strings.ToLower(strings.TrimSpace(provider))
			if !credentials.ValidProvider(provider) {
				return fmt.Errorf("unsupported provider %q (want %s or %s)", provider, credentials.ProviderRemini, credentials.ProviderTelegram)
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("--key is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			logger := cliLogger()
			pool, err := infra.NewDBPool(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := credentials.NewStore(infra.NewSQLRunner(pool, *logger))
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := store.SetToken(ctx, provider, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s credential stored\n", provider)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", credentials.ProviderRemini, "Credential to store (remini or telegram)")
	cmd.Flags().StringVar(&key, "key", "", "Credential value")
	return cmd
}

func newClient(ctx context.Context, logger *infra.Logger) (*remini.Client, error) {
	var store *credentials.Store
	if strings.TrimSpace(apiKey) == "" && strings.TrimSpace(databaseURL) != "" {
		pool, err := infra.NewDBPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		store = credentials.NewStore(infra.NewSQLRunner(pool, *logger))
	}
	key, err := store.Resolve(ctx, credentials.ProviderRemini, apiKey)
	if err != nil {
		return nil, fmt.Errorf("load remini api key: %w", err)
	}
	if key == "" {
		return nil, remini.ErrMissingAPIKey
	}
	return remini.NewClient(remini.Options{APIKey: key, BaseURL: baseURL, Logger: logger})
}

func cliLogger() *infra.Logger {
	if !verbose {
		return infra.NopLogger()
	}
	l := infra.NewLogger("development").Output(consoleStderr())
	return &l
}

// assetKey derives a spool-safe identifier from the file name.
func assetKey(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "photo"
	}
	return b.String()
}
