package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"enhancebot/internal/infra"
	"enhancebot/internal/sqlinline"
)

const (
	ProviderRemini   = "remini"
	ProviderTelegram = "telegram"
)

// Store reads and writes provider credentials kept in integration_tokens. It is
// only consulted when the matching environment variable is empty.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// ValidProvider reports whether provider names a credential the bot uses.
func ValidProvider(provider string) bool {
	switch provider {
	case ProviderRemini, ProviderTelegram:
		return true
	}
	return false
}

func (s *Store) ReminiAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderRemini)
}

func (s *Store) TelegramToken(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderTelegram)
}

// Token returns the stored token, or an empty string when none exists.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// SetToken upserts the token for provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	if !ValidProvider(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s token is required", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "enhancectl"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

// Resolve prefers the explicit value and falls back to the store.
func (s *Store) Resolve(ctx context.Context, provider, explicit string) (string, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// EnsureSchema creates the integration_tokens table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QEnsureIntegrationTokens); err != nil {
		return fmt.Errorf("ensure integration_tokens: %w", err)
	}
	return nil
}
