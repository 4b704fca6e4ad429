package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"enhancebot/internal/enhance"
)

// Downloader copies a Telegram file to local disk.
type Downloader struct {
	bot        Messenger
	httpClient *http.Client
	maxBytes   int64
}

// NewDownloader returns a downloader that stops reading after maxBytes+1 bytes,
// enough for the workflow to see the photo is over the limit.
func NewDownloader(bot Messenger, httpClient *http.Client, maxBytes int64) *Downloader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{bot: bot, httpClient: httpClient, maxBytes: maxBytes}
}

func (d *Downloader) Fetch(ctx context.Context, fileRef, dst string) error {
	link, err := d.bot.GetFileDirectURL(fileRef)
	if err != nil {
		return fmt.Errorf("telegram: resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("telegram: build download request: %w", err)
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telegram: download status %d", resp.StatusCode)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("telegram: create asset: %w", err)
	}
	var body io.Reader = resp.Body
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	_, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return fmt.Errorf("telegram: write asset: %w", err)
	}
	return nil
}

var _ enhance.Source = (*Downloader)(nil)
