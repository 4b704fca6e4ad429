package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"enhancebot/internal/enhance"
)

// localSource treats the file reference as a path on disk.
type localSource struct{}

func (localSource) Fetch(ctx context.Context, fileRef, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(fileRef)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	return errors.Join(copyErr, out.Close())
}

// printNotifier writes job progress to the terminal.
type printNotifier struct {
	out io.Writer
}

func (p *printNotifier) Started(ctx context.Context, to enhance.Recipient) error {
	_, err := fmt.Fprintln(p.out, "enhancing...")
	return err
}

func (p *printNotifier) Succeeded(ctx context.Context, to enhance.Recipient, resultURL string) error {
	_, err := fmt.Fprintf(p.out, "enhanced: %s\n", resultURL)
	return err
}

func (p *printNotifier) Failed(ctx context.Context, to enhance.Recipient, cause error) error {
	_, err := fmt.Fprintf(p.out, "failed: %v\n", cause)
	return err
}

func consoleStderr() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
}
