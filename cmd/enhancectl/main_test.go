package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"enhancebot/internal/enhance"
)

func TestAssetKey(t *testing.T) {
	tests := map[string]string{
		"/tmp/holiday.jpg":      "holiday",
		"me & you (1).jpeg":     "me___you__1_",
		"/x/.jpg":               "photo",
		"already-safe_name.jpg": "already-safe_name",
	}
	for in, want := range tests {
		if got := assetKey(in); got != want {
			t.Fatalf("assetKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLocalSourceCopiesFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.jpg")
	if err := os.WriteFile(src, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := filepath.Join(dir, "out.jpg")
	if err := (localSource{}).Fetch(context.Background(), src, dst); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "jpeg-bytes" {
		t.Fatalf("copied = %q", data)
	}
	if err := (localSource{}).Fetch(context.Background(), filepath.Join(dir, "missing.jpg"), dst); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPrintNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &printNotifier{out: &buf}
	ctx := context.Background()
	_ = n.Started(ctx, enhance.Recipient{})
	_ = n.Succeeded(ctx, enhance.Recipient{}, "https://x/y.jpg")
	_ = n.Failed(ctx, enhance.Recipient{}, errors.New("boom"))

	want := "enhancing...\nenhanced: https://x/y.jpg\nfailed: boom\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestSetKeyRejectsUnknownProvider(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"set-key", "--provider", "openai", "--key", "x"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Fatalf("err = %v", err)
	}
}

func TestEnhanceRequiresFileArgument(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"enhance"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected argument error")
	}
}
