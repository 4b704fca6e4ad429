package telegram

import (
	"fmt"
	"html"
	"strings"

	"golang.org/x/text/language"
)

// catalog holds the user-facing texts for one language. All texts are HTML.
type catalog struct {
	Welcome    string
	PhotosOnly string
	Enhancing  string
	TooLarge   string // %d: limit in MB
	Enhanced   string // %s: result URL
	Failure    string // %s: escaped cause
}

var catalogs = map[string]catalog{
	"en": {
		Welcome:    "<b>Welcome! I am a Smart Enhancer BOT. Please send me a photo to enhance.</b>",
		PhotosOnly: "<b>I am not allowed to receive text messages or emojis.\n\nPlease send only photos.</b>",
		Enhancing:  "<b>Enhancing your photo...</b>",
		TooLarge:   "<b>The file is too large! Please send a file smaller than %d MB.</b>",
		Enhanced:   "<b>Enhanced photo: </b> %s",
		Failure:    "<b>An error occurred: %s</b>",
	},
	"id": {
		Welcome:    "<b>Selamat datang! Saya Smart Enhancer BOT. Kirimkan foto untuk dipercantik.</b>",
		PhotosOnly: "<b>Saya tidak menerima pesan teks atau emoji.\n\nSilakan kirim foto saja.</b>",
		Enhancing:  "<b>Sedang memproses foto Anda...</b>",
		TooLarge:   "<b>Ukuran file terlalu besar! Kirim file yang lebih kecil dari %d MB.</b>",
		Enhanced:   "<b>Foto hasil: </b> %s",
		Failure:    "<b>Terjadi kesalahan: %s</b>",
	},
}

var (
	supportedTags = []language.Tag{language.English, language.Indonesian}
	tagLocales    = []string{"en", "id"}
	matcher       = language.NewMatcher(supportedTags)
)

// ResolveLocale maps a Telegram language_code onto a supported locale.
func ResolveLocale(code, fallback string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return normalizeFallback(fallback)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return normalizeFallback(fallback)
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence == language.No {
		return normalizeFallback(fallback)
	}
	return tagLocales[idx]
}

func normalizeFallback(fallback string) string {
	if _, ok := catalogs[fallback]; ok {
		return fallback
	}
	return "en"
}

func messagesFor(locale string) catalog {
	if c, ok := catalogs[locale]; ok {
		return c
	}
	return catalogs["en"]
}

func (c catalog) tooLarge(limitMB int64) string {
	return fmt.Sprintf(c.TooLarge, limitMB)
}

func (c catalog) enhanced(resultURL string) string {
	return fmt.Sprintf(c.Enhanced, html.EscapeString(resultURL))
}

func (c catalog) failure(cause error) string {
	return fmt.Sprintf(c.Failure, html.EscapeString(cause.Error()))
}
