// Package notifier 는 새 포스트를 텔레그램 채널에 알린다.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"ai-blog/config"
	"ai-blog/httpclient"
	"ai-blog/models"
)

const (
	// 텔레그램 sendPhoto caption 최대 길이
	MaxCaptionLen = 1024
	// sendMessage text 최대 길이
	MaxMessageLen = 4096
)

var ErrNotConfigured = errors.New("telegram bot token or chat id is not set")

var markdownV2Escaper = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// EscapeMarkdownV2 는 텔레그램 MarkdownV2 특수문자를 백슬래시로 이스케이프한다.
func EscapeMarkdownV2(s string) string {
	return markdownV2Escaper.Replace(s)
}

// escapeLinkURL 은 MarkdownV2 링크의 (...) 안에서 필요한 이스케이프만 한다.
func escapeLinkURL(s string) string {
	return strings.NewReplacer(`\`, `\\`, ")", `\)`).Replace(s)
}

// Teaser 는 본문의 앞 n 단어에 "…" 를 붙인다. 마크다운 기호는 먼저 걷어낸다.
func Teaser(body string, n int) string {
	words := strings.Fields(stripMarkdown(body))
	if n <= 0 || len(words) == 0 {
		return ""
	}
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ") + "…"
}

func stripMarkdown(body string) string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#>-*| ")
		b.WriteString(line)
		b.WriteByte(' ')
	}
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(b.String())
}

type Telegram struct {
	cfg    config.TelegramConfig
	site   config.SiteConfig
	client *http.Client
}

func NewTelegram(cfg config.TelegramConfig, site config.SiteConfig, client *http.Client) *Telegram {
	if client == nil {
		client = httpclient.New(httpclient.Config{Timeout: cfg.Timeout})
	}
	return &Telegram{cfg: cfg, site: site, client: client}
}

func (t *Telegram) Enabled() bool {
	return t.cfg.BotToken != "" && t.cfg.ChatID != ""
}

// Message 는 limit 글자 안에 들어가도록 teaser 단어 수를 줄여가며 메시지를 만든다.
func (t *Telegram) Message(rec models.PostRecord, limit int) string {
	words := t.cfg.TeaserWords
	for {
		msg := t.compose(rec, Teaser(rec.Body, words))
		if utf8.RuneCountInString(msg) <= limit || words <= 0 {
			return msg
		}
		words--
	}
}

func (t *Telegram) compose(rec models.PostRecord, teaser string) string {
	parts := []string{"*" + EscapeMarkdownV2(t.cfg.Heading) + "*"}
	if title := strings.TrimSpace(rec.Title); title != "" {
		parts = append(parts, "*"+EscapeMarkdownV2(title)+"*")
	}
	if teaser != "" {
		parts = append(parts, EscapeMarkdownV2(teaser))
	}
	parts = append(parts, "["+EscapeMarkdownV2(t.cfg.LinkLabel)+"]("+escapeLinkURL(t.site.PostURL(rec.Slug))+")")
	if t.cfg.Hashtags != "" {
		parts = append(parts, EscapeMarkdownV2(t.cfg.Hashtags))
	}
	return strings.Join(parts, "\n\n")
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Notify 는 이미지가 있으면 sendPhoto(multipart) 로, SVG 이거나 이미지가 없으면 sendMessage 로 보낸다.
// 토큰이나 chat id 가 없으면 ErrNotConfigured 를 반환한다.
func (t *Telegram) Notify(ctx context.Context, rec models.PostRecord) error {
	if !t.Enabled() {
		return ErrNotConfigured
	}

	ext := strings.ToLower(rec.ImageExt())
	if rec.ImagePath == "" || ext == "svg" {
		return t.sendMessage(ctx, t.Message(rec, MaxMessageLen))
	}

	photo, err := os.ReadFile(rec.ImagePath)
	if err != nil {
		config.WarnWithFields("telegram photo unreadable, sending text only", config.Fields{"path": rec.ImagePath, "error": err.Error()})
		return t.sendMessage(ctx, t.Message(rec, MaxMessageLen))
	}
	return t.sendPhoto(ctx, t.Message(rec, MaxCaptionLen), filepath.Base(rec.ImagePath), photo)
}

func (t *Telegram) endpoint(method string) string {
	return strings.TrimRight(t.cfg.APIBase, "/") + "/bot" + t.cfg.BotToken + "/" + method
}

func (t *Telegram) sendPhoto(ctx context.Context, caption, filename string, photo []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("chat_id", t.cfg.ChatID)
	_ = mw.WriteField("caption", caption)
	_ = mw.WriteField("parse_mode", "MarkdownV2")
	fw, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(photo); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return t.post(ctx, "sendPhoto", mw.FormDataContentType(), &body)
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return err
	}
	return t.post(ctx, "sendMessage", "application/json", bytes.NewReader(payload))
}

func (t *Telegram) post(ctx context.Context, method, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(method), body)
	if err != nil {
		return fmt.Errorf("telegram %s: %s", method, httpclient.RedactURL(err.Error()))
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		// url.Error 메시지에 토큰이 포함된 URL 이 들어있다
		return fmt.Errorf("telegram %s: %s", method, httpclient.RedactURL(err.Error()))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var out apiResponse
	_ = json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, desc)
	}

	config.InfoWithFields("telegram notification sent", config.Fields{"method": method})
	return nil
}
