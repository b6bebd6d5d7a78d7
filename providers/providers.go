// Package providers 는 원격 텍스트/이미지 생성 서비스를 두 가지 공통 연산으로 감싼다.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-blog/config"
	"ai-blog/models"
	"ai-blog/quota"
)

// TextProvider 는 프롬프트로 마크다운 본문을 만든다.
type TextProvider interface {
	Name() string
	GenerateText(ctx context.Context, prompt string, maxOutput int) (string, error)
}

// ImageProvider 는 프롬프트로 배너 이미지를 만든다.
type ImageProvider interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string, width, height int) (Image, error)
}

// Image 는 생성된 이미지 바이트와 내용으로 판별한 확장자(점 없음)이다.
type Image struct {
	Data []byte
	Ext  string
}

const maxResponseBytes = 32 << 20

// base 는 어댑터 공통 처리(자격 증명, 한도, 재시도, 인증 헤더)를 담는다.
type base struct {
	desc    models.ProviderDescriptor
	client  *http.Client
	limiter *quota.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func newBase(d models.ProviderDescriptor, client *http.Client) base {
	if client == nil {
		client = http.DefaultClient
	}
	return base{
		desc:    d,
		client:  client,
		limiter: quota.ForProvider(d),
		sleep:   sleepCtx,
	}
}

func (b *base) Name() string { return b.desc.Name }

// precheck 는 네트워크 호출 전에 키와 한도를 확인한다.
func (b *base) precheck(ctx context.Context) error {
	if b.desc.AuthScheme != models.AuthNone && b.desc.APIKey == "" {
		return newError(KindMissingCredential, b.desc.Name, fmt.Errorf("no API key configured"))
	}
	ok, err := b.limiter.WaitAndReserve(ctx)
	if err != nil {
		return newError(KindTransport, b.desc.Name, err)
	}
	if !ok {
		return newError(KindQuotaExhausted, b.desc.Name, fmt.Errorf("daily limit reached"))
	}
	return nil
}

func (b *base) authorize(req *http.Request) {
	switch b.desc.AuthScheme {
	case models.AuthNone:
	case models.AuthHeader:
		header := b.desc.AuthHeader
		if header == "" {
			header = "x-api-key"
		}
		req.Header.Set(header, b.desc.APIKey)
	default:
		req.Header.Set("Authorization", "Bearer "+b.desc.APIKey)
	}
	for k, v := range b.desc.Headers {
		req.Header.Set(k, v)
	}
}

type response struct {
	Status int
	Header http.Header
	Body   []byte
}

// send 는 요청을 보내고 2xx 응답 바디를 돌려준다.
// 429/503 은 desc.Retries 번까지 RetryDelay 간격으로 재시도하고, 그 외 non-2xx 는 바로 분류해서 반환한다.
// 매 시도마다 desc.Timeout 이 별도로 적용된다.
func (b *base) send(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (response, error) {
	for attempt := 0; ; attempt++ {
		res, err := b.sendOnce(ctx, build)
		if err != nil {
			return response{}, err
		}
		if res.Status >= 200 && res.Status < 300 {
			return res, nil
		}
		if retryable(res.Status) && attempt < b.desc.Retries {
			config.WarnWithFields("provider busy, retrying", config.Fields{
				"provider": b.desc.Name,
				"status":   res.Status,
				"attempt":  attempt + 1,
				"delay":    b.desc.RetryDelay.String(),
			})
			if err := b.sleep(ctx, b.desc.RetryDelay); err != nil {
				return response{}, newError(KindTransport, b.desc.Name, err)
			}
			continue
		}
		return response{}, statusError(b.desc.Name, res.Status, res.Body)
	}
}

func (b *base) sendOnce(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (response, error) {
	callCtx := ctx
	if b.desc.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.desc.Timeout)
		defer cancel()
	}

	req, err := build(callCtx)
	if err != nil {
		return response{}, newError(KindTransport, b.desc.Name, err)
	}
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return response{}, newError(KindTransport, b.desc.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, newError(KindTransport, b.desc.Name, fmt.Errorf("read body: %w", err))
	}
	return response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var refusalMarkers = []string{
	"content_policy",
	"content_filter",
	"safety",
	"nsfw",
	"moderation",
	"flagged",
}

func looksLikeRefusal(s string) bool {
	s = strings.ToLower(s)
	for _, m := range refusalMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// NewTextProviders 는 설정 순서대로 텍스트 어댑터를 만든다.
func NewTextProviders(cfg config.AppConfig, client *http.Client) ([]TextProvider, error) {
	var out []TextProvider
	for _, d := range cfg.Descriptors(models.KindText) {
		switch d.Shape {
		case models.ShapeChatCompletion, "":
			out = append(out, NewChatCompletion(d, client))
		case models.ShapeGemini:
			out = append(out, NewGemini(d, client))
		default:
			return nil, fmt.Errorf("text provider %s: unsupported shape %q", d.Name, d.Shape)
		}
	}
	return out, nil
}

// NewImageProviders 는 설정 순서대로 이미지 어댑터를 만든다.
func NewImageProviders(cfg config.AppConfig, client *http.Client) ([]ImageProvider, error) {
	var out []ImageProvider
	for _, d := range cfg.Descriptors(models.KindImage) {
		switch d.Shape {
		case models.ShapeHFTextToImage:
			out = append(out, NewHuggingFace(d, client))
		case models.ShapeClipDrop:
			out = append(out, NewClipDrop(d, client))
		case models.ShapeOpenAIImages:
			out = append(out, NewOpenAIImages(d, client))
		default:
			return nil, fmt.Errorf("image provider %s: unsupported shape %q", d.Name, d.Shape)
		}
	}
	return out, nil
}

var errEmptyContent = errors.New("empty content")
