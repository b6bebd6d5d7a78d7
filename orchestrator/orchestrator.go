// Package orchestrator 는 주제 하나를 텍스트 provider 체인과 이미지 provider 체인에 차례로 통과시켜
// 검증된 PostRecord 를 조립한다.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ai-blog/config"
	"ai-blog/content"
	"ai-blog/fsutil"
	"ai-blog/models"
	"ai-blog/placeholder"
	"ai-blog/providers"
	"ai-blog/topics"
)

// PlaceholderProvider 는 배너를 로컬에서 그린 경우의 이미지 provider 이름이다.
const PlaceholderProvider = "Placeholder"

const descriptionLen = 150

// Config 는 오케스트레이터가 쓰는 설정 값만 모은 것이다.
type Config struct {
	Language       string
	MinBodyChars   int
	MaxImageBytes  int64
	ImageWidth     int
	ImageHeight    int
	ErrorMarkers   []string
	BannedPatterns []*regexp.Regexp
	Tags           []string
	Categories     []string
	PostType       string
	PostsDir       string
	ImagesDir      string
	ImageURLPrefix string
}

// ConfigFrom 은 AppConfig 에서 오케스트레이터 설정을 만든다. 금지 패턴 정규식이 잘못되면 오류이다.
func ConfigFrom(cfg config.AppConfig) (Config, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.Generation.BannedPatterns))
	for _, p := range cfg.Generation.BannedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return Config{}, fmt.Errorf("banned pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	g := cfg.Generation
	return Config{
		Language:       g.Language,
		MinBodyChars:   g.MinBodyChars,
		MaxImageBytes:  g.MaxImageBytes,
		ImageWidth:     g.ImageWidth,
		ImageHeight:    g.ImageHeight,
		ErrorMarkers:   g.ErrorMarkers,
		BannedPatterns: patterns,
		Tags:           g.Tags,
		Categories:     g.Categories,
		PostType:       g.PostType,
		PostsDir:       cfg.Site.Path(cfg.Site.PostsDir),
		ImagesDir:      cfg.Site.Path(cfg.Site.ImagesDir),
		ImageURLPrefix: cfg.Site.ImageURLPrefix,
	}, nil
}

type Orchestrator struct {
	cfg         Config
	text        []providers.TextProvider
	images      []providers.ImageProvider
	now         func() time.Time
	placeholder func(topic, path string) error
}

type Option func(*Orchestrator)

// WithClock 은 게시 시각과 slug 날짜 접미사에 쓰는 시계를 바꾼다.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithPlaceholder replaces the placeholder renderer.
func WithPlaceholder(render func(topic, path string) error) Option {
	return func(o *Orchestrator) { o.placeholder = render }
}

// New 는 우선순위 순서대로 정렬된 provider 목록으로 오케스트레이터를 만든다.
func New(cfg Config, text []providers.TextProvider, images []providers.ImageProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		text:        text,
		images:      images,
		now:         time.Now,
		placeholder: placeholder.Render,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result 는 조립된 포스트와 그 과정의 provider 시도 기록이다.
type Result struct {
	Record   models.PostRecord
	Attempts []models.Attempt
}

// Generate 는 텍스트 체인 -> 이미지 체인 -> 조립 순서로 진행한다.
//
// 텍스트 provider 는 설정 순서대로 시도하고, 오류나 검증 실패는 다음 provider 로 넘어간다.
// 모두 실패하면 로컬 템플릿 본문을 쓴다. 이미지도 같은 방식이며 마지막은 placeholder 이다.
// 이미지 파일은 <ImagesDir>/<slug>.<ext> 에 원자적으로 저장된다.
// 반환된 Record 는 항상 본문과 image_ref 를 가진다. 그럴 수 없으면 오류를 반환한다.
func (o *Orchestrator) Generate(ctx context.Context, topic models.Topic) (Result, error) {
	var res Result

	title := strings.TrimSpace(topic.Title)
	if title == "" {
		return res, fmt.Errorf("%w: empty topic", topics.ErrTopicInvalid)
	}
	for _, re := range o.cfg.BannedPatterns {
		if re.MatchString(title) || re.MatchString(topic.Brief) {
			return res, fmt.Errorf("%w: topic matches banned pattern %q", topics.ErrTopicInvalid, re.String())
		}
	}
	topic.Title = title

	body, author, attempts, err := o.generateText(ctx, topic)
	res.Attempts = append(res.Attempts, attempts...)
	if err != nil {
		return res, err
	}

	now := o.now().UTC()
	slug := content.UniqueSlug(o.cfg.PostsDir, content.Slugify(title), now)

	imagePath, imageProvider, attempts, err := o.generateImage(ctx, topic, slug)
	res.Attempts = append(res.Attempts, attempts...)
	if err != nil {
		return res, err
	}

	res.Record = models.PostRecord{
		Title:         title,
		Slug:          slug,
		PublishedAt:   now,
		Body:          body,
		ImageRef:      strings.TrimRight(o.cfg.ImageURLPrefix, "/") + "/" + filepath.Base(imagePath),
		ImagePath:     imagePath,
		ImageProvider: imageProvider,
		AuthorTag:     author,
		Tags:          append([]string(nil), o.cfg.Tags...),
		Categories:    append([]string(nil), o.cfg.Categories...),
		Description:   content.Describe(body, descriptionLen),
		Type:          o.cfg.PostType,
	}

	config.InfoWithFields("post assembled", config.Fields{
		"slug":           slug,
		"author":         author,
		"image_provider": imageProvider,
		"image_ref":      res.Record.ImageRef,
	})
	return res, nil
}

func (o *Orchestrator) generateText(ctx context.Context, topic models.Topic) (string, string, []models.Attempt, error) {
	var attempts []models.Attempt

	prompt, err := ArticlePrompt(o.cfg.Language, topic)
	if err != nil {
		return "", "", nil, err
	}

	for _, p := range o.text {
		if err := ctx.Err(); err != nil {
			return "", "", attempts, err
		}
		started := time.Now()
		logTrying(models.KindText, p.Name(), topic.Title)

		raw, err := p.GenerateText(ctx, prompt, 0)
		var body string
		if err == nil {
			body, err = o.validateText(raw)
		}
		attempt := finishAttempt(models.KindText, p.Name(), started, err)
		attempts = append(attempts, attempt)
		if err != nil {
			logFailed(attempt)
			continue
		}
		logSucceeded(attempt)
		return body, p.Name(), attempts, nil
	}

	config.WarnWithFields("all text providers failed, using local fallback", config.Fields{"topic": topic.Title})
	// 로컬 본문은 검증하지 않는다. 주제에 오류 마커 문구가 있어도 항상 성공한다.
	body := NormalizeMarkdown(LocalFallbackText(o.cfg.Language, topic.Title, o.cfg.MinBodyChars))
	attempts = append(attempts, models.Attempt{
		Kind: models.KindText, Provider: FallbackAuthor, Succeeded: true, StartedAt: time.Now().UTC(),
	})
	return body, FallbackAuthor, attempts, nil
}

func (o *Orchestrator) generateImage(ctx context.Context, topic models.Topic, slug string) (string, string, []models.Attempt, error) {
	var attempts []models.Attempt

	prompt, err := ImagePrompt(topic)
	if err != nil {
		return "", "", nil, err
	}

	for _, p := range o.images {
		if err := ctx.Err(); err != nil {
			return "", "", attempts, err
		}
		started := time.Now()
		logTrying(models.KindImage, p.Name(), topic.Title)

		img, err := p.GenerateImage(ctx, prompt, o.cfg.ImageWidth, o.cfg.ImageHeight)
		if err == nil {
			img, err = o.validateImage(img)
		}
		attempt := finishAttempt(models.KindImage, p.Name(), started, err)
		attempts = append(attempts, attempt)
		if err != nil {
			logFailed(attempt)
			continue
		}

		path := filepath.Join(o.cfg.ImagesDir, slug+"."+img.Ext)
		if err := fsutil.WriteFileAtomic(path, img.Data, 0o644); err != nil {
			return "", "", attempts, fmt.Errorf("%w: image %s: %v", content.ErrWriteFailed, path, err)
		}
		logSucceeded(attempt)
		return path, p.Name(), attempts, nil
	}

	config.WarnWithFields("all image providers failed, rendering placeholder", config.Fields{"topic": topic.Title})
	path := filepath.Join(o.cfg.ImagesDir, slug+"."+placeholder.Ext)
	if err := o.placeholder(topic.Title, path); err != nil {
		return "", "", attempts, fmt.Errorf("%w: placeholder %s: %v", content.ErrWriteFailed, path, err)
	}
	attempts = append(attempts, models.Attempt{
		Kind: models.KindImage, Provider: PlaceholderProvider, Succeeded: true, StartedAt: time.Now().UTC(),
	})
	return path, PlaceholderProvider, attempts, nil
}

func finishAttempt(kind models.ProviderKind, name string, started time.Time, err error) models.Attempt {
	a := models.Attempt{
		Kind:       kind,
		Provider:   name,
		Succeeded:  err == nil,
		DurationMs: time.Since(started).Milliseconds(),
		StartedAt:  started.UTC(),
	}
	if err != nil {
		a.Error = err.Error()
		a.ErrorKind = string(providers.KindOf(err))
		if a.ErrorKind == "" && errors.Is(err, ErrValidationFailed) {
			a.ErrorKind = "ValidationFailed"
		}
	}
	return a
}

func logTrying(kind models.ProviderKind, name, topic string) {
	config.InfoWithFields("trying provider", config.Fields{"kind": kind, "provider": name, "topic": topic})
}

func logFailed(a models.Attempt) {
	config.WarnWithFields("provider failed", config.Fields{
		"kind":        a.Kind,
		"provider":    a.Provider,
		"error_kind":  a.ErrorKind,
		"error":       a.Error,
		"duration_ms": a.DurationMs,
	})
}

func logSucceeded(a models.Attempt) {
	config.InfoWithFields("provider succeeded", config.Fields{
		"kind":        a.Kind,
		"provider":    a.Provider,
		"duration_ms": a.DurationMs,
	})
}
