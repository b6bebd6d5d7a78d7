package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ai-blog/config"
	"ai-blog/content"
	"ai-blog/feeder"
	"ai-blog/fsutil"
	"ai-blog/gallery"
	"ai-blog/httpclient"
	"ai-blog/models"
	"ai-blog/notifier"
	"ai-blog/orchestrator"
	"ai-blog/providers"
	"ai-blog/renderer"
	"ai-blog/sweeper"
	"ai-blog/topics"
)

// 실행 단계 이름. 로그와 RunReport 에 그대로 남는다.
const (
	StageLock     = "lock"
	StageTopics   = "topics"
	StageGenerate = "generate"
	StageWrite    = "write"
	StageGallery  = "gallery"
	StageSweep    = "sweep"
	StageSite     = "site"
	StageNotify   = "notify"
)

var (
	ErrRunInProgress   = errors.New("a generation run is already in progress")
	ErrNoPostGenerated = errors.New("no post generated")
)

// StageError 는 실패한 단계와 원인을 함께 보관한다.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

type TopicPicker interface {
	Pick(ctx context.Context, count int) ([]models.Topic, error)
}

type Generator interface {
	Generate(ctx context.Context, topic models.Topic) (orchestrator.Result, error)
}

type PostWriter interface {
	Write(rec models.PostRecord) (string, error)
}

type GalleryUpdater interface {
	Update(rec models.PostRecord) (models.GalleryItem, error)
}

type SiteBuilder interface {
	Rebuild(now time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, rec models.PostRecord) error
}

// PostReport 는 주제 하나에 대한 처리 결과이다.
type PostReport struct {
	Topic         string           `json:"topic"`
	Slug          string           `json:"slug,omitempty"`
	Path          string           `json:"path,omitempty"`
	Author        string           `json:"author,omitempty"`
	ImageProvider string           `json:"image_provider,omitempty"`
	ImageRef      string           `json:"image_ref,omitempty"`
	Stage         string           `json:"failed_stage,omitempty"`
	Error         string           `json:"error,omitempty"`
	Notified      bool             `json:"notified"`
	Attempts      []models.Attempt `json:"attempts"`
}

type RunReport struct {
	ID         string       `json:"id"`
	Requested  int          `json:"requested"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Posts      []PostReport `json:"posts"`
	Removed    []string     `json:"removed,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Deps 는 GenerationService 가 한 실행에서 사용하는 구성 요소들이다.
// Site, Notifier 는 nil 이어도 된다.
type Deps struct {
	Topics    TopicPicker
	Generator Generator
	Writer    PostWriter
	Gallery   GalleryUpdater
	Site      SiteBuilder
	Notifier  Notifier

	PostsDir       string
	KeepPosts      int
	LockPath       string
	LockStaleAfter time.Duration

	Sweep func(dir string, keep int) ([]string, error)
	Now   func() time.Time
}

// GenerationService 는 주제 선택부터 알림까지 한 번의 실행을 순서대로 진행한다.
// 포스트 쓰기 -> 갤러리 -> sweeper -> 사이트 인덱스 -> 알림 순서를 지킨다.
type GenerationService struct {
	deps    Deps
	running atomic.Bool

	mu   sync.Mutex
	last *RunReport
}

func NewGenerationService(deps Deps) *GenerationService {
	if deps.Sweep == nil {
		deps.Sweep = sweeper.Sweep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &GenerationService{deps: deps}
}

// NewGenerationServiceFromConfig 는 설정으로 실제 provider, 피드, 파일 기반 구성 요소를 조립한다.
func NewGenerationServiceFromConfig(cfg config.AppConfig) (*GenerationService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := httpclient.NewDefault()
	text, err := providers.NewTextProviders(cfg, client)
	if err != nil {
		return nil, err
	}
	images, err := providers.NewImageProviders(cfg, client)
	if err != nil {
		return nil, err
	}
	ocfg, err := orchestrator.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	site := cfg.Site
	var notify Notifier
	if tg := notifier.NewTelegram(cfg.Telegram, site, nil); tg.Enabled() {
		notify = tg
	} else {
		config.Log.Info("telegram notifier disabled: TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
	}

	feeds := feeder.New(httpclient.New(httpclient.Config{Timeout: cfg.Topics.FeedTimeout}))

	return NewGenerationService(Deps{
		Topics:         topics.NewSource(cfg.Topics, feeds),
		Generator:      orchestrator.New(ocfg, text, images),
		Writer:         content.NewWriter(site.Path(site.PostsDir)),
		Gallery:        gallery.NewUpdater(cfg),
		Site:           renderer.New(site, cfg.Generation.Language),
		Notifier:       notify,
		PostsDir:       site.Path(site.PostsDir),
		KeepPosts:      cfg.Generation.KeepPosts,
		LockPath:       site.Path(site.LockFile),
		LockStaleAfter: cfg.Generation.LockStaleAfter,
	}), nil
}

func (s *GenerationService) Running() bool {
	return s.running.Load()
}

// LastRun 은 가장 최근에 끝난 실행의 보고서를 반환한다.
func (s *GenerationService) LastRun() (RunReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RunReport{}, false
	}
	return *s.last, true
}

// RunOnce 는 count 개의 포스트 생성을 시도한다.
// 하나 이상 성공하면 nil 을 반환하고, 쓰기 실패(WriteFailed)는 즉시 실행을 중단한다.
// 같은 프로세스에서 이미 실행 중이면 ErrRunInProgress, 다른 프로세스가 잠금을 갖고 있으면 fsutil.ErrLocked 이다.
func (s *GenerationService) RunOnce(ctx context.Context, count int) (RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunReport{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	if count <= 0 {
		count = 1
	}
	report := RunReport{
		ID:        uuid.NewString(),
		Requested: count,
		StartedAt: s.deps.Now().UTC(),
	}

	err := s.run(ctx, count, &report)
	report.FinishedAt = s.deps.Now().UTC()
	if err != nil {
		report.Error = err.Error()
	}
	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()

	fields := config.Fields{
		"run_id":    report.ID,
		"requested": report.Requested,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"elapsed":   report.FinishedAt.Sub(report.StartedAt).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		config.ErrorWithFields("generation run failed", fields)
	} else {
		config.InfoWithFields("generation run finished", fields)
	}
	return report, err
}

func (s *GenerationService) run(ctx context.Context, count int, report *RunReport) error {
	lock, err := fsutil.AcquireLock(s.deps.LockPath, s.deps.LockStaleAfter)
	if err != nil {
		return &StageError{Stage: StageLock, Err: err}
	}
	defer func() {
		if err := lock.Release(); err != nil {
			config.WarnWithFields("failed to release run lock", config.Fields{"path": s.deps.LockPath, "error": err.Error()})
		}
	}()

	// 금지 주제로 건너뛰는 후보가 있을 수 있으므로 여유 있게 받는다.
	candidates, err := s.deps.Topics.Pick(ctx, count*3)
	if err != nil {
		return &StageError{Stage: StageTopics, Err: err}
	}

	var published []models.PostRecord
	for _, topic := range candidates {
		if len(published)+report.Failed >= count {
			break
		}
		if err := ctx.Err(); err != nil {
			return &StageError{Stage: StageGenerate, Err: err}
		}

		pr := PostReport{Topic: topic.Title}
		rec, abort := s.produce(ctx, topic, &pr, report)
		if errors.Is(abort, topics.ErrTopicInvalid) {
			config.WarnWithFields("topic skipped", config.Fields{"topic": topic.Title, "error": abort.Error()})
			report.Posts = append(report.Posts, pr)
			continue
		}
		report.Posts = append(report.Posts, pr)
		if abort != nil {
			report.Failed++
			var se *StageError
			if fatal(abort) {
				return abort
			}
			if errors.As(abort, &se) {
				config.ErrorWithFields("post failed", config.Fields{"topic": topic.Title, "stage": se.Stage, "error": se.Err.Error()})
			}
			continue
		}
		report.Succeeded++
		published = append(published, rec)
	}

	if len(published) == 0 {
		return ErrNoPostGenerated
	}

	if s.deps.Site != nil {
		if err := s.deps.Site.Rebuild(s.deps.Now()); err != nil {
			config.WarnWithFields("site index rebuild failed", config.Fields{"stage": StageSite, "error": err.Error()})
		}
	}

	if s.deps.Notifier != nil {
		for _, rec := range published {
			if err := s.deps.Notifier.Notify(ctx, rec); err != nil {
				config.WarnWithFields("notification failed", config.Fields{"stage": StageNotify, "slug": rec.Slug, "error": err.Error()})
				continue
			}
			markNotified(report, rec.Slug)
		}
	}
	return nil
}

// produce 는 주제 하나를 생성 -> 쓰기 -> 갤러리 -> sweeper 까지 진행한다.
func (s *GenerationService) produce(ctx context.Context, topic models.Topic, pr *PostReport, report *RunReport) (models.PostRecord, error) {
	res, err := s.deps.Generator.Generate(ctx, topic)
	pr.Attempts = res.Attempts
	if err != nil {
		return fail(pr, StageGenerate, err)
	}
	rec := res.Record
	pr.Slug = rec.Slug
	pr.Author = rec.AuthorTag
	pr.ImageProvider = rec.ImageProvider
	pr.ImageRef = rec.ImageRef

	path, err := s.deps.Writer.Write(rec)
	if err != nil {
		return fail(pr, StageWrite, err)
	}
	pr.Path = path
	config.InfoWithFields("post written", config.Fields{"path": path, "author": rec.AuthorTag})

	if _, err := s.deps.Gallery.Update(rec); err != nil {
		return fail(pr, StageGallery, err)
	}

	removed, err := s.deps.Sweep(s.deps.PostsDir, s.deps.KeepPosts)
	report.Removed = append(report.Removed, removed...)
	if err != nil {
		// 쓰기는 끝났으므로 pr.Path 는 남겨 둔다.
		return fail(pr, StageSweep, err)
	}
	return rec, nil
}

// fatal 은 남은 주제를 진행하지 않고 실행 전체를 멈춰야 하는 오류인지 판단한다.
// 보존 정리 실패도 쓰기 실패처럼 다음 실행 전에 운영자가 손봐야 한다.
func fatal(err error) bool {
	var se *StageError
	if errors.As(err, &se) && se.Stage == StageSweep {
		return true
	}
	return errors.Is(err, content.ErrWriteFailed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func fail(pr *PostReport, stage string, err error) (models.PostRecord, error) {
	pr.Stage = stage
	pr.Error = err.Error()
	if errors.Is(err, topics.ErrTopicInvalid) {
		return models.PostRecord{}, err
	}
	return models.PostRecord{}, &StageError{Stage: stage, Err: err}
}

func markNotified(report *RunReport, slug string) {
	for i := range report.Posts {
		if report.Posts[i].Slug == slug {
			report.Posts[i].Notified = true
		}
	}
}
