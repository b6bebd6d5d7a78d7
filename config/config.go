package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ai-blog/models"
)

const ENV_FILE = ".env"
const CONFIG_FILE = "config.yaml"

type AppConfig struct {
	Logging        LoggingConfig    `yaml:"logging"`
	Site           SiteConfig       `yaml:"site"`
	Generation     GenerationConfig `yaml:"generation"`
	Topics         TopicsConfig     `yaml:"topics"`
	TextProviders  []ProviderConfig `yaml:"text_providers"`
	ImageProviders []ProviderConfig `yaml:"image_providers"`
	Telegram       TelegramConfig   `yaml:"telegram"`
	Schedule       ScheduleConfig   `yaml:"schedule"`
	Server         ServerConfig     `yaml:"server"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Output 은 "stderr"(기본) 또는 "stdout" 이다.
	Output string `yaml:"output"`
}

// SiteConfig 는 정적 사이트 루트 기준의 경로들을 정의한다.
// 모든 디렉터리 값은 Root 에 대한 상대 경로이며, *URLPrefix 는 사이트 내부 URL 이다.
type SiteConfig struct {
	Root             string `yaml:"root"`
	BaseURL          string `yaml:"base_url"`
	PostsDir         string `yaml:"posts_dir"`
	ImagesDir        string `yaml:"images_dir"`
	ImageURLPrefix   string `yaml:"image_url_prefix"`
	MirrorDir        string `yaml:"mirror_dir"`
	GalleryDir       string `yaml:"gallery_dir"`
	GalleryURLPrefix string `yaml:"gallery_url_prefix"`
	GalleryManifest  string `yaml:"gallery_manifest"`
	ArticlesIndex    string `yaml:"articles_index"`
	PagesDir         string `yaml:"pages_dir"`
	LockFile         string `yaml:"lock_file"`
}

// GenerationConfig 는 한 번의 실행에서 사용하는 생성/검증 한도를 정의한다.
type GenerationConfig struct {
	// Language 는 기사 본문의 대상 언어이다. (ru, en)
	Language string `yaml:"language"`

	// MinBodyChars 는 본문의 공백 제외 최소 글자 수이다.
	MinBodyChars int `yaml:"min_body_chars"`

	// MaxImageBytes 는 허용하는 이미지 파일 최대 크기이다.
	MaxImageBytes int64 `yaml:"max_image_bytes"`

	ImageWidth  int `yaml:"image_width"`
	ImageHeight int `yaml:"image_height"`

	// KeepPosts 는 retention sweeper 가 남겨둘 최신 포스트 수이다.
	KeepPosts int `yaml:"keep_posts"`

	Tags        []string `yaml:"tags"`
	Categories  []string `yaml:"categories"`
	GalleryTags []string `yaml:"gallery_tags"`
	PostType    string   `yaml:"post_type"`

	// ErrorMarkers 는 본문에 포함되면 provider 오류 메시지로 간주하는 문자열 목록이다.
	ErrorMarkers []string `yaml:"error_markers"`

	// BannedPatterns 는 본문에 매칭되면 검증 실패로 처리하는 정규식 목록이다.
	BannedPatterns []string `yaml:"banned_patterns"`

	LockStaleAfter time.Duration `yaml:"lock_stale_after"`
}

type TopicsConfig struct {
	Curated       []string      `yaml:"curated"`
	Feeds         []string      `yaml:"feeds"`
	FeedItemLimit int           `yaml:"feed_item_limit"`
	MaxCandidates int           `yaml:"max_candidates"`
	FeedTimeout   time.Duration `yaml:"feed_timeout"`
}

// ProviderConfig is the YAML form of a remote text or image provider.
// API keys are never stored here, only the name of the environment variable holding them.
type ProviderConfig struct {
	Name              string            `yaml:"name"`
	Shape             string            `yaml:"shape"`
	Endpoint          string            `yaml:"endpoint"`
	APIKeyEnv         string            `yaml:"api_key_env"`
	AuthScheme        string            `yaml:"auth_scheme"`
	AuthHeader        string            `yaml:"auth_header"`
	Model             string            `yaml:"model"`
	MaxOutput         int               `yaml:"max_output"`
	Temperature       float64           `yaml:"temperature"`
	Timeout           time.Duration     `yaml:"timeout"`
	Headers           map[string]string `yaml:"headers"`
	AllowedSizes      []string          `yaml:"allowed_sizes"`
	Retries           int               `yaml:"retries"`
	RetryDelay        time.Duration     `yaml:"retry_delay"`
	RequestsPerMinute int               `yaml:"requests_per_minute"`
	RequestsPerDay    int               `yaml:"requests_per_day"`
	Disabled          bool              `yaml:"disabled"`
}

type TelegramConfig struct {
	BotToken    string        `yaml:"-"`
	ChatID      string        `yaml:"-"`
	APIBase     string        `yaml:"api_base"`
	Heading     string        `yaml:"heading"`
	LinkLabel   string        `yaml:"link_label"`
	Hashtags    string        `yaml:"hashtags"`
	TeaserWords int           `yaml:"teaser_words"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hour     int    `yaml:"hour"`
	Timezone string `yaml:"timezone"`
	Count    int    `yaml:"count"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxCount 는 한 번의 트리거로 요청할 수 있는 최대 포스트 수이다.
	MaxCount int `yaml:"max_count"`
	// TriggerToken 이 있으면 POST /api/v1/runs 에 Bearer 토큰이 필요하다. (TRIGGER_TOKEN)
	TriggerToken string `yaml:"-"`
}

// Load 는 basePath 의 .env 와 config.yaml 을 읽어 AppConfig 를 만든다.
// config.yaml 이 없으면 Default() 를 기반으로 환경변수만 반영한다.
func Load(basePath string) (AppConfig, error) {
	// .env 는 선택 사항이다. 없으면 무시한다.
	_ = godotenv.Load(filepath.Join(basePath, ENV_FILE))

	c := Default()
	data, err := os.ReadFile(filepath.Join(basePath, CONFIG_FILE))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return AppConfig{}, fmt.Errorf("parse %s: %w", CONFIG_FILE, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return AppConfig{}, fmt.Errorf("read %s: %w", CONFIG_FILE, err)
	}

	if c.Site.Root == "" {
		c.Site.Root = basePath
	} else if !filepath.IsAbs(c.Site.Root) {
		c.Site.Root = filepath.Join(basePath, c.Site.Root)
	}

	c.applyEnv()
	c.fillDefaults()
	return c, nil
}

func (c *AppConfig) applyEnv() {
	if v := os.Getenv("SITE_ROOT"); v != "" {
		c.Site.Root = v
	}
	if v := os.Getenv("SITE_URL"); v != "" {
		c.Site.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		c.Logging.Output = v
	}
	c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	c.Server.TriggerToken = os.Getenv("TRIGGER_TOKEN")
}

// fillDefaults 는 YAML 에서 비워둔 값들을 기본값으로 채운다.
func (c *AppConfig) fillDefaults() {
	d := Default()

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Output == "" {
		c.Logging.Output = d.Logging.Output
	}

	s := &c.Site
	setString(&s.PostsDir, d.Site.PostsDir)
	setString(&s.ImagesDir, d.Site.ImagesDir)
	setString(&s.ImageURLPrefix, d.Site.ImageURLPrefix)
	setString(&s.MirrorDir, d.Site.MirrorDir)
	setString(&s.GalleryDir, d.Site.GalleryDir)
	setString(&s.GalleryURLPrefix, d.Site.GalleryURLPrefix)
	setString(&s.GalleryManifest, d.Site.GalleryManifest)
	setString(&s.ArticlesIndex, d.Site.ArticlesIndex)
	setString(&s.LockFile, d.Site.LockFile)
	setString(&s.BaseURL, d.Site.BaseURL)

	g := &c.Generation
	setString(&g.Language, d.Generation.Language)
	setString(&g.PostType, d.Generation.PostType)
	if g.MinBodyChars <= 0 {
		g.MinBodyChars = d.Generation.MinBodyChars
	}
	if g.MaxImageBytes <= 0 {
		g.MaxImageBytes = d.Generation.MaxImageBytes
	}
	if g.ImageWidth <= 0 || g.ImageHeight <= 0 {
		g.ImageWidth, g.ImageHeight = d.Generation.ImageWidth, d.Generation.ImageHeight
	}
	if g.KeepPosts <= 0 {
		g.KeepPosts = d.Generation.KeepPosts
	}
	if g.LockStaleAfter <= 0 {
		g.LockStaleAfter = d.Generation.LockStaleAfter
	}
	if len(g.Tags) == 0 {
		g.Tags = d.Generation.Tags
	}
	if len(g.Categories) == 0 {
		g.Categories = d.Generation.Categories
	}
	if len(g.GalleryTags) == 0 {
		g.GalleryTags = d.Generation.GalleryTags
	}
	if g.ErrorMarkers == nil {
		g.ErrorMarkers = d.Generation.ErrorMarkers
	}

	t := &c.Topics
	if t.MaxCandidates <= 0 {
		t.MaxCandidates = d.Topics.MaxCandidates
	}
	if t.FeedItemLimit <= 0 {
		t.FeedItemLimit = d.Topics.FeedItemLimit
	}
	if t.FeedTimeout <= 0 {
		t.FeedTimeout = d.Topics.FeedTimeout
	}
	if len(t.Curated) == 0 {
		t.Curated = d.Topics.Curated
	}

	tg := &c.Telegram
	setString(&tg.APIBase, d.Telegram.APIBase)
	setString(&tg.Heading, d.Telegram.Heading)
	setString(&tg.LinkLabel, d.Telegram.LinkLabel)
	setString(&tg.Hashtags, d.Telegram.Hashtags)
	if tg.TeaserWords <= 0 {
		tg.TeaserWords = d.Telegram.TeaserWords
	}
	if tg.Timeout <= 0 {
		tg.Timeout = d.Telegram.Timeout
	}

	setString(&c.Schedule.Timezone, d.Schedule.Timezone)
	if c.Schedule.Count <= 0 {
		c.Schedule.Count = 1
	}
	setString(&c.Server.Addr, d.Server.Addr)
	if c.Server.MaxCount <= 0 {
		c.Server.MaxCount = d.Server.MaxCount
	}

	for i := range c.TextProviders {
		c.TextProviders[i].fillDefaults()
	}
	for i := range c.ImageProviders {
		c.ImageProviders[i].fillDefaults()
	}
}

func (p *ProviderConfig) fillDefaults() {
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	if p.AuthScheme == "" {
		p.AuthScheme = models.AuthBearer
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = 5 * time.Second
	}
}

func setString(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}

// Validate 는 실행 전에 설정의 명백한 오류를 검사한다.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Site.Root == "" {
		errs = append(errs, errors.New("site.root is empty"))
	}
	if c.Generation.MinBodyChars <= 0 {
		errs = append(errs, errors.New("generation.min_body_chars must be positive"))
	}
	seen := map[string]bool{}
	for _, p := range append(append([]ProviderConfig{}, c.TextProviders...), c.ImageProviders...) {
		if p.Name == "" {
			errs = append(errs, errors.New("provider without name"))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate provider name %q", p.Name))
		}
		seen[p.Name] = true
		if p.Endpoint == "" && p.Shape != models.ShapeGemini {
			errs = append(errs, fmt.Errorf("provider %s: endpoint is empty", p.Name))
		}
	}
	return errors.Join(errs...)
}

// Descriptors 는 설정된 provider 들을 우선순위 순서대로 런타임 descriptor 로 변환한다.
// API 키는 이 시점에 환경변수에서 읽는다.
func (c AppConfig) Descriptors(kind models.ProviderKind) []models.ProviderDescriptor {
	src := c.TextProviders
	if kind == models.KindImage {
		src = c.ImageProviders
	}
	out := make([]models.ProviderDescriptor, 0, len(src))
	for _, p := range src {
		if p.Disabled {
			continue
		}
		out = append(out, p.Descriptor(kind))
	}
	return out
}

func (p ProviderConfig) Descriptor(kind models.ProviderKind) models.ProviderDescriptor {
	var apiKey string
	if p.APIKeyEnv != "" {
		apiKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
	}
	sizes := make([]models.Size, 0, len(p.AllowedSizes))
	for _, s := range p.AllowedSizes {
		if sz, err := models.ParseSize(s); err == nil {
			sizes = append(sizes, sz)
		}
	}
	return models.ProviderDescriptor{
		Kind:              kind,
		Name:              p.Name,
		Shape:             p.Shape,
		Endpoint:          p.Endpoint,
		APIKey:            apiKey,
		AuthScheme:        p.AuthScheme,
		AuthHeader:        p.AuthHeader,
		Model:             p.Model,
		MaxOutput:         p.MaxOutput,
		Temperature:       p.Temperature,
		Timeout:           p.Timeout,
		Headers:           p.Headers,
		AllowedSizes:      sizes,
		Retries:           p.Retries,
		RetryDelay:        p.RetryDelay,
		RequestsPerMinute: p.RequestsPerMinute,
		RequestsPerDay:    p.RequestsPerDay,
	}
}

// Path 는 사이트 루트 기준 상대 경로를 절대 경로로 변환한다.
func (s SiteConfig) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// PostURL 은 포스트의 공개 URL 을 만든다.
func (s SiteConfig) PostURL(slug string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/posts/" + slug + "/"
}

func GetBasePath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		cfgPath := filepath.Join(dir, CONFIG_FILE)
		if info, err := os.Stat(cfgPath); err == nil && !info.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return cwd
}
