package topics

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"ai-blog/config"
	"ai-blog/feeder"
	"ai-blog/models"
	"ai-blog/parser"
)

const (
	MinLen   = 15
	MaxLen   = 120
	briefLen = 200
)

var ErrTopicInvalid = errors.New("topic invalid")

var (
	tagPattern = regexp.MustCompile(`<[^>]*>`)
	urlPattern = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
)

const allowedPunct = " -,.:;!?'\"()«»–—"

// Normalize 는 후보 문자열을 정리하고 주제 형태 조건을 확인한다.
// HTML 엔티티 해제, 태그/URL 제거, 라틴·키릴 문자와 숫자, 기본 문장부호 이외 문자 제거 후
// 길이가 MinLen..MaxLen (rune 기준) 이어야 한다.
func Normalize(raw string) (string, error) {
	s := html.UnescapeString(raw)
	s = tagPattern.ReplaceAllString(s, " ")
	s = urlPattern.ReplaceAllString(s, " ")

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.In(r, unicode.Latin, unicode.Cyrillic), unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(allowedPunct, r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	s = strings.Join(strings.Fields(b.String()), " ")
	s = strings.Trim(s, " -,.:;–—")

	n := utf8.RuneCountInString(s)
	if n < MinLen || n > MaxLen {
		return "", fmt.Errorf("%w: length %d outside %d..%d: %q", ErrTopicInvalid, n, MinLen, MaxLen, s)
	}
	if !hasLetter(s) {
		return "", fmt.Errorf("%w: no letters: %q", ErrTopicInvalid, s)
	}
	return s, nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// FeedFetcher 는 피드 항목을 가져오는 의존성이다. feeder.Fetcher 가 구현한다.
type FeedFetcher interface {
	FetchRssFeeds(ctx context.Context, url string, limit int) ([]feeder.RssFeedItem, error)
}

// Source 는 내장 큐레이션 목록과 피드에서 주제 후보를 만든다.
type Source struct {
	cfg     config.TopicsConfig
	fetcher FeedFetcher
	rng     *rand.Rand
}

func NewSource(cfg config.TopicsConfig, fetcher FeedFetcher) *Source {
	return &Source{
		cfg:     cfg,
		fetcher: fetcher,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

// WithRand 는 셔플 순서를 고정하고 싶을 때(테스트) 사용한다.
func (s *Source) WithRand(rng *rand.Rand) *Source {
	s.rng = rng
	return s
}

// Candidates 는 피드 후보 다음에 큐레이션 후보를 붙여, 대소문자 무시 중복 제거 후 최대 n 개를 반환한다.
// 형태 조건을 통과하지 못한 후보는 건너뛴다. 피드 오류는 로그만 남긴다.
func (s *Source) Candidates(ctx context.Context, n int) []models.Topic {
	seen := map[string]bool{}
	var out []models.Topic
	add := func(t models.Topic) bool {
		key := strings.ToLower(t.Title)
		if seen[key] {
			return true
		}
		seen[key] = true
		out = append(out, t)
		return n <= 0 || len(out) < n
	}

	for _, t := range s.feedTopics(ctx) {
		if !add(t) {
			return out
		}
	}
	for _, raw := range s.cfg.Curated {
		title, err := Normalize(raw)
		if err != nil {
			config.DebugWithFields("curated topic skipped", config.Fields{"topic": raw, "error": err.Error()})
			continue
		}
		if !add(models.Topic{Title: title, Source: "curated"}) {
			return out
		}
	}
	return out
}

func (s *Source) feedTopics(ctx context.Context) []models.Topic {
	if s.fetcher == nil || len(s.cfg.Feeds) == 0 {
		return nil
	}
	var out []models.Topic
	for _, url := range s.cfg.Feeds {
		fctx := ctx
		var cancel context.CancelFunc = func() {}
		if s.cfg.FeedTimeout > 0 {
			fctx, cancel = context.WithTimeout(ctx, s.cfg.FeedTimeout)
		}
		items, err := s.fetcher.FetchRssFeeds(fctx, url, s.cfg.FeedItemLimit)
		cancel()
		if err != nil {
			config.WarnWithFields("feed fetch failed", config.Fields{"feed": url, "error": err.Error()})
			continue
		}
		for _, item := range items {
			title, err := Normalize(item.Title)
			if err != nil {
				continue
			}
			out = append(out, models.Topic{
				Title:  title,
				Brief:  parser.Brief(item.Description, briefLen),
				Source: url,
			})
		}
	}
	return out
}

// Pick 은 후보를 섞어서 count 개를 고른다. 후보가 부족하면 있는 만큼 반환한다.
func (s *Source) Pick(ctx context.Context, count int) ([]models.Topic, error) {
	if count <= 0 {
		count = 1
	}
	candidates := s.Candidates(ctx, s.cfg.MaxCandidates)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no topic candidates", ErrTopicInvalid)
	}
	s.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if count > len(candidates) {
		count = len(candidates)
	}
	return candidates[:count], nil
}
