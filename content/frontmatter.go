package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"ai-blog/models"
)

const fmDelimiter = "---"

// FrontMatter 는 포스트 파일 머리의 메타데이터이다. 필드 순서가 곧 출력 키 순서이다.
type FrontMatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Image       string   `yaml:"image"`
	Draft       bool     `yaml:"draft"`
	Tags        []string `yaml:"tags"`
	Categories  []string `yaml:"categories"`
	Author      string   `yaml:"author"`
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
}

var ErrNoFrontMatter = errors.New("frontmatter block not found")

// EscapeValue 는 frontmatter 스칼라 값에 적용하는 단일 정규화 규칙이다.
// 개행 제거, " -> ', : -> " -", 앞뒤 공백 제거.
func EscapeValue(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	s = strings.ReplaceAll(s, `"`, "'")
	s = strings.ReplaceAll(s, ":", " -")
	return strings.TrimSpace(s)
}

// FrontMatterOf builds the escaped frontmatter for a post record.
func FrontMatterOf(rec models.PostRecord) FrontMatter {
	return FrontMatter{
		Title:       EscapeValue(rec.Title),
		Date:        rec.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Image:       rec.ImageRef,
		Draft:       rec.Draft,
		Tags:        escapeAll(rec.Tags),
		Categories:  escapeAll(rec.Categories),
		Author:      EscapeValue(rec.AuthorTag),
		Type:        EscapeValue(rec.Type),
		Description: EscapeValue(rec.Description),
	}
}

func escapeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = EscapeValue(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// RenderFrontMatter 는 --- 로 감싼 YAML 블록을 만든다.
func RenderFrontMatter(fm FrontMatter) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fmDelimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString(fmDelimiter + "\n")
	return buf.Bytes(), nil
}

// ParseFrontMatter splits a post file into its frontmatter and body.
func ParseFrontMatter(data []byte) (FrontMatter, string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, fmDelimiter+"\n") {
		return FrontMatter{}, text, ErrNoFrontMatter
	}
	rest := text[len(fmDelimiter)+1:]

	end := strings.Index(rest, "\n"+fmDelimiter+"\n")
	var block, body string
	switch {
	case strings.HasPrefix(rest, fmDelimiter+"\n"):
		block, body = "", rest[len(fmDelimiter)+1:]
	case end >= 0:
		block, body = rest[:end+1], rest[end+len(fmDelimiter)+2:]
	case strings.HasSuffix(rest, "\n"+fmDelimiter):
		block, body = rest[:len(rest)-len(fmDelimiter)], ""
	default:
		return FrontMatter{}, text, ErrNoFrontMatter
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return FrontMatter{}, "", fmt.Errorf("decode frontmatter: %w", err)
	}
	return fm, strings.TrimPrefix(body, "\n"), nil
}

// Describe 는 본문 앞부분으로 description 을 만든다.
// 마크다운 기호를 걷어내고 공백을 합친 뒤 maxRunes 에서 자른다.
func Describe(body string, maxRunes int) string {
	var words []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "#>-*+ ")
		line = strings.NewReplacer("**", "", "__", "", "`", "").Replace(line)
		words = append(words, strings.Fields(line)...)
	}
	s := EscapeValue(strings.Join(words, " "))
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxRunes]))
}
