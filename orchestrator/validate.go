package orchestrator

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"strings"
	"unicode"

	_ "golang.org/x/image/webp"

	"ai-blog/providers"
)

var ErrValidationFailed = errors.New("validation failed")

var (
	htmlTagPattern  = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	manyNewlines    = regexp.MustCompile(`\n{3,}`)
	orderedListItem = regexp.MustCompile(`^\d+[.)]\s`)
	fencedMarkdown  = regexp.MustCompile("(?s)^```(?:markdown|md)?\\s*\\n(.*?)\\n?```$")
)

// NormalizeMarkdown 은 provider 출력의 흔한 형식 문제를 정리한다.
// 전체를 감싼 코드 펜스와 HTML 태그, 첫 줄의 H1 을 제거하고
// 제목·목록·표 블록 앞뒤에 빈 줄을 넣은 뒤 3줄 이상의 빈 줄을 하나로 합친다.
func NormalizeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if m := fencedMarkdown.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	text = htmlTagPattern.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "# ") {
		lines = lines[1:]
	}

	var out []string
	prevKind := blockBlank
	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		kind := classify(line)
		if kind != blockBlank && prevKind != blockBlank && needsGap(prevKind, kind) {
			out = append(out, "")
		}
		out = append(out, line)
		prevKind = kind
	}

	text = strings.Join(out, "\n")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

type blockKind int

const (
	blockBlank blockKind = iota
	blockText
	blockHeading
	blockList
	blockTable
)

func classify(line string) blockKind {
	t := strings.TrimSpace(line)
	switch {
	case t == "":
		return blockBlank
	case strings.HasPrefix(t, "#"):
		return blockHeading
	case strings.HasPrefix(t, "- "), strings.HasPrefix(t, "* "), strings.HasPrefix(t, "+ "), orderedListItem.MatchString(t):
		return blockList
	case strings.HasPrefix(t, "|"):
		return blockTable
	default:
		return blockText
	}
}

// 같은 종류의 목록/표 줄은 붙여두고, 종류가 바뀌거나 제목이 끼면 빈 줄을 넣는다.
func needsGap(prev, cur blockKind) bool {
	if prev == blockHeading || cur == blockHeading {
		return true
	}
	if prev == cur {
		return false
	}
	return prev == blockList || prev == blockTable || cur == blockList || cur == blockTable
}

// NonSpaceLen counts runes that are not whitespace.
func NonSpaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// validateText 는 정규화된 본문을 돌려주거나 ErrValidationFailed 를 반환한다.
func (o *Orchestrator) validateText(raw string) (string, error) {
	body := NormalizeMarkdown(raw)
	if body == "" {
		return "", fmt.Errorf("%w: empty body", ErrValidationFailed)
	}
	if n := NonSpaceLen(body); n < o.cfg.MinBodyChars {
		return "", fmt.Errorf("%w: body has %d non-space chars, need %d", ErrValidationFailed, n, o.cfg.MinBodyChars)
	}
	lower := strings.ToLower(body)
	for _, marker := range o.cfg.ErrorMarkers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return "", fmt.Errorf("%w: body contains error marker %q", ErrValidationFailed, marker)
		}
	}
	for _, re := range o.cfg.BannedPatterns {
		if re.MatchString(body) {
			return "", fmt.Errorf("%w: body matches banned pattern %q", ErrValidationFailed, re.String())
		}
	}
	return body, nil
}

// validateImage 는 크기 제한과 디코딩 가능 여부, 0이 아닌 가로세로를 확인한다.
// SVG 는 래스터 디코더가 없으므로 <svg 로 시작하는지만 본다.
func (o *Orchestrator) validateImage(img providers.Image) (providers.Image, error) {
	if len(img.Data) == 0 {
		return img, fmt.Errorf("%w: empty image", ErrValidationFailed)
	}
	if o.cfg.MaxImageBytes > 0 && int64(len(img.Data)) > o.cfg.MaxImageBytes {
		return img, fmt.Errorf("%w: image is %d bytes, limit %d", ErrValidationFailed, len(img.Data), o.cfg.MaxImageBytes)
	}

	ext := strings.ToLower(strings.TrimPrefix(img.Ext, "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	if ext == "svg" {
		head := bytes.TrimSpace(img.Data)
		if bytes.HasPrefix(head, []byte("<?xml")) {
			if i := bytes.Index(head, []byte("<svg")); i >= 0 {
				head = head[i:]
			}
		}
		if !bytes.HasPrefix(head, []byte("<svg")) {
			return img, fmt.Errorf("%w: svg payload does not start with <svg", ErrValidationFailed)
		}
		img.Ext = ext
		return img, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return img, fmt.Errorf("%w: undecodable image: %v", ErrValidationFailed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return img, fmt.Errorf("%w: zero image dimensions", ErrValidationFailed)
	}
	switch format {
	case "jpeg":
		ext = "jpg"
	case "png", "gif", "webp":
		ext = format
	}
	img.Ext = ext
	return img, nil
}
