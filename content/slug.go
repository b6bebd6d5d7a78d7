package content

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const MaxSlugLen = 60

// 러시아어 제목이 대부분이라 키릴 문자는 라틴 문자로 음역한다.
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'і': "i", 'ї': "yi", 'є': "ye", 'ґ': "g",
}

func transliterate(s string) string {
	var b strings.Builder
	for _, r := range s {
		if lat, ok := cyrillic[r]; ok {
			b.WriteString(lat)
			continue
		}
		b.WriteRune(r)
	}

	// é -> e 처럼 결합 문자를 떼어낸다. 남은 비ASCII 문자는 Slugify 에서 구분자로 바뀐다.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, b.String())
	if err != nil {
		return b.String()
	}
	return out
}

// Slugify 는 제목을 소문자 ASCII 하이픈 구분 슬러그로 바꾼다.
// 결과가 비면 "post" 를 반환한다.
func Slugify(title string) string {
	s := transliterate(strings.ToLower(strings.TrimSpace(title)))

	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		slug = slug[:MaxSlugLen]
	}
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "post"
	}
	return slug
}

// UniqueSlug 는 postsDir 에 <slug>.md 가 이미 있으면
// <slug>-YYYYMMDD, <slug>-YYYYMMDD-2, ... 순서로 비어 있는 이름을 찾는다.
func UniqueSlug(postsDir, slug string, now time.Time) string {
	if !postExists(postsDir, slug) {
		return slug
	}

	dated := slug + "-" + now.UTC().Format("20060102")
	if !postExists(postsDir, dated) {
		return dated
	}
	for n := 2; ; n++ {
		candidate := dated + "-" + strconv.Itoa(n)
		if !postExists(postsDir, candidate) {
			return candidate
		}
	}
}

func postExists(dir, slug string) bool {
	_, err := os.Lstat(filepath.Join(dir, slug+".md"))
	return err == nil
}
