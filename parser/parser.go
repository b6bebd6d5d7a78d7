package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/advancedlogic/GoOse/pkg/goose"
	"github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"

	"ai-blog/config"
)

// 짧은 조각(피드 description 등)은 본문 추출기가 오히려 버리는 경우가 많아 바로 텍스트 워크로 처리한다.
const minDocumentBytes = 1500

type extractor struct {
	name string
	fn   func(string) (string, error)
}

var extractors = []extractor{
	{"readability", ParseHtmlWithReadability},
	{"trafilatura", ParseHtmlWithTrafilatura},
	{"goose", ParseHtmlWithGoose},
}

// ExtractText 는 HTML 에서 본문 텍스트를 뽑는다.
// readability -> trafilatura -> goose 순서로 시도하고, 모두 실패하면 텍스트 노드를 모은다.
func ExtractText(htmlStr string) string {
	if strings.TrimSpace(htmlStr) == "" {
		return ""
	}
	if len(htmlStr) >= minDocumentBytes {
		for _, ex := range extractors {
			text, err := ex.fn(htmlStr)
			if err != nil {
				config.DebugWithFields("extractor failed", config.Fields{"extractor": ex.name, "error": err.Error()})
				continue
			}
			if text = collapseSpaces(text); text != "" {
				return text
			}
		}
	}
	return collapseSpaces(TextOfHTML(htmlStr))
}

// Brief 는 ExtractText 결과를 maxRunes 안에서 단어 경계로 자른다.
func Brief(htmlStr string, maxRunes int) string {
	text := ExtractText(htmlStr)
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	r := []rune(text)[:maxRunes]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > maxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}

func ParseHtmlWithReadability(htmlStr string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", err
	}

	article, err := readability.FromDocument(doc, nil)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

func ParseHtmlWithTrafilatura(htmlStr string) (string, error) {
	article, err := trafilatura.Extract(strings.NewReader(htmlStr), trafilatura.Options{})
	if err != nil {
		return "", err
	}
	return article.ContentText, nil
}

func ParseHtmlWithGoose(htmlStr string) (string, error) {
	article, err := goose.New().ExtractFromRawHTML(htmlStr, "")
	if err != nil {
		return "", err
	}
	return article.CleanedText, nil
}

// TextOfHTML 은 script/style 을 제외한 모든 텍스트 노드를 공백으로 이어 붙인다.
func TextOfHTML(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	var b strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
