package orchestrator

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"ai-blog/models"
)

//go:embed prompts/article_ru.tmpl
var articleRuPrompt string

//go:embed prompts/article_en.tmpl
var articleEnPrompt string

//go:embed prompts/image.tmpl
var imagePrompt string

var (
	articleTemplates = map[string]*template.Template{
		"ru": template.Must(template.New("article_ru").Parse(articleRuPrompt)),
		"en": template.Must(template.New("article_en").Parse(articleEnPrompt)),
	}
	imageTemplate = template.Must(template.New("image").Parse(imagePrompt))
)

// ArticlePrompt 는 언어별 기사 프롬프트를 만든다. 알 수 없는 언어는 ru 로 처리한다.
func ArticlePrompt(language string, topic models.Topic) (string, error) {
	tmpl, ok := articleTemplates[language]
	if !ok {
		tmpl = articleTemplates["ru"]
	}
	return execute(tmpl, topic)
}

func ImagePrompt(topic models.Topic) (string, error) {
	return execute(imageTemplate, topic)
}

func execute(tmpl *template.Template, topic models.Topic) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, struct {
		Topic string
		Brief string
	}{topic.Title, topic.Brief}); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
