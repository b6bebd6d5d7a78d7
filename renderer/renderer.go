// Package renderer 는 posts 디렉터리와 갤러리 매니페스트로부터
// data/articles.json 과 정적 HTML 페이지(index, articles, gallery)를 만든다.
package renderer

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"ai-blog/config"
	"ai-blog/content"
	"ai-blog/fsutil"
	"ai-blog/gallery"
	"ai-blog/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"index.html", "articles.html", "gallery.html"}

type navLabels struct {
	Home     string
	Articles string
	Gallery  string
}

var labels = map[string]navLabels{
	"ru": {Home: "Главная", Articles: "Статьи", Gallery: "Галерея"},
	"en": {Home: "Home", Articles: "Articles", Gallery: "Gallery"},
}

var siteNames = map[string]string{
	"ru": "AI блог",
	"en": "AI Blog",
}

type Renderer struct {
	site     config.SiteConfig
	language string
	md       goldmark.Markdown
}

func New(site config.SiteConfig, language string) *Renderer {
	if _, ok := labels[language]; !ok {
		language = "en"
	}
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)
	return &Renderer{site: site, language: language, md: md}
}

// BuildIndex 는 posts 디렉터리를 다시 읽어서 articles.json 을 원자적으로 기록한다.
// 읽을 수 없는 포스트는 경고만 남기고 건너뛴다.
func (r *Renderer) BuildIndex(now time.Time) (models.ArticleIndex, error) {
	postsDir := r.site.Path(r.site.PostsDir)
	matches, err := filepath.Glob(filepath.Join(postsDir, "*.md"))
	if err != nil {
		return models.ArticleIndex{}, err
	}

	articles := make([]models.Article, 0, len(matches))
	for _, path := range matches {
		name := filepath.Base(path)
		if strings.HasPrefix(name, "_") {
			continue
		}
		fm, body, err := content.Read(path)
		if err != nil {
			config.WarnWithFields("skip unreadable post", config.Fields{"path": path, "error": err.Error()})
			continue
		}
		excerpt := fm.Description
		if excerpt == "" {
			excerpt = content.Describe(body, 150)
		}
		articles = append(articles, models.Article{
			ID:      strings.TrimSuffix(name, ".md"),
			Title:   fm.Title,
			Excerpt: excerpt,
			Date:    fm.Date,
			Image:   fm.Image,
			Content: body,
		})
	}
	// 날짜는 UTC RFC3339 문자열이라 문자열 비교로 정렬된다.
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Date != articles[j].Date {
			return articles[i].Date > articles[j].Date
		}
		return articles[i].ID < articles[j].ID
	})

	images := gallery.Load(r.site.Path(r.site.GalleryManifest))
	if images == nil {
		images = []models.GalleryItem{}
	}

	idx := models.ArticleIndex{
		Articles:    articles,
		Images:      images,
		GeneratedAt: now.UTC(),
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return models.ArticleIndex{}, err
	}
	if err := fsutil.WriteFileAtomic(r.site.Path(r.site.ArticlesIndex), data, 0o644); err != nil {
		return models.ArticleIndex{}, fmt.Errorf("write articles index: %w", err)
	}

	config.InfoWithFields("articles index built", config.Fields{"articles": len(articles), "images": len(images)})
	return idx, nil
}

type articleView struct {
	models.Article
	HTML template.HTML
}

type pageData struct {
	Lang        string
	Title       string
	SiteName    string
	Nav         navLabels
	GeneratedAt time.Time
	Latest      *articleView
	Articles    []articleView
	Images      []models.GalleryItem
}

// RenderPages writes index.html, articles.html and gallery.html into the pages directory.
func (r *Renderer) RenderPages(idx models.ArticleIndex) error {
	nav := labels[r.language]
	data := pageData{
		Lang:        r.language,
		SiteName:    siteNames[r.language],
		Nav:         nav,
		GeneratedAt: idx.GeneratedAt,
		Images:      idx.Images,
	}
	for _, a := range idx.Articles {
		data.Articles = append(data.Articles, articleView{Article: a})
	}
	if len(data.Articles) > 0 {
		latest := data.Articles[0]
		rendered, err := r.markdownToHTML(latest.Content)
		if err != nil {
			return err
		}
		latest.HTML = rendered
		data.Latest = &latest
	}

	outDir := r.site.Path(r.site.PagesDir)
	for _, page := range pages {
		tmpl, err := template.New(page).ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", page, err)
		}
		data.Title = pageTitle(page, data)

		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
			return fmt.Errorf("render %s: %w", page, err)
		}
		if err := fsutil.WriteFileAtomic(filepath.Join(outDir, page), buf.Bytes(), 0o644); err != nil {
			return err
		}
	}
	config.DebugWithFields("pages rendered", config.Fields{"dir": outDir})
	return nil
}

func (r *Renderer) markdownToHTML(md string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func pageTitle(page string, d pageData) string {
	switch page {
	case "articles.html":
		return d.Nav.Articles + " | " + d.SiteName
	case "gallery.html":
		return d.Nav.Gallery + " | " + d.SiteName
	}
	return d.SiteName
}

// Rebuild 는 BuildIndex 후 RenderPages 를 실행한다.
func (r *Renderer) Rebuild(now time.Time) error {
	idx, err := r.BuildIndex(now)
	if err != nil {
		return err
	}
	return r.RenderPages(idx)
}
